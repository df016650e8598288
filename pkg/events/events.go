// Package events routes gateway events to every handler registered for their type.
package events

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Type names a gateway event kind.
type Type string

const (
	Ready             Type = "ready"
	GuildCreate       Type = "guild_create"
	MessageCreate     Type = "message_create"
	InteractionCreate Type = "interaction_create"
)

// Types lists the event kinds the gateway adapter delivers.
var Types = []Type{Ready, GuildCreate, MessageCreate, InteractionCreate}

// HandlerFunc handles one event payload. The payload's concrete type depends
// on the event type and the adapter that delivered it.
type HandlerFunc func(ctx context.Context, payload any) error

// Handler is one registered reaction to an event type.
type Handler struct {
	Name   string
	Event  Type
	Handle HandlerFunc
}

// Source yields handlers for a Registry load.
type Source interface {
	Handlers() ([]Handler, error)
}

// StaticSource is a fixed list of handlers.
type StaticSource []Handler

func (s StaticSource) Handlers() ([]Handler, error) { return slices.Clone(s), nil }

// LoadError aborts a load; the previous handler set stays active.
type LoadError struct {
	Handler string
	Event   Type
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s handler %q: %v", e.Event, e.Handler, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// HandlerError reports one failed handler during Dispatch.
type HandlerError struct {
	Handler string
	Event   Type
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler %q: %v", e.Event, e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

type table map[Type][]Handler

// Registry maps event types to handlers in registration order.
type Registry struct {
	tbl atomic.Pointer[table]
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.tbl.Store(&table{})
	return r
}

// Load validates every handler from src and publishes them as a whole.
func (r *Registry) Load(src Source) error {
	hs, err := src.Handlers()
	if err != nil {
		return &LoadError{Err: err}
	}

	next := table{}
	for _, h := range hs {
		switch {
		case h.Name == "":
			return &LoadError{Event: h.Event, Err: errors.New("empty name")}
		case !slices.Contains(Types, h.Event):
			return &LoadError{Handler: h.Name, Event: h.Event, Err: errors.New("unknown event type")}
		case h.Handle == nil:
			return &LoadError{Handler: h.Name, Event: h.Event, Err: errors.New("nil handler func")}
		}
		if slices.ContainsFunc(next[h.Event], func(o Handler) bool { return o.Name == h.Name }) {
			return &LoadError{Handler: h.Name, Event: h.Event, Err: errors.New("registered twice")}
		}
		next[h.Event] = append(next[h.Event], h)
	}

	r.tbl.Store(&next)
	return nil
}

// Handlers returns the names of handlers registered for t, in order.
func (r *Registry) Handlers(t Type) []string {
	var out []string
	for _, h := range (*r.tbl.Load())[t] {
		out = append(out, h.Name)
	}
	return out
}

// Dispatch runs every handler for t in registration order. A failing or
// panicking handler is logged and does not stop its siblings; all failures
// are joined into the returned error.
func (r *Registry) Dispatch(ctx context.Context, t Type, payload any) error {
	var errs []error
	for _, h := range (*r.tbl.Load())[t] {
		if err := invoke(ctx, h, payload); err != nil {
			herr := &HandlerError{Handler: h.Name, Event: t, Err: err}
			log.Error().Err(err).Str("event", string(t)).Str("handler", h.Name).Msg("event handler failed")
			errs = append(errs, herr)
		}
	}
	return errors.Join(errs...)
}

func invoke(ctx context.Context, h Handler, payload any) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
			log.Error().Str("handler", h.Name).Bytes("stack", debug.Stack()).Msg("event handler panicked")
		}
	}()
	return h.Handle(ctx, payload)
}
