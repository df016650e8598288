// Package dispatch turns inbound invocations into at most one reply: it
// resolves the command, runs the policy chain (arity, permissions, cooldown)
// and invokes the entry point with failures isolated per invocation.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keshon/herald/pkg/cmd"
	"github.com/keshon/herald/pkg/cooldown"
	"github.com/keshon/herald/pkg/perm"
)

const genericFailure = "Something went wrong while running that command. Please try again later."

// Resolver looks commands up by name or alias. *cmd.Registry implements it.
type Resolver interface {
	Resolve(token string) (*cmd.Spec, bool)
}

// Entry is one successful invocation as handed to a Recorder. It carries
// derived scalars only.
type Entry struct {
	ID        string
	Command   string
	Origin    string
	GuildID   string
	ChannelID string
	CallerID  string
	Caller    string
	At        time.Time
}

// Recorder persists successful invocations, e.g. for a history command.
type Recorder interface {
	RecordCommand(ctx context.Context, e Entry) error
}

type Config struct {
	// Prefix gates text invocations, e.g. "!".
	Prefix string
	// Timeout bounds a single entry point call. Zero disables it.
	Timeout time.Duration
}

type Dispatcher struct {
	cfg       Config
	commands  Resolver
	cooldowns *cooldown.Tracker
	recorder  Recorder
	newID     func() string
	now       func() time.Time
}

type Option func(*Dispatcher)

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithClock sets the clock used for recorded entries.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithIDs(next func() string) Option {
	return func(d *Dispatcher) { d.newID = next }
}

func New(cfg Config, commands Resolver, cooldowns *cooldown.Tracker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		commands:  commands,
		cooldowns: cooldowns,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Prefix returns the configured text prefix.
func (d *Dispatcher) Prefix() string { return d.cfg.Prefix }

// Dispatch handles one invocation. The returned error is a *Violation for
// Rejected, a *HandlerFailure for Failed and wraps ErrUnknownCommand for
// NotFound; reply delivery errors are only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, inv cmd.Invocation) (Outcome, error) {
	meta := inv.Common()

	var (
		spec   *cmd.Spec
		tokens []string
		iact   *cmd.InteractionInvocation
	)
	switch v := inv.(type) {
	case *cmd.TextInvocation:
		fields, ok := d.split(v.Content)
		if !ok {
			return Ignored, nil
		}
		s, found := d.commands.Resolve(fields[0])
		if !found || s.Text == nil {
			return Ignored, nil
		}
		spec, tokens = s, fields[1:]
	case *cmd.InteractionInvocation:
		s, found := d.commands.Resolve(v.Command)
		if !found || s.Interaction == nil {
			err := fmt.Errorf("%w %q", ErrUnknownCommand, v.Command)
			log.Error().Err(err).Str("guild", meta.GuildID).Str("caller", meta.Caller.ID).Msg("interaction for unregistered command")
			d.send(ctx, meta, v.Command, cmd.Reply{Content: genericFailure, Ephemeral: true})
			return NotFound, err
		}
		spec, iact = s, v
	default:
		return Ignored, nil
	}

	c := &cmd.Context{
		ID:        d.newID(),
		Origin:    inv.Origin(),
		Command:   spec.Name,
		Caller:    meta.Caller,
		GuildID:   meta.GuildID,
		ChannelID: meta.ChannelID,
		Prefix:    d.cfg.Prefix,
	}
	if iact != nil {
		c.Target = iact.Target
	}
	logger := log.With().
		Str("id", c.ID).
		Str("command", spec.Name).
		Str("origin", c.Origin.String()).
		Str("caller", meta.Caller.ID).
		Str("guild", meta.GuildID).
		Logger()

	res, err := d.admit(ctx, spec, c, meta, tokens, iact)
	if err != nil {
		if v, ok := err.(*Violation); ok {
			logger.Debug().Str("kind", string(v.Kind)).Msg(v.Message)
			d.send(ctx, meta, spec.Name, cmd.Reply{Content: v.Message, Ephemeral: true})
			return Rejected, v
		}
		logger.Warn().Err(err).Msg("resolve capabilities")
		d.send(ctx, meta, spec.Name, cmd.Reply{Content: genericFailure, Ephemeral: true})
		return Failed, &HandlerFailure{ID: c.ID, Command: spec.Name, Err: err}
	}

	df, _ := meta.Sink.(cmd.Deferrer)
	deferred := false
	if df != nil {
		if err := df.Defer(ctx, spec.Ephemeral); err != nil {
			logger.Warn().Err(err).Msg("defer reply")
		} else {
			deferred = true
		}
	}

	ep := cmd.Apply(spec.EntryPoint(c.Origin), cmd.Recover(), cmd.Timeout(d.cfg.Timeout))
	reply, err := ep(ctx, c)
	if err != nil {
		res.Release()
		failure := &HandlerFailure{ID: c.ID, Command: spec.Name, Err: err}
		ev := logger.Error().Err(err)
		if pe, ok := err.(*cmd.PanicError); ok {
			ev = ev.Bytes("stack", pe.Stack)
		}
		ev.Msg("command failed")
		d.send(ctx, meta, spec.Name, cmd.Reply{Content: genericFailure, Ephemeral: true})
		return Failed, failure
	}
	res.Commit()
	logger.Info().Msg("command handled")

	d.record(ctx, logger, c)
	switch {
	case !reply.Empty():
		reply.Ephemeral = reply.Ephemeral || spec.Ephemeral
		d.send(ctx, meta, spec.Name, reply)
	case deferred:
		if err := df.Discard(ctx); err != nil {
			logger.Warn().Err(err).Msg("discard deferred reply")
		}
	}
	return Replied, nil
}

// split strips the prefix from a text message and tokenises the rest.
func (d *Dispatcher) split(content string) ([]string, bool) {
	content = strings.TrimSpace(content)
	if d.cfg.Prefix == "" || !strings.HasPrefix(content, d.cfg.Prefix) {
		return nil, false
	}
	fields := strings.Fields(content[len(d.cfg.Prefix):])
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

// admit runs the policy chain in order. On success the returned reservation
// holds the cooldown key until the outcome is known.
func (d *Dispatcher) admit(ctx context.Context, spec *cmd.Spec, c *cmd.Context, meta *cmd.Meta, tokens []string, iact *cmd.InteractionInvocation) (*cooldown.Reservation, error) {
	if spec.GuildOnly && !c.InGuild() {
		return nil, &Violation{
			Kind:    ViolationGuildOnly,
			Command: spec.Name,
			Message: fmt.Sprintf("`%s` can only be used in a server.", spec.Name),
		}
	}

	var (
		args cmd.Args
		err  error
	)
	switch {
	case iact == nil:
		args, err = cmd.ParseTokens(spec.Params, tokens)
	case spec.ContextMenu != cmd.MenuNone:
		args = cmd.NewArgs(nil)
	default:
		args, err = cmd.ResolveOptions(spec.Params, iact.Options)
	}
	if err != nil {
		prefix := d.cfg.Prefix
		if iact != nil {
			prefix = "/"
		}
		return nil, &Violation{
			Kind:    ViolationArity,
			Command: spec.Name,
			Message: fmt.Sprintf("%s\nUsage: `%s`", err, cmd.UsageHint(prefix, spec)),
		}
	}
	c.Args = args

	if spec.AgentPermissions.Len() > 0 || spec.CallerPermissions.Len() > 0 {
		var callerSet, agentSet perm.Set
		if meta.Capabilities != nil {
			callerSet, agentSet, err = meta.Capabilities.Capabilities(ctx)
			if err != nil {
				return nil, err
			}
		}
		if ok, missing := perm.Check(spec.AgentPermissions, agentSet); !ok {
			return nil, &Violation{
				Kind:    ViolationPermission,
				Command: spec.Name,
				Missing: missing,
				Message: fmt.Sprintf("I need the **%s** permission here to run `%s`.", perm.Label(missing), spec.Name),
			}
		}
		if ok, missing := perm.Check(spec.CallerPermissions, callerSet); !ok {
			return nil, &Violation{
				Kind:    ViolationPermission,
				Command: spec.Name,
				Missing: missing,
				Message: fmt.Sprintf("You need the **%s** permission to use `%s`.", perm.Label(missing), spec.Name),
			}
		}
	}

	res, wait := d.cooldowns.Reserve(spec.Name, c.Caller.ID, spec.Cooldown)
	if res == nil {
		return nil, &Violation{
			Kind:    ViolationCooldown,
			Command: spec.Name,
			Wait:    wait,
			Message: fmt.Sprintf("Please wait %s before using `%s` again.", roundUp(wait), spec.Name),
		}
	}
	return res, nil
}

func (d *Dispatcher) record(ctx context.Context, logger zerolog.Logger, c *cmd.Context) {
	if d.recorder == nil {
		return
	}
	err := d.recorder.RecordCommand(ctx, Entry{
		ID:        c.ID,
		Command:   c.Command,
		Origin:    c.Origin.String(),
		GuildID:   c.GuildID,
		ChannelID: c.ChannelID,
		CallerID:  c.Caller.ID,
		Caller:    c.Caller.Name,
		At:        d.now(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("record command history")
	}
}

// send delivers the single reply of an invocation. Delivery errors are
// transport failures: logged, never retried here.
func (d *Dispatcher) send(ctx context.Context, meta *cmd.Meta, command string, r cmd.Reply) {
	if meta.Sink == nil {
		return
	}
	if err := meta.Sink.Send(ctx, r); err != nil {
		log.Warn().Err(err).Str("command", command).Str("channel", meta.ChannelID).Msg("send reply")
	}
}

func roundUp(d time.Duration) time.Duration {
	if r := d.Truncate(time.Second); r < d {
		return r + time.Second
	}
	return d
}
