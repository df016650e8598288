package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/herald/pkg/perm"
)

// Origin is the surface an invocation arrived on.
type Origin int

const (
	OriginText Origin = iota + 1
	OriginInteraction
)

func (o Origin) String() string {
	switch o {
	case OriginText:
		return "text"
	case OriginInteraction:
		return "interaction"
	}
	return "unknown"
}

// Caller identifies the entity that invoked a command.
type Caller struct {
	ID   string
	Name string
}

// Target is the message or user a context-menu command was invoked on.
type Target struct {
	ID      string
	Kind    MenuKind
	Content string
}

// ReplySink delivers the single reply of an invocation back to the gateway.
type ReplySink interface {
	Send(ctx context.Context, r Reply) error
}

// Deferrer is implemented by sinks that can acknowledge an invocation before
// the reply is ready (Discord interactions must be answered within seconds).
// The acknowledgement fixes the reply's visibility, so ephemeral must match
// what the command will answer.
type Deferrer interface {
	Defer(ctx context.Context, ephemeral bool) error
	// Discard withdraws an acknowledgement that will get no reply.
	Discard(ctx context.Context) error
}

// CapabilityResolver supplies the capability sets held by the caller and by
// the bot itself where the invocation happened.
type CapabilityResolver interface {
	Capabilities(ctx context.Context) (caller, agent perm.Set, err error)
}

// StaticCapabilities is a CapabilityResolver with precomputed sets.
type StaticCapabilities struct {
	Caller perm.Set
	Agent  perm.Set
}

func (s StaticCapabilities) Capabilities(context.Context) (perm.Set, perm.Set, error) {
	return s.Caller, s.Agent, nil
}

// Meta carries the fields every invocation shares.
type Meta struct {
	Caller       Caller
	GuildID      string
	ChannelID    string
	Sink         ReplySink
	Capabilities CapabilityResolver
}

// Invocation is either a TextInvocation or an InteractionInvocation.
type Invocation interface {
	Origin() Origin
	Common() *Meta
	isInvocation()
}

// TextInvocation is a raw chat message that may contain a command.
type TextInvocation struct {
	Meta
	Content string
}

func (*TextInvocation) Origin() Origin  { return OriginText }
func (t *TextInvocation) Common() *Meta { return &t.Meta }
func (*TextInvocation) isInvocation()   {}

// InteractionInvocation is a structured command invocation that already names
// its command and carries an option map.
type InteractionInvocation struct {
	Meta
	Command string
	Options map[string]any
	Target  *Target
}

func (*InteractionInvocation) Origin() Origin  { return OriginInteraction }
func (i *InteractionInvocation) Common() *Meta { return &i.Meta }
func (*InteractionInvocation) isInvocation()   {}

// Context is what an entry point sees: one resolved request. It never holds
// the connection or the sink.
type Context struct {
	ID        string
	Origin    Origin
	Command   string
	Caller    Caller
	GuildID   string
	ChannelID string
	Args      Args
	Target    *Target
	// Prefix is the configured text prefix, for commands that render usage.
	Prefix string
}

// InGuild reports whether the invocation happened inside a guild.
func (c *Context) InGuild() bool { return c.GuildID != "" }

// Embed is a gateway-neutral rich message.
type Embed struct {
	Title       string
	Description string
	URL         string
	Color       int
	Thumbnail   string
	Footer      string
	Timestamp   time.Time
	Fields      []Field
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Reply is the single response of an invocation. The zero Reply means no reply.
type Reply struct {
	Content   string
	Embeds    []Embed
	Ephemeral bool
}

// Empty reports whether r carries nothing to send.
func (r Reply) Empty() bool { return r.Content == "" && len(r.Embeds) == 0 }

// Textf builds a plain text reply.
func Textf(format string, a ...any) Reply {
	return Reply{Content: fmt.Sprintf(format, a...)}
}

// EmbedReply builds a reply holding one embed.
func EmbedReply(e Embed) Reply {
	return Reply{Embeds: []Embed{e}}
}
