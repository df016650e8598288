// Package cmd provides a transport-agnostic command core: a command is an
// immutable Spec with identity, policy requirements, an argument schema and
// entry points. How it is registered with and dispatched from a gateway is
// defined by adapters that consume this package.
package cmd

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/keshon/herald/pkg/perm"
)

// EntryPoint runs a command for one origin and returns the reply payload.
// A zero Reply means "no reply".
type EntryPoint func(ctx context.Context, c *Context) (Reply, error)

// MenuKind marks a command exposed as a Discord context-menu entry.
type MenuKind int

const (
	MenuNone MenuKind = iota
	MenuMessage
	MenuUser
)

const maxNameLen = 32

// Spec describes one command. It is validated before it enters a Registry
// and never mutated afterwards.
type Spec struct {
	Name        string
	Aliases     []string
	Description string
	Category    string
	// Usage overrides the usage hint derived from Params.
	Usage    string
	Cooldown time.Duration

	CallerPermissions perm.Set
	AgentPermissions  perm.Set

	Params      []Param
	GuildOnly   bool
	ContextMenu MenuKind

	// Ephemeral replies are shown to the caller only where the gateway
	// supports it.
	Ephemeral bool

	Text        EntryPoint
	Interaction EntryPoint
}

// Validate reports the first structural problem with s.
func (s *Spec) Validate() error {
	if err := validName(s.Name); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	for _, a := range s.Aliases {
		if err := validName(a); err != nil {
			return fmt.Errorf("alias %q: %w", a, err)
		}
	}
	if s.Cooldown < 0 {
		return fmt.Errorf("negative cooldown %s", s.Cooldown)
	}
	if s.Text == nil && s.Interaction == nil {
		return fmt.Errorf("no entry point")
	}
	if s.ContextMenu != MenuNone {
		if s.Interaction == nil {
			return fmt.Errorf("context menu without interaction entry point")
		}
		if len(s.Params) > 0 {
			return fmt.Errorf("context menu commands take no parameters")
		}
	}
	slash := s.Interaction != nil && s.ContextMenu == MenuNone
	if slash && !slashName.MatchString(s.Name) {
		return fmt.Errorf("name %q: not a valid slash command name", s.Name)
	}

	seen := make(map[string]bool, len(s.Params))
	optional := false
	for i, p := range s.Params {
		if err := validName(p.Name); err != nil {
			return fmt.Errorf("param %d: %w", i, err)
		}
		if slash && !slashName.MatchString(p.Name) {
			return fmt.Errorf("param %q: not a valid option name", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("param %q declared twice", p.Name)
		}
		seen[p.Name] = true
		if p.Type < String || p.Type > Role {
			return fmt.Errorf("param %q: unknown type %d", p.Name, p.Type)
		}
		if p.Required && optional {
			return fmt.Errorf("param %q: required after optional", p.Name)
		}
		if !p.Required {
			optional = true
		}
		if p.Greedy && (i != len(s.Params)-1 || p.Type != String) {
			return fmt.Errorf("param %q: only the last string param may be greedy", p.Name)
		}
	}
	return nil
}

// Keys returns the lower-cased name and aliases under which s resolves.
func (s *Spec) Keys() []string {
	keys := []string{strings.ToLower(s.Name)}
	for _, a := range s.Aliases {
		k := strings.ToLower(a)
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Supports reports whether s has an entry point for origin.
func (s *Spec) Supports(o Origin) bool {
	return s.EntryPoint(o) != nil
}

// EntryPoint returns the entry point for origin, or nil.
func (s *Spec) EntryPoint(o Origin) EntryPoint {
	switch o {
	case OriginText:
		return s.Text
	case OriginInteraction:
		return s.Interaction
	}
	return nil
}

func (s *Spec) clone() *Spec {
	c := *s
	c.Aliases = slices.Clone(s.Aliases)
	c.Params = slices.Clone(s.Params)
	return &c
}

// slashName is what Discord accepts for slash command and option names.
var slashName = regexp.MustCompile(`^[-_\p{L}\p{N}]{1,32}$`)

func validName(n string) error {
	if n == "" {
		return fmt.Errorf("empty")
	}
	if len(n) > maxNameLen {
		return fmt.Errorf("longer than %d characters", maxNameLen)
	}
	if strings.IndexFunc(n, unicode.IsSpace) >= 0 {
		return fmt.Errorf("contains whitespace")
	}
	return nil
}
