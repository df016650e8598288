package cmd

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *Context) (Reply, error) { return Reply{}, nil }

func spec(name string, aliases ...string) Spec {
	return Spec{Name: name, Aliases: aliases, Category: "misc", Text: noop}
}

func names(seq func(func(*Spec) bool)) []string {
	var out []string
	for s := range seq {
		out = append(out, s.Name)
	}
	return out
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(StaticSource{
		spec("ping", "p"),
		spec("covid", "corona", "Virus"),
	}))

	tests := []struct {
		token string
		want  string
		found bool
	}{
		{token: "ping", want: "ping", found: true},
		{token: "p", want: "ping", found: true},
		{token: "PING", want: "ping", found: true},
		{token: "corona", want: "covid", found: true},
		{token: "virus", want: "covid", found: true},
		{token: "help"},
		{token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			s, ok := r.Resolve(tt.token)

			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, s.Name)
			}
		})
	}
}

func TestRegistryDuplicateKeepsPrevious(t *testing.T) {
	tests := []struct {
		name  string
		specs StaticSource
	}{
		{name: "same name", specs: StaticSource{spec("ping"), spec("ping")}},
		{name: "alias equals name", specs: StaticSource{spec("ping"), spec("pong", "ping")}},
		{name: "alias equals alias", specs: StaticSource{spec("ping", "p"), spec("pong", "p")}},
		{name: "case-insensitive", specs: StaticSource{spec("ping"), spec("Ping")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.Load(StaticSource{spec("help")}))

			err := r.Load(tt.specs)

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.ErrorIs(t, err, ErrDuplicateCommand)

			_, ok := r.Resolve("help")
			assert.True(t, ok, "previous registry stays active")
			assert.Equal(t, 1, r.Len())
		})
	}
}

func TestRegistryInvalidSpec(t *testing.T) {
	r := NewRegistry()

	err := r.Load(StaticSource{spec("ping"), {Name: "broken"}})

	assert.ErrorIs(t, err, ErrInvalidCommand)
	assert.Contains(t, err.Error(), `"broken"`)
	assert.Zero(t, r.Len())
}

func TestRegistrySourceError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")

	err := r.Load(SourceFunc(func() ([]Spec, error) { return nil, boom }))

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryDoesNotShareSourceSlices(t *testing.T) {
	src := StaticSource{spec("ping", "p")}
	r := NewRegistry()
	require.NoError(t, r.Load(src))

	src[0].Aliases[0] = "x"

	_, ok := r.Resolve("p")
	assert.True(t, ok)
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	utility := spec("covid")
	utility.Category = "utility"
	require.NoError(t, r.Load(StaticSource{spec("ping"), utility, spec("help")}))

	assert.Equal(t, []string{"covid", "help", "ping"}, names(r.List("")))
	assert.Equal(t, []string{"covid"}, names(r.List("utility")))
	assert.Empty(t, names(r.List("nope")))
	assert.Equal(t, []string{"utility", "misc"}, r.Categories())

	seq := r.List("")
	first := names(seq)
	second := names(seq)
	assert.Equal(t, first, second, "sequence is restartable")

	var stopped []string
	for s := range r.List("") {
		stopped = append(stopped, s.Name)
		break
	}
	assert.Equal(t, []string{"covid"}, stopped)
}

func TestRegistryReloadReplaces(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(StaticSource{spec("ping")}))
	old, _ := r.Resolve("ping")

	require.NoError(t, r.Load(StaticSource{spec("pong")}))

	_, ok := r.Resolve("ping")
	assert.False(t, ok)
	assert.Equal(t, "ping", old.Name, "held specs are never mutated")
	assert.True(t, slices.Equal([]string{"pong"}, names(r.List(""))))
}

func TestSpecValidate(t *testing.T) {
	str := func(name string, required bool) Param {
		return Param{Name: name, Type: String, Required: required}
	}

	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{name: "ok", spec: Spec{Name: "covid", Text: noop, Params: []Param{str("country", true)}}},
		{name: "empty name", spec: Spec{Text: noop}, wantErr: "name"},
		{name: "space in alias", spec: Spec{Name: "a", Aliases: []string{"b c"}, Text: noop}, wantErr: "whitespace"},
		{name: "no entry point", spec: Spec{Name: "a"}, wantErr: "no entry point"},
		{name: "negative cooldown", spec: Spec{Name: "a", Text: noop, Cooldown: -time.Second}, wantErr: "cooldown"},
		{
			name:    "required after optional",
			spec:    Spec{Name: "a", Text: noop, Params: []Param{str("x", false), str("y", true)}},
			wantErr: "required after optional",
		},
		{
			name:    "duplicate param",
			spec:    Spec{Name: "a", Text: noop, Params: []Param{str("x", true), str("x", true)}},
			wantErr: "twice",
		},
		{
			name:    "greedy not last",
			spec:    Spec{Name: "a", Text: noop, Params: []Param{{Name: "x", Type: String, Greedy: true}, str("y", false)}},
			wantErr: "greedy",
		},
		{
			name:    "unknown type",
			spec:    Spec{Name: "a", Text: noop, Params: []Param{{Name: "x"}}},
			wantErr: "unknown type",
		},
		{name: "text name with punctuation", spec: Spec{Name: "a!b", Text: noop}},
		{name: "slash name with punctuation", spec: Spec{Name: "a!b", Interaction: noop}, wantErr: "slash command name"},
		{name: "slash name with unicode", spec: Spec{Name: "привет-1_x", Interaction: noop}},
		{
			name:    "slash option with punctuation",
			spec:    Spec{Name: "a", Interaction: noop, Params: []Param{str("x.y", true)}},
			wantErr: "option name",
		},
		{name: "context menu keeps display name", spec: Spec{Name: "Quote!", ContextMenu: MenuMessage, Interaction: noop}},
		{
			name:    "context menu needs interaction",
			spec:    Spec{Name: "a", Text: noop, ContextMenu: MenuMessage},
			wantErr: "context menu",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
