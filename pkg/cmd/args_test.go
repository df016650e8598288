package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokens(t *testing.T) {
	params := []Param{
		{Name: "country", Type: String, Required: true},
		{Name: "days", Type: Integer},
	}

	tests := []struct {
		description string
		params      []Param
		tokens      []string
		want        map[string]any
		wantErr     string
	}{
		{
			description: "required only",
			params:      params,
			tokens:      []string{"france"},
			want:        map[string]any{"country": "france"},
		},
		{
			description: "required and optional",
			params:      params,
			tokens:      []string{"france", "7"},
			want:        map[string]any{"country": "france", "days": int64(7)},
		},
		{
			description: "missing required",
			params:      params,
			wantErr:     "country: missing required argument",
		},
		{
			description: "bad integer",
			params:      params,
			tokens:      []string{"france", "week"},
			wantErr:     "days: expected integer",
		},
		{
			description: "too many",
			params:      params,
			tokens:      []string{"a", "1", "extra"},
			wantErr:     "at most 2",
		},
		{
			description: "no schema no tokens",
			want:        map[string]any{},
		},
		{
			description: "greedy swallows rest",
			params:      []Param{{Name: "text", Type: String, Required: true, Greedy: true}},
			tokens:      []string{"hello", "there", "world"},
			want:        map[string]any{"text": "hello there world"},
		},
		{
			description: "user mention",
			params:      []Param{{Name: "who", Type: User, Required: true}},
			tokens:      []string{"<@!1234567890>"},
			want:        map[string]any{"who": "1234567890"},
		},
		{
			description: "bad user",
			params:      []Param{{Name: "who", Type: User, Required: true}},
			tokens:      []string{"bob"},
			wantErr:     "who: expected user",
		},
		{
			description: "boolean and number",
			params:      []Param{{Name: "on", Type: Boolean}, {Name: "ratio", Type: Number}},
			tokens:      []string{"yes", "0.5"},
			want:        map[string]any{"on": true, "ratio": 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			got, err := ParseTokens(tt.params, tt.tokens)
			if tt.wantErr != "" {
				var ae *ArgError
				require.ErrorAs(t, err, &ae)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Map())
		})
	}
}

func TestResolveOptions(t *testing.T) {
	params := []Param{
		{Name: "country", Type: String, Required: true},
		{Name: "days", Type: Integer},
	}

	got, err := ResolveOptions(params, map[string]any{"country": "france"})
	require.NoError(t, err)
	assert.Equal(t, "france", got.String("country"))
	assert.False(t, got.Has("days"))

	got, err = ResolveOptions(params, map[string]any{"country": "france", "days": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Int("days"))

	_, err = ResolveOptions(params, map[string]any{})
	assert.ErrorContains(t, err, "country: missing required option")

	_, err = ResolveOptions(params, map[string]any{"country": "france", "days": 1.5})
	assert.ErrorContains(t, err, "days: expected integer")

	_, err = ResolveOptions(params, map[string]any{"country": "france", "bogus": "x"})
	assert.ErrorContains(t, err, "bogus: unknown option")
}

func TestUsageHint(t *testing.T) {
	s := &Spec{Name: "say", Params: []Param{
		{Name: "channel", Type: Channel, Required: true},
		{Name: "text", Type: String, Greedy: true},
	}}
	assert.Equal(t, "!say <channel> [text...]", UsageHint("!", s))

	s = &Spec{Name: "covid", Usage: "<country>"}
	assert.Equal(t, "!covid <country>", UsageHint("!", s))

	assert.Equal(t, "/ping", UsageHint("/", &Spec{Name: "ping"}))
}
