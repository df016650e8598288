package perm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSet(t *testing.T) {
	s := NewSet(" embed_links", "SEND_MESSAGES", "EMBED_LINKS", "")

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{EmbedLinks, SendMessages}, s.Tokens())
	assert.True(t, s.Has(EmbedLinks))
	assert.False(t, s.Has(ManageRoles))
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		required    Set
		held        Set
		wantOK      bool
		wantMissing string
	}{
		{
			name:   "nothing required",
			held:   NewSet(),
			wantOK: true,
		},
		{
			name:     "all held",
			required: NewSet(EmbedLinks, SendMessages),
			held:     NewSet(SendMessages, EmbedLinks, AttachFiles),
			wantOK:   true,
		},
		{
			name:        "one missing",
			required:    NewSet(EmbedLinks, SendMessages),
			held:        NewSet(SendMessages),
			wantMissing: EmbedLinks,
		},
		{
			name:        "first missing is reported",
			required:    NewSet(ManageRoles, BanMembers),
			held:        NewSet(),
			wantMissing: BanMembers,
		},
		{
			name:     "administrator grants everything",
			required: NewSet(ManageRoles, BanMembers),
			held:     NewSet(Administrator),
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, missing := Check(tt.required, tt.held)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMissing, missing)
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Embed Links", Label(EmbedLinks))
	assert.Equal(t, "CUSTOM_TOKEN", Label("CUSTOM_TOKEN"))
}

func TestUnion(t *testing.T) {
	u := NewSet(SendMessages).Union(NewSet(EmbedLinks, SendMessages))

	assert.Equal(t, "EMBED_LINKS,SEND_MESSAGES", u.String())
}
