// Package perm evaluates capability requirements. Capabilities are opaque
// tokens compared by set membership; resolving which tokens a user or the bot
// holds in a given channel is the gateway adapter's job, not this package's.
package perm

import (
	"slices"
	"strings"
)

// Capability tokens known to the Discord adapter. Any other string is a valid
// token too, it just has no gateway mapping.
const (
	Administrator      = "ADMINISTRATOR"
	CreateInvite       = "CREATE_INSTANT_INVITE"
	KickMembers        = "KICK_MEMBERS"
	BanMembers         = "BAN_MEMBERS"
	ManageChannels     = "MANAGE_CHANNELS"
	AddReactions       = "ADD_REACTIONS"
	ViewAuditLog       = "VIEW_AUDIT_LOG"
	ViewChannel        = "VIEW_CHANNEL"
	SendMessages       = "SEND_MESSAGES"
	SendTTSMessages    = "SEND_TTS_MESSAGES"
	ManageMessages     = "MANAGE_MESSAGES"
	EmbedLinks         = "EMBED_LINKS"
	AttachFiles        = "ATTACH_FILES"
	ReadMessageHistory = "READ_MESSAGE_HISTORY"
	MentionEveryone    = "MENTION_EVERYONE"
	UseExternalEmojis  = "USE_EXTERNAL_EMOJIS"
	Connect            = "CONNECT"
	Speak              = "SPEAK"
	ChangeNickname     = "CHANGE_NICKNAME"
	ManageNicknames    = "MANAGE_NICKNAMES"
	ManageRoles        = "MANAGE_ROLES"
	ManageWebhooks     = "MANAGE_WEBHOOKS"
	ManageThreads      = "MANAGE_THREADS"
	ModerateMembers    = "MODERATE_MEMBERS"
)

var labels = map[string]string{
	Administrator:      "Administrator",
	CreateInvite:       "Create Instant Invite",
	KickMembers:        "Kick Members",
	BanMembers:         "Ban Members",
	ManageChannels:     "Manage Channels",
	AddReactions:       "Add Reactions",
	ViewAuditLog:       "View Audit Logs",
	ViewChannel:        "View Channel",
	SendMessages:       "Send Messages",
	SendTTSMessages:    "Send TTS Messages",
	ManageMessages:     "Manage Messages",
	EmbedLinks:         "Embed Links",
	AttachFiles:        "Attach Files",
	ReadMessageHistory: "Read Message History",
	MentionEveryone:    "Mention Everyone",
	UseExternalEmojis:  "Use External Emojis",
	Connect:            "Connect to Voice Channel",
	Speak:              "Speak",
	ChangeNickname:     "Change Nickname",
	ManageNicknames:    "Manage Nicknames",
	ManageRoles:        "Manage Roles",
	ManageWebhooks:     "Manage Webhooks",
	ManageThreads:      "Manage Threads",
	ModerateMembers:    "Moderate Members",
}

// Label returns the human readable name of a token, or the token itself.
func Label(token string) string {
	if l, ok := labels[token]; ok {
		return l
	}
	return token
}

// Set is an immutable, sorted, de-duplicated list of capability tokens.
type Set struct {
	tokens []string
}

// NewSet builds a set from tokens. Tokens are upper-cased and trimmed.
func NewSet(tokens ...string) Set {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return Set{tokens: slices.Compact(out)}
}

// Has reports whether the set contains token.
func (s Set) Has(token string) bool {
	_, ok := slices.BinarySearch(s.tokens, token)
	return ok
}

func (s Set) Len() int { return len(s.tokens) }

// Tokens returns a copy of the tokens in sorted order.
func (s Set) Tokens() []string { return slices.Clone(s.tokens) }

// Union returns a set holding the tokens of both sets.
func (s Set) Union(o Set) Set {
	return NewSet(append(s.Tokens(), o.tokens...)...)
}

func (s Set) String() string { return strings.Join(s.tokens, ",") }

// Check reports whether held satisfies every token in required. When it does
// not, missing is the first absent token in required's order. Administrator
// grants everything, matching Discord's own permission rules.
func Check(required, held Set) (ok bool, missing string) {
	if required.Len() == 0 || held.Has(Administrator) {
		return true, ""
	}
	for _, t := range required.tokens {
		if !held.Has(t) {
			return false, t
		}
	}
	return true, ""
}
