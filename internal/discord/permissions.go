package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/herald/pkg/perm"
)

var permissionBits = map[string]int64{
	perm.Administrator:      discordgo.PermissionAdministrator,
	perm.CreateInvite:       discordgo.PermissionCreateInstantInvite,
	perm.KickMembers:        discordgo.PermissionKickMembers,
	perm.BanMembers:         discordgo.PermissionBanMembers,
	perm.ManageChannels:     discordgo.PermissionManageChannels,
	perm.AddReactions:       discordgo.PermissionAddReactions,
	perm.ViewAuditLog:       discordgo.PermissionViewAuditLogs,
	perm.ViewChannel:        discordgo.PermissionViewChannel,
	perm.SendMessages:       discordgo.PermissionSendMessages,
	perm.SendTTSMessages:    discordgo.PermissionSendTTSMessages,
	perm.ManageMessages:     discordgo.PermissionManageMessages,
	perm.EmbedLinks:         discordgo.PermissionEmbedLinks,
	perm.AttachFiles:        discordgo.PermissionAttachFiles,
	perm.ReadMessageHistory: discordgo.PermissionReadMessageHistory,
	perm.MentionEveryone:    discordgo.PermissionMentionEveryone,
	perm.UseExternalEmojis:  discordgo.PermissionUseExternalEmojis,
	perm.Connect:            discordgo.PermissionVoiceConnect,
	perm.Speak:              discordgo.PermissionVoiceSpeak,
	perm.ChangeNickname:     discordgo.PermissionChangeNickname,
	perm.ManageNicknames:    discordgo.PermissionManageNicknames,
	perm.ManageRoles:        discordgo.PermissionManageRoles,
	perm.ManageWebhooks:     discordgo.PermissionManageWebhooks,
	perm.ManageThreads:      discordgo.PermissionManageThreads,
	perm.ModerateMembers:    discordgo.PermissionModerateMembers,
}

// directMessagePermissions is what both sides effectively hold in a DM.
var directMessagePermissions = perm.NewSet(
	perm.ViewChannel,
	perm.SendMessages,
	perm.EmbedLinks,
	perm.AttachFiles,
	perm.AddReactions,
	perm.ReadMessageHistory,
	perm.UseExternalEmojis,
)

// permissionSet maps a Discord permission bitfield to capability tokens.
func permissionSet(bits int64) perm.Set {
	var tokens []string
	for token, bit := range permissionBits {
		if bits&bit == bit {
			tokens = append(tokens, token)
		}
	}
	return perm.NewSet(tokens...)
}

// permissionBitfield is the inverse of permissionSet; unknown tokens are dropped.
func permissionBitfield(s perm.Set) int64 {
	var bits int64
	for _, t := range s.Tokens() {
		bits |= permissionBits[t]
	}
	return bits
}

// channelCapabilities resolves permissions for a chat message from guild state.
type channelCapabilities struct {
	api       api
	self      string
	caller    string
	channelID string
	guildID   string
}

func (c *channelCapabilities) Capabilities(context.Context) (perm.Set, perm.Set, error) {
	if c.guildID == "" {
		return directMessagePermissions, directMessagePermissions, nil
	}
	callerBits, err := c.api.ChannelPermissions(c.caller, c.channelID)
	if err != nil {
		return perm.Set{}, perm.Set{}, fmt.Errorf("caller permissions: %w", err)
	}
	agentBits, err := c.api.ChannelPermissions(c.self, c.channelID)
	if err != nil {
		return perm.Set{}, perm.Set{}, fmt.Errorf("bot permissions: %w", err)
	}
	return permissionSet(callerBits), permissionSet(agentBits), nil
}

// interactionCapabilities takes the caller's permissions from the interaction
// payload, which already includes channel overwrites.
type interactionCapabilities struct {
	api       api
	self      string
	channelID string
	inGuild   bool
	caller    int64
}

func (c *interactionCapabilities) Capabilities(context.Context) (perm.Set, perm.Set, error) {
	if !c.inGuild {
		return directMessagePermissions, directMessagePermissions, nil
	}
	agentBits, err := c.api.ChannelPermissions(c.self, c.channelID)
	if err != nil {
		return perm.Set{}, perm.Set{}, fmt.Errorf("bot permissions: %w", err)
	}
	return permissionSet(c.caller), permissionSet(agentBits), nil
}
