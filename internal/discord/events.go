package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/herald/pkg/cmd"
	"github.com/keshon/herald/pkg/events"
)

// EventHandlers returns the adapter's built-in gateway event handlers.
func (b *Bot) EventHandlers() events.Source {
	return events.StaticSource{
		{Name: "session", Event: events.Ready, Handle: b.onReady},
		{Name: "guild-join", Event: events.GuildCreate, Handle: b.onGuildCreate},
		{Name: "text-commands", Event: events.MessageCreate, Handle: b.onMessageCreate},
		{Name: "interactions", Event: events.InteractionCreate, Handle: b.onInteractionCreate},
	}
}

func payloadError(want string, got any) error {
	return fmt.Errorf("unexpected payload %T, want %s", got, want)
}

func (b *Bot) onReady(ctx context.Context, payload any) error {
	r, ok := payload.(*discordgo.Ready)
	if !ok {
		return payloadError("*discordgo.Ready", payload)
	}
	if r.User != nil {
		b.setSelf(r.User.ID)
		log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord session ready")
	}

	var guildIDs []string
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(g.ID) {
			continue
		}
		guildIDs = append(guildIDs, g.ID)
	}

	if !b.cfg.SyncCommands {
		log.Info().Msg("application command sync skipped")
		return nil
	}
	return b.syncGuilds(ctx, guildIDs)
}

func (b *Bot) onGuildCreate(ctx context.Context, payload any) error {
	g, ok := payload.(*discordgo.GuildCreate)
	if !ok || g.Guild == nil {
		return payloadError("*discordgo.GuildCreate", payload)
	}
	log.Debug().Str("guild", g.ID).Str("name", g.Name).Msg("guild available")

	if b.leaveIfBlacklisted(g.ID) || !b.cfg.SyncCommands {
		return nil
	}
	if _, done := b.synced.Load(g.ID); done {
		return nil
	}
	return b.syncGuildOnce(ctx, g.ID)
}

// leaveIfBlacklisted leaves guildID when it is blacklisted and reports whether it did.
func (b *Bot) leaveIfBlacklisted(guildID string) bool {
	if !b.isGuildBlacklisted(guildID) {
		return false
	}
	log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := b.api.LeaveGuild(guildID); err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
	return true
}

func (b *Bot) onMessageCreate(ctx context.Context, payload any) error {
	m, ok := payload.(*discordgo.MessageCreate)
	if !ok || m.Message == nil {
		return payloadError("*discordgo.MessageCreate", payload)
	}
	inv := b.textInvocation(m.Message)
	if inv == nil {
		return nil
	}
	_, _ = b.dispatcher.Dispatch(ctx, inv)
	return nil
}

func (b *Bot) onInteractionCreate(ctx context.Context, payload any) error {
	i, ok := payload.(*discordgo.InteractionCreate)
	if !ok || i.Interaction == nil {
		return payloadError("*discordgo.InteractionCreate", payload)
	}
	if i.Type != discordgo.InteractionApplicationCommand {
		log.Debug().Int("type", int(i.Type)).Msg("ignoring interaction type")
		return nil
	}
	_, _ = b.dispatcher.Dispatch(ctx, b.interactionInvocation(i.Interaction))
	return nil
}

// textInvocation wraps a chat message. Messages from bots, including this
// one, are never invocations.
func (b *Bot) textInvocation(m *discordgo.Message) *cmd.TextInvocation {
	if m.Author == nil || m.Author.Bot || m.Author.ID == b.self() {
		return nil
	}
	return &cmd.TextInvocation{
		Meta: cmd.Meta{
			Caller:       cmd.Caller{ID: m.Author.ID, Name: m.Author.Username},
			GuildID:      m.GuildID,
			ChannelID:    m.ChannelID,
			Sink:         &channelSink{api: b.api, channelID: m.ChannelID, guildID: m.GuildID, replyTo: m.ID},
			Capabilities: &channelCapabilities{api: b.api, self: b.self(), caller: m.Author.ID, channelID: m.ChannelID, guildID: m.GuildID},
		},
		Content: m.Content,
	}
}

func (b *Bot) interactionInvocation(i *discordgo.Interaction) *cmd.InteractionInvocation {
	data := i.ApplicationCommandData()

	caller := cmd.Caller{}
	var callerPerms int64
	inGuild := i.Member != nil
	switch {
	case i.Member != nil && i.Member.User != nil:
		caller = cmd.Caller{ID: i.Member.User.ID, Name: i.Member.User.Username}
		callerPerms = i.Member.Permissions
	case i.User != nil:
		caller = cmd.Caller{ID: i.User.ID, Name: i.User.Username}
	}

	return &cmd.InteractionInvocation{
		Meta: cmd.Meta{
			Caller:    caller,
			GuildID:   i.GuildID,
			ChannelID: i.ChannelID,
			Sink:      &interactionSink{api: b.api, interaction: i},
			Capabilities: &interactionCapabilities{
				api:       b.api,
				self:      b.self(),
				channelID: i.ChannelID,
				inGuild:   inGuild,
				caller:    callerPerms,
			},
		},
		Command: data.Name,
		Options: optionValues(data.Options),
		Target:  target(data),
	}
}

// optionValues flattens top-level options into a name -> value map.
func optionValues(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	out := make(map[string]any, len(opts))
	for _, o := range opts {
		if o == nil || o.Value == nil {
			continue
		}
		out[o.Name] = o.Value
	}
	return out
}

func target(data discordgo.ApplicationCommandInteractionData) *cmd.Target {
	if data.TargetID == "" {
		return nil
	}
	t := &cmd.Target{ID: data.TargetID}
	switch data.CommandType {
	case discordgo.MessageApplicationCommand:
		t.Kind = cmd.MenuMessage
		if data.Resolved != nil {
			if m, ok := data.Resolved.Messages[data.TargetID]; ok && m != nil {
				t.Content = m.Content
			}
		}
	case discordgo.UserApplicationCommand:
		t.Kind = cmd.MenuUser
		if data.Resolved != nil {
			if u, ok := data.Resolved.Users[data.TargetID]; ok && u != nil {
				t.Content = u.Username
			}
		}
	}
	return t
}
