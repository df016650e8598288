package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/herald/pkg/cmd"
)

// channelSink replies to a chat message in its channel. Discord has no
// ephemeral channel messages, so the flag is ignored here.
type channelSink struct {
	api       api
	channelID string
	guildID   string
	replyTo   string
}

func (s *channelSink) Send(_ context.Context, r cmd.Reply) error {
	msg := &discordgo.MessageSend{
		Content: r.Content,
		Embeds:  toEmbeds(r.Embeds),
	}
	if s.replyTo != "" {
		msg.Reference = &discordgo.MessageReference{
			MessageID: s.replyTo,
			ChannelID: s.channelID,
			GuildID:   s.guildID,
		}
	}
	return s.api.SendMessage(s.channelID, msg)
}

// interactionSink answers an interaction. Once deferred, the reply goes out
// as a followup. Discord takes the visibility of the first followup from the
// deferred response, so a reply whose visibility differs replaces the
// placeholder with a fresh followup instead.
type interactionSink struct {
	api         api
	interaction *discordgo.Interaction

	mu        sync.Mutex
	deferred  bool
	ephemeral bool
	// answered is set once the deferred placeholder has been resolved.
	answered bool
}

func (s *interactionSink) Defer(_ context.Context, ephemeral bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deferred {
		return nil
	}
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	if err := s.api.Respond(s.interaction, resp); err != nil {
		return err
	}
	s.deferred, s.ephemeral = true, ephemeral
	return nil
}

// Discard deletes the deferred placeholder when no reply will follow.
func (s *interactionSink) Discard(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deferred || s.answered {
		return nil
	}
	s.answered = true
	return s.api.DeleteResponse(s.interaction)
}

func (s *interactionSink) Send(_ context.Context, r cmd.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flags discordgo.MessageFlags
	if r.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if !s.deferred {
		return s.api.Respond(s.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: r.Content,
				Embeds:  toEmbeds(r.Embeds),
				Flags:   flags,
			},
		})
	}

	if !s.answered && r.Ephemeral != s.ephemeral {
		if err := s.api.DeleteResponse(s.interaction); err != nil {
			return fmt.Errorf("replace deferred response: %w", err)
		}
	}
	s.answered = true
	return s.api.Followup(s.interaction, &discordgo.WebhookParams{
		Content: r.Content,
		Embeds:  toEmbeds(r.Embeds),
		Flags:   flags,
	})
}

func toEmbeds(in []cmd.Embed) []*discordgo.MessageEmbed {
	if len(in) == 0 {
		return nil
	}
	out := make([]*discordgo.MessageEmbed, 0, len(in))
	for _, e := range in {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			URL:         e.URL,
			Color:       e.Color,
		}
		if e.Thumbnail != "" {
			me.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.Format(time.RFC3339)
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		out = append(out, me)
	}
	return out
}
