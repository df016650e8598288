package discord

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/herald/pkg/cmd"
	"github.com/keshon/herald/pkg/jobmgr"
	"github.com/keshon/herald/pkg/retrylimit"
	"github.com/keshon/herald/pkg/util"
)

const (
	maxDescription     = 100
	defaultDescription = "No description"
)

var optionTypes = map[cmd.ParamType]discordgo.ApplicationCommandOptionType{
	cmd.String:  discordgo.ApplicationCommandOptionString,
	cmd.Integer: discordgo.ApplicationCommandOptionInteger,
	cmd.Number:  discordgo.ApplicationCommandOptionNumber,
	cmd.Boolean: discordgo.ApplicationCommandOptionBoolean,
	cmd.User:    discordgo.ApplicationCommandOptionUser,
	cmd.Channel: discordgo.ApplicationCommandOptionChannel,
	cmd.Role:    discordgo.ApplicationCommandOptionRole,
}

// applicationCommand derives the Discord definition of s. Specs without an
// interaction entry point are not registered and yield nil.
func applicationCommand(s *cmd.Spec) *discordgo.ApplicationCommand {
	if s.Interaction == nil {
		return nil
	}

	def := &discordgo.ApplicationCommand{Name: s.Name}
	switch s.ContextMenu {
	case cmd.MenuMessage:
		def.Type = discordgo.MessageApplicationCommand
	case cmd.MenuUser:
		def.Type = discordgo.UserApplicationCommand
	default:
		def.Type = discordgo.ChatApplicationCommand
		def.Name = strings.ToLower(s.Name)
		def.Description = truncate(s.Description, defaultDescription)
		for _, p := range s.Params {
			def.Options = append(def.Options, &discordgo.ApplicationCommandOption{
				Name:        strings.ToLower(p.Name),
				Description: truncate(p.Description, p.Name),
				Type:        optionTypes[p.Type],
				Required:    p.Required,
			})
		}
	}

	if s.CallerPermissions.Len() > 0 {
		bits := permissionBitfield(s.CallerPermissions)
		def.DefaultMemberPermissions = &bits
	}
	if s.GuildOnly {
		dm := false
		def.DMPermission = &dm
	}
	return def
}

func truncate(s, fallback string) string {
	if s == "" {
		s = fallback
	}
	if r := []rune(s); len(r) > maxDescription {
		return string(r[:maxDescription-1]) + "…"
	}
	return s
}

// definitions returns the application commands for everything registered.
func (b *Bot) definitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for s := range b.commands.List("") {
		if def := applicationCommand(s); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// syncGuilds registers application commands in every guild, a few at a time.
// A failing guild does not stop the others.
func (b *Bot) syncGuilds(ctx context.Context, guildIDs []string) error {
	log.Info().Int("guilds", len(guildIDs)).Msg("syncing application commands")
	return util.Parallel(ctx, guildIDs, b.cfg.SyncWorkers, b.syncGuildOnce)
}

// syncGuildOnce skips a guild whose sync is already in flight, as happens
// when guild_create arrives while the ready sync is still running.
func (b *Bot) syncGuildOnce(ctx context.Context, guildID string) error {
	err := b.jobs.Run(ctx, "command-sync:"+guildID, func(ctx context.Context) error {
		return b.syncGuild(ctx, guildID)
	})
	if errors.Is(err, jobmgr.ErrRunning) {
		log.Debug().Str("guild", guildID).Msg("command sync already running")
		return nil
	}
	return err
}

// syncGuild deletes obsolete commands and (re)creates those whose definition
// changed since the last sync, as recorded by their stored hashes.
func (b *Bot) syncGuild(ctx context.Context, guildID string) error {
	appID := b.self()
	if appID == "" {
		return errors.New("application id unknown before ready")
	}
	logger := log.With().Str("guild", guildID).Logger()

	var remote []*discordgo.ApplicationCommand
	err := b.rest(ctx, func() error {
		var err error
		remote, err = b.api.Commands(appID, guildID)
		return err
	})
	if err != nil {
		return fmt.Errorf("guild %s: list commands: %w", guildID, err)
	}

	cached, err := b.hashes.CommandHashes(guildID)
	if err != nil {
		return fmt.Errorf("guild %s: load command hashes: %w", guildID, err)
	}
	hashes := maps.Clone(cached)
	if hashes == nil {
		hashes = make(map[string]string)
	}

	local := b.definitions()
	wanted := make(map[string]bool, len(local))
	for _, d := range local {
		wanted[d.Name] = true
	}
	registered := make(map[string]bool, len(remote))

	var errs []error
	for _, rc := range remote {
		if wanted[rc.Name] {
			registered[rc.Name] = true
			continue
		}
		err := b.rest(ctx, func() error { return b.api.DeleteCommand(appID, guildID, rc.ID) })
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", rc.Name, err))
			continue
		}
		logger.Info().Str("command", rc.Name).Msg("deleted obsolete command")
		delete(hashes, rc.Name)
	}

	created := 0
	for _, d := range local {
		h := hashCommand(d)
		if registered[d.Name] && hashes[d.Name] == h {
			continue
		}
		err := b.rest(ctx, func() error { return b.api.CreateCommand(appID, guildID, d) })
		if err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", d.Name, err))
			continue
		}
		hashes[d.Name] = h
		created++
	}

	if err := b.hashes.SetCommandHashes(guildID, hashes); err != nil {
		errs = append(errs, fmt.Errorf("save command hashes: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("guild %s: %w", guildID, err)
	}

	b.synced.Store(guildID, struct{}{})
	logger.Info().Int("registered", created).Int("total", len(local)).Msg("commands synced")
	return nil
}

// rest runs one REST call under the shared limiter. Client errors other than
// 429 are not retried.
func (b *Bot) rest(ctx context.Context, fn func() error) error {
	return retrylimit.WithRetryConfig(ctx, func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var re *discordgo.RESTError
		if !errors.As(err, &re) || re.Response == nil {
			return err
		}
		code := re.Response.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return &retrylimit.FatalError{Err: err}
		}
		return &restError{err: re, code: code}
	}, b.lim, b.retry)
}

// restError exposes a REST error's status to the retry classifier.
type restError struct {
	err  *discordgo.RESTError
	code int
}

func (e *restError) Error() string   { return e.err.Error() }
func (e *restError) Unwrap() error   { return e.err }
func (e *restError) StatusCode() int { return e.code }
