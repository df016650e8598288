// Package discord connects the dispatch core to a Discord gateway session:
// it forwards gateway events to the event registry, turns messages and
// interactions into invocations, and keeps application commands in sync.
package discord

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/herald/internal/dispatch"
	"github.com/keshon/herald/pkg/cmd"
	"github.com/keshon/herald/pkg/events"
	"github.com/keshon/herald/pkg/jobmgr"
	"github.com/keshon/herald/pkg/retrylimit"
)

// Dispatcher runs one invocation end to end.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv cmd.Invocation) (dispatch.Outcome, error)
}

// HashStore persists the hash of each synced application command per guild.
type HashStore interface {
	CommandHashes(guildID string) (map[string]string, error)
	SetCommandHashes(guildID string, hashes map[string]string) error
}

type Config struct {
	Token          string
	GuildBlacklist []string
	// SyncCommands registers application commands on ready and guild join.
	SyncCommands bool
	// SyncWorkers bounds how many guilds are synced at once.
	SyncWorkers int
}

// Bot is a Discord bot
type Bot struct {
	cfg        Config
	dg         *discordgo.Session
	api        api
	events     *events.Registry
	dispatcher Dispatcher
	commands   *cmd.Registry
	hashes     HashStore
	lim        *retrylimit.AdaptiveLimiter
	retry      retrylimit.RetryConfig
	jobs       *jobmgr.Manager

	ctx    context.Context
	selfID string
	mu     sync.RWMutex
	synced sync.Map // guildID -> struct{}
}

// New creates the session without connecting it.
func New(cfg Config, ev *events.Registry, d Dispatcher, commands *cmd.Registry, hashes HashStore) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	b := newBot(cfg, sessionAPI{dg}, ev, d, commands, hashes)
	b.dg = dg
	return b, nil
}

func newBot(cfg Config, a api, ev *events.Registry, d Dispatcher, commands *cmd.Registry, hashes HashStore) *Bot {
	if cfg.SyncWorkers <= 0 {
		cfg.SyncWorkers = 4
	}
	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 5
	return &Bot{
		cfg:        cfg,
		api:        a,
		events:     ev,
		dispatcher: d,
		commands:   commands,
		hashes:     hashes,
		lim:        retrylimit.NewAdaptiveLimiter(5, 1, 40, 1, 0.5),
		retry:      retry,
		jobs:       jobmgr.NewManager(),
		ctx:        context.Background(),
	}
}

// Latency is the last heartbeat round trip.
func (b *Bot) Latency() time.Duration {
	if b.dg == nil {
		return 0
	}
	return b.dg.HeartbeatLatency()
}

// Run opens the gateway connection and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	b.configureIntents()

	b.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { b.emit(events.Ready, r) })
	b.dg.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) { b.emit(events.GuildCreate, g) })
	b.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { b.emit(events.MessageCreate, m) })
	b.dg.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) { b.emit(events.InteractionCreate, i) })

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, closing gateway session")
	b.jobs.Wait()
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
}

// emit hands a gateway event to the registry. Failures are already logged there.
func (b *Bot) emit(t events.Type, payload any) {
	_ = b.events.Dispatch(b.ctx, t, payload)
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.GuildBlacklist, guildID)
}

func (b *Bot) setSelf(id string) {
	b.mu.Lock()
	b.selfID = id
	b.mu.Unlock()
}

func (b *Bot) self() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selfID
}

// api is the slice of the REST client the adapter uses.
type api interface {
	SendMessage(channelID string, m *discordgo.MessageSend) error
	Respond(i *discordgo.Interaction, r *discordgo.InteractionResponse) error
	Followup(i *discordgo.Interaction, p *discordgo.WebhookParams) error
	DeleteResponse(i *discordgo.Interaction) error
	ChannelPermissions(userID, channelID string) (int64, error)
	Commands(appID, guildID string) ([]*discordgo.ApplicationCommand, error)
	CreateCommand(appID, guildID string, c *discordgo.ApplicationCommand) error
	DeleteCommand(appID, guildID, id string) error
	LeaveGuild(guildID string) error
}

type sessionAPI struct{ s *discordgo.Session }

func (a sessionAPI) SendMessage(channelID string, m *discordgo.MessageSend) error {
	_, err := a.s.ChannelMessageSendComplex(channelID, m)
	return err
}

func (a sessionAPI) Respond(i *discordgo.Interaction, r *discordgo.InteractionResponse) error {
	return a.s.InteractionRespond(i, r)
}

func (a sessionAPI) Followup(i *discordgo.Interaction, p *discordgo.WebhookParams) error {
	_, err := a.s.FollowupMessageCreate(i, true, p)
	return err
}

func (a sessionAPI) DeleteResponse(i *discordgo.Interaction) error {
	return a.s.InteractionResponseDelete(i)
}

func (a sessionAPI) ChannelPermissions(userID, channelID string) (int64, error) {
	return a.s.UserChannelPermissions(userID, channelID)
}

func (a sessionAPI) Commands(appID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	return a.s.ApplicationCommands(appID, guildID)
}

func (a sessionAPI) CreateCommand(appID, guildID string, c *discordgo.ApplicationCommand) error {
	_, err := a.s.ApplicationCommandCreate(appID, guildID, c)
	return err
}

func (a sessionAPI) DeleteCommand(appID, guildID, id string) error {
	return a.s.ApplicationCommandDelete(appID, guildID, id)
}

func (a sessionAPI) LeaveGuild(guildID string) error {
	return a.s.GuildLeave(guildID)
}
