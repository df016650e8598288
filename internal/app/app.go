// Package app wires configuration, storage, the registries and the Discord
// session into one runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/keshon/herald/internal/commands"
	"github.com/keshon/herald/internal/config"
	"github.com/keshon/herald/internal/discord"
	"github.com/keshon/herald/internal/dispatch"
	"github.com/keshon/herald/internal/logging"
	"github.com/keshon/herald/internal/storage"
	"github.com/keshon/herald/pkg/cmd"
	"github.com/keshon/herald/pkg/cooldown"
	"github.com/keshon/herald/pkg/events"
	"github.com/keshon/herald/pkg/jobmgr"
)

type Options struct {
	// EnvFile is loaded before the environment is parsed; ".env" when empty.
	EnvFile string
	// Manifest overrides COMMAND_MANIFEST when set.
	Manifest string
	// LogOutput receives console logs; stderr when nil.
	LogOutput io.Writer
}

// App owns every long-lived component of the bot.
type App struct {
	cfg        *config.Config
	logs       io.Closer
	store      *storage.Storage
	commands   *cmd.Registry
	events     *events.Registry
	cooldowns  *cooldown.Tracker
	dispatcher *dispatch.Dispatcher
	bot        *discord.Bot
	jobs       *jobmgr.Manager
}

// New loads configuration and builds the bot without connecting it.
func New(o Options) (*App, error) {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return nil, err
	}
	if o.Manifest != "" {
		cfg.CommandManifest = o.Manifest
	}

	a := &App{
		cfg:       cfg,
		logs:      logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: o.LogOutput}),
		commands:  cmd.NewRegistry(),
		events:    events.NewRegistry(),
		cooldowns: cooldown.New(),
		jobs:      jobmgr.NewManager(),
	}

	a.store, err = storage.New(cfg.StoragePath)
	if err != nil {
		a.logs.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a.dispatcher = dispatch.New(
		dispatch.Config{Prefix: cfg.CommandPrefix, Timeout: cfg.HandlerTimeout},
		a.commands,
		a.cooldowns,
		dispatch.WithRecorder(a.store),
	)

	a.bot, err = discord.New(discord.Config{
		Token:          cfg.DiscordToken,
		GuildBlacklist: cfg.GuildBlacklist,
		SyncCommands:   cfg.SyncCommands,
	}, a.events, a.dispatcher, a.commands, a.store)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.load(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// load fills both registries. Either failing is fatal at startup.
func (a *App) load() error {
	deps := commands.Deps{
		Commands:       a.commands,
		Latency:        a.bot.Latency,
		History:        a.store,
		SortCategories: config.SortCategories,
	}
	if a.cfg.StatsAPIURL != "" {
		deps.Stats = commands.NewStatsClient(a.cfg.StatsAPIURL, nil)
	}

	if err := a.commands.Load(cmd.WithManifest(commands.Catalog(deps), a.cfg.CommandManifest)); err != nil {
		return fmt.Errorf("load commands: %w", err)
	}
	if err := a.events.Load(a.bot.EventHandlers()); err != nil {
		return fmt.Errorf("load event handlers: %w", err)
	}

	log.Info().
		Int("commands", a.commands.Len()).
		Str("prefix", a.cfg.CommandPrefix).
		Str("manifest", a.cfg.CommandManifest).
		Msg("registries loaded")
	return nil
}

// Commands is the loaded command registry.
func (a *App) Commands() *cmd.Registry { return a.commands }

// Run connects to Discord and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer a.jobs.Wait()
	defer cancel()

	err := a.jobs.Go(ctx, "cooldown-sweep", func(ctx context.Context) error {
		a.cooldowns.Run(ctx, a.cfg.CooldownSweep)
		return nil
	})
	if err != nil {
		return err
	}
	err = a.bot.Run(ctx)
	a.stopJobs()
	return err
}

// stopJobs stops whatever background work outlived the gateway session.
func (a *App) stopJobs() {
	log.Info().Str("jobs", a.jobs.Status()).Msg("stopping background jobs")
	for _, name := range a.jobs.List() {
		// The job may have returned on its own since List.
		if err := a.jobs.Stop(name); err != nil {
			log.Debug().Err(err).Msg("stop job")
		}
	}
}

// Close flushes storage and the log file.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
