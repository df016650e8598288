package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DiscordToken    string        `env:"DISCORD_TOKEN,required,notEmpty"`
	CommandPrefix   string        `env:"COMMAND_PREFIX" envDefault:"!"`
	StoragePath     string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	CommandManifest string        `env:"COMMAND_MANIFEST"`
	HandlerTimeout  time.Duration `env:"HANDLER_TIMEOUT" envDefault:"30s"`
	CooldownSweep   time.Duration `env:"COOLDOWN_SWEEP" envDefault:"1m"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile         string        `env:"LOG_FILE"`
	GuildBlacklist  []string      `env:"GUILD_BLACKLIST" envSeparator:","`
	SyncCommands    bool          `env:"SYNC_COMMANDS" envDefault:"true"`
	StatsAPIURL     string        `env:"STATS_API_URL" envDefault:"https://disease.sh/v3/covid-19"`
}

// Load reads envFile (".env" when empty) into the process environment and
// parses it into a Config. A missing default .env is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		log.Info().Msg("No .env file found, falling back to system environment variables")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.HandlerTimeout < 0 {
		return nil, errors.New("HANDLER_TIMEOUT must not be negative")
	}
	return &cfg, nil
}
