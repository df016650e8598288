package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/keshon/herald/internal/app"
	"github.com/keshon/herald/internal/config"
	"github.com/keshon/herald/pkg/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newCommand().Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "herald:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "env-file", Aliases: []string{"e"}, Usage: "load environment variables from this file instead of .env", Sources: cli.EnvVars("HERALD_ENV_FILE")},
		&cli.StringFlag{Name: "manifest", Aliases: []string{"m"}, Usage: "YAML command manifest overriding COMMAND_MANIFEST", Sources: cli.EnvVars("HERALD_MANIFEST")},
	}

	return &cli.Command{
		Name:   "herald",
		Usage:  "Discord command and event dispatch bot",
		Flags:  flags,
		Action: run,
		Commands: []*cli.Command{
			{
				Name:   "commands",
				Usage:  "print the loaded commands by category",
				Action: listCommands,
			},
		},
	}
}

func options(c *cli.Command, logs io.Writer) app.Options {
	return app.Options{
		EnvFile:   c.String("env-file"),
		Manifest:  c.String("manifest"),
		LogOutput: logs,
	}
}

func run(ctx context.Context, c *cli.Command) error {
	a, err := app.New(options(c, nil))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Msg("starting herald")
	if err := a.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("herald exited cleanly")
	return nil
}

func listCommands(_ context.Context, c *cli.Command) error {
	// Keep the listing free of log lines.
	a, err := app.New(options(c, io.Discard))
	if err != nil {
		return err
	}
	defer a.Close()

	printCommands(c.Root().Writer, a.Commands())
	return nil
}

func printCommands(w io.Writer, reg *cmd.Registry) {
	for _, cat := range config.SortCategories(reg.Categories()) {
		fmt.Fprintf(w, "%s\n", cat)
		for s := range reg.List(cat) {
			fmt.Fprintf(w, "  %-12s %s", s.Name, s.Description)
			var tags []string
			if len(s.Aliases) > 0 {
				tags = append(tags, "aliases: "+strings.Join(s.Aliases, ", "))
			}
			if s.Text != nil {
				tags = append(tags, "text")
			}
			if s.Interaction != nil {
				tags = append(tags, "slash")
			}
			fmt.Fprintf(w, " [%s]\n", strings.Join(tags, "; "))
		}
	}
}
