package commands

import (
	"context"

	"github.com/keshon/herald/internal/config"
	"github.com/keshon/herald/pkg/cmd"
)

func ping(d Deps) cmd.Spec {
	run := func(context.Context, *cmd.Context) (cmd.Reply, error) {
		if d.Latency == nil {
			return cmd.Textf("🏓 Pong!"), nil
		}
		return cmd.Textf("🏓 Pong! Response time: `%dms`", d.Latency().Milliseconds()), nil
	}
	return cmd.Spec{
		Name:        "ping",
		Description: "Check if the bot is alive",
		Category:    config.CategoryInformation,
		Text:        run,
		Interaction: run,
	}
}
