package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/herald/internal/config"
	"github.com/keshon/herald/pkg/cmd"
	"github.com/keshon/herald/pkg/perm"
	"github.com/keshon/herald/pkg/util"
)

const (
	discordMaxMessageLength = 2000
	codeLeftBlockWrapper    = "```md"
	codeRightBlockWrapper   = "```"
)

var maxContentLength = discordMaxMessageLength - len(codeLeftBlockWrapper) - len(codeRightBlockWrapper) - 1

func history(store HistoryStore) cmd.Spec {
	run := func(_ context.Context, c *cmd.Context) (cmd.Reply, error) {
		records, err := store.FetchCommandHistory(c.GuildID)
		if err != nil {
			return cmd.Reply{}, fmt.Errorf("fetch history: %w", err)
		}
		if len(records) == 0 {
			return cmd.Reply{Content: "No command history found.", Ephemeral: true}, nil
		}

		var builder strings.Builder
		builder.WriteString(fmt.Sprintf("%-16s\t%-15s\t%-12s\t%s\n", "# Datetime", "# Username", "# Origin", "# Command"))

		for idx := len(records) - 1; idx >= 0; idx-- {
			rec := records[idx]
			entry := fmt.Sprintf("%-16s\t%-15s\t%-12s\t%s\n",
				util.FormatDateTpl(rec.Datetime.UnixMilli(), "YYYY-MM-DD hh:mm"),
				rec.Username,
				rec.Origin,
				rec.Command,
			)
			if builder.Len()+len(entry) > maxContentLength {
				break
			}
			builder.WriteString(entry)
		}

		return cmd.Reply{
			Content:   codeLeftBlockWrapper + "\n" + builder.String() + codeRightBlockWrapper,
			Ephemeral: true,
		}, nil
	}
	return cmd.Spec{
		Name:              "history",
		Aliases:           []string{"log"},
		Description:       "Review recently used commands",
		Category:          config.CategoryMaintenance,
		CallerPermissions: perm.NewSet(perm.ManageMessages),
		GuildOnly:         true,
		Ephemeral:         true,
		Text:              run,
		Interaction:       run,
	}
}
