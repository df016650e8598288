package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/herald/internal/config"
	"github.com/keshon/herald/pkg/cmd"
)

func help(d Deps) cmd.Spec {
	run := func(_ context.Context, c *cmd.Context) (cmd.Reply, error) {
		prefix := c.Prefix
		if c.Origin == cmd.OriginInteraction {
			prefix = "/"
		}
		if name := c.Args.String("command"); name != "" {
			return commandHelp(d.Commands, prefix, name), nil
		}
		return cmd.EmbedReply(cmd.Embed{
			Title:       "📖 Available Commands",
			Description: buildHelpMessage(d, prefix),
			Color:       embedColor,
			Footer:      fmt.Sprintf("Use %shelp <command> for details", prefix),
		}), nil
	}
	return cmd.Spec{
		Name:        "help",
		Aliases:     []string{"commands"},
		Description: "Show a list of available commands",
		Category:    config.CategoryInformation,
		Params: []cmd.Param{
			{Name: "command", Description: "command to describe", Type: cmd.String},
		},
		Text:        run,
		Interaction: run,
	}
}

func buildHelpMessage(d Deps, prefix string) string {
	cats := d.Commands.Categories()
	if d.SortCategories != nil {
		cats = d.SortCategories(cats)
	}

	var sb strings.Builder
	for _, cat := range cats {
		fmt.Fprintf(&sb, "**%s**\n", cat)
		for s := range d.Commands.List(cat) {
			fmt.Fprintf(&sb, "`%s%s` - %s\n", prefix, s.Name, s.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func commandHelp(commands Lister, prefix, name string) cmd.Reply {
	s, ok := commands.Resolve(name)
	if !ok {
		return cmd.Reply{Content: fmt.Sprintf("No command called `%s`.", name), Ephemeral: true}
	}

	e := cmd.Embed{
		Title:       s.Name,
		Description: s.Description,
		Color:       embedColor,
		Fields: []cmd.Field{
			{Name: "Usage", Value: "`" + cmd.UsageHint(prefix, s) + "`"},
		},
	}
	if len(s.Aliases) > 0 {
		e.Fields = append(e.Fields, cmd.Field{Name: "Aliases", Value: strings.Join(s.Aliases, ", "), Inline: true})
	}
	if s.Cooldown > 0 {
		e.Fields = append(e.Fields, cmd.Field{Name: "Cooldown", Value: s.Cooldown.String(), Inline: true})
	}
	if s.GuildOnly {
		e.Footer = "Server only"
	}
	return cmd.EmbedReply(e)
}
