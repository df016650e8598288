package commands

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/keshon/herald/internal/config"
	"github.com/keshon/herald/pkg/cmd"
	"github.com/keshon/herald/pkg/perm"
	"github.com/keshon/herald/pkg/util"
)

func covid(stats *StatsClient) cmd.Spec {
	run := func(ctx context.Context, c *cmd.Context) (cmd.Reply, error) {
		data, err := stats.Country(ctx, c.Args.String("country"))
		if errors.Is(err, ErrCountryNotFound) {
			return cmd.Textf("```css\nCountry with the provided name is not found```"), nil
		}
		if err != nil {
			return cmd.Reply{}, err
		}
		return cmd.EmbedReply(covidEmbed(data)), nil
	}
	return cmd.Spec{
		Name:             "covid",
		Description:      "Get covid statistics for a country",
		Category:         config.CategoryUtilities,
		Cooldown:         5 * time.Second,
		AgentPermissions: perm.NewSet(perm.EmbedLinks),
		Params: []cmd.Param{
			{Name: "country", Description: "country name to get covid statistics for", Type: cmd.String, Required: true, Greedy: true},
		},
		Text:        run,
		Interaction: run,
	}
}

func covidEmbed(d *CountryStats) cmd.Embed {
	count := func(n int64) string { return strconv.FormatInt(n, 10) }
	ratio := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

	e := cmd.Embed{
		Title:     "Covid - " + d.Country,
		Thumbnail: d.CountryInfo.Flag,
		Color:     embedColor,
		Fields: []cmd.Field{
			{Name: "Cases total", Value: count(d.Cases), Inline: true},
			{Name: "Cases today", Value: count(d.TodayCases), Inline: true},
			{Name: "Total deaths", Value: count(d.Deaths), Inline: true},
			{Name: "Deaths today", Value: count(d.TodayDeaths), Inline: true},
			{Name: "Recovered", Value: count(d.Recovered), Inline: true},
			{Name: "Active", Value: count(d.Active), Inline: true},
			{Name: "Critical stage", Value: count(d.Critical), Inline: true},
			{Name: "Cases per 1 million", Value: ratio(d.CasesPerOneMillion), Inline: true},
			{Name: "Deaths per 1 million", Value: ratio(d.DeathsPerOneMillion), Inline: true},
		},
	}
	if d.Updated != 0 {
		e.Footer = "Last updated on " + util.FormatDateTpl(d.Updated, "DD.MM.YYYY at hh:mm")
	}
	return e
}
