package commands

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/herald/internal/config"
	"github.com/keshon/herald/internal/dispatch"
	"github.com/keshon/herald/internal/storage"
	"github.com/keshon/herald/pkg/cmd"
	"github.com/keshon/herald/pkg/cooldown"
	"github.com/keshon/herald/pkg/perm"
)

const franceJSON = `{
  "country": "France",
  "countryInfo": {"flag": "https://disease.sh/assets/img/flags/fr.png"},
  "updated": 1699603200000,
  "cases": 40138560,
  "todayCases": 12,
  "deaths": 167642,
  "todayDeaths": 0,
  "recovered": 39970918,
  "active": 0,
  "critical": 869,
  "casesPerOneMillion": 612013.5,
  "deathsPerOneMillion": 2556
}`

func statsServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch r.URL.Path {
		case "/countries/france":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(franceJSON))
		case "/countries/flaky":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastStats(url string) *StatsClient {
	c := NewStatsClient(url, nil)
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond
	c.retry.Jitter = false
	return c
}

type fakeHistory struct {
	records []storage.CommandHistoryRecord
	err     error
}

func (f fakeHistory) FetchCommandHistory(string) ([]storage.CommandHistoryRecord, error) {
	return f.records, f.err
}

type sink struct{ replies []cmd.Reply }

func (s *sink) Send(_ context.Context, r cmd.Reply) error {
	s.replies = append(s.replies, r)
	return nil
}

func load(t *testing.T, d Deps) *cmd.Registry {
	t.Helper()
	reg := cmd.NewRegistry()
	if d.Commands == nil {
		d.Commands = reg
	}
	require.NoError(t, reg.Load(Catalog(d)))
	return reg
}

func TestCatalogLoads(t *testing.T) {
	srv := statsServer(t, nil)
	reg := load(t, Deps{Stats: fastStats(srv.URL), History: fakeHistory{}})

	assert.Equal(t, 4, reg.Len())
	for _, name := range []string{"ping", "help", "commands", "covid", "history", "log"} {
		_, ok := reg.Resolve(name)
		assert.True(t, ok, name)
	}
}

func TestCatalogSkipsMissingDeps(t *testing.T) {
	reg := cmd.NewRegistry()
	require.NoError(t, reg.Load(Catalog(Deps{})))
	assert.Equal(t, 1, reg.Len())
}

func TestCovidInteractionThroughDispatcher(t *testing.T) {
	srv := statsServer(t, nil)
	reg := load(t, Deps{Stats: fastStats(srv.URL)})
	d := dispatch.New(dispatch.Config{Prefix: "!", Timeout: 5 * time.Second}, reg, cooldown.New())

	s := &sink{}
	out, err := d.Dispatch(context.Background(), &cmd.InteractionInvocation{
		Meta: cmd.Meta{
			Caller:       cmd.Caller{ID: "u1"},
			GuildID:      "g1",
			ChannelID:    "c1",
			Sink:         s,
			Capabilities: cmd.StaticCapabilities{Agent: perm.NewSet(perm.SendMessages, perm.EmbedLinks)},
		},
		Command: "covid",
		Options: map[string]any{"country": "france"},
	})

	require.NoError(t, err)
	assert.Equal(t, dispatch.Replied, out)
	require.Len(t, s.replies, 1)
	require.Len(t, s.replies[0].Embeds, 1)

	e := s.replies[0].Embeds[0]
	assert.Equal(t, "Covid - France", e.Title)
	assert.Equal(t, "Last updated on 10.11.2023 at 08:00", e.Footer)
	assert.Equal(t, cmd.Field{Name: "Cases total", Value: "40138560", Inline: true}, e.Fields[0])
	assert.Equal(t, "612013.5", e.Fields[7].Value)
}

func TestCovidWithoutEmbedLinks(t *testing.T) {
	var hits atomic.Int32
	srv := statsServer(t, &hits)
	reg := load(t, Deps{Stats: fastStats(srv.URL)})
	d := dispatch.New(dispatch.Config{Prefix: "!"}, reg, cooldown.New())

	s := &sink{}
	out, _ := d.Dispatch(context.Background(), &cmd.TextInvocation{
		Meta: cmd.Meta{
			Caller:       cmd.Caller{ID: "u1"},
			GuildID:      "g1",
			Sink:         s,
			Capabilities: cmd.StaticCapabilities{Agent: perm.NewSet(perm.SendMessages)},
		},
		Content: "!covid france",
	})

	assert.Equal(t, dispatch.Rejected, out)
	assert.Zero(t, hits.Load(), "stats API is never called")
}

func TestCovidTextTakesMultiWordCountry(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.Replace(franceJSON, "France", "UK", 1)))
	}))
	t.Cleanup(srv.Close)
	reg := load(t, Deps{Stats: fastStats(srv.URL)})
	d := dispatch.New(dispatch.Config{Prefix: "!"}, reg, cooldown.New())

	s := &sink{}
	out, err := d.Dispatch(context.Background(), &cmd.TextInvocation{
		Meta: cmd.Meta{
			Caller:       cmd.Caller{ID: "u1"},
			GuildID:      "g1",
			ChannelID:    "c1",
			Sink:         s,
			Capabilities: cmd.StaticCapabilities{Agent: perm.NewSet(perm.SendMessages, perm.EmbedLinks)},
		},
		Content: "!covid united kingdom",
	})

	require.NoError(t, err)
	assert.Equal(t, dispatch.Replied, out)
	assert.Equal(t, "/countries/united%20kingdom", path.Load())
	require.Len(t, s.replies, 1)
	require.Len(t, s.replies[0].Embeds, 1)
	assert.Equal(t, "Covid - UK", s.replies[0].Embeds[0].Title)
}

func TestCovidCountryNotFound(t *testing.T) {
	srv := statsServer(t, nil)
	spec := covid(fastStats(srv.URL))

	r, err := spec.Text(context.Background(), &cmd.Context{Args: cmd.NewArgs(map[string]any{"country": "atlantis"})})
	require.NoError(t, err)
	assert.Contains(t, r.Content, "not found")
}

func TestStatsClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := statsServer(t, &hits)

	_, err := fastStats(srv.URL).Country(context.Background(), "flaky")
	require.Error(t, err)
	assert.EqualValues(t, 3, hits.Load())
	assert.False(t, errors.Is(err, ErrCountryNotFound))
}

func TestHelp(t *testing.T) {
	reg := load(t, Deps{History: fakeHistory{}, SortCategories: config.SortCategories})
	spec, _ := reg.Resolve("help")

	r, err := spec.Text(context.Background(), &cmd.Context{Origin: cmd.OriginText, Prefix: "!"})
	require.NoError(t, err)
	require.Len(t, r.Embeds, 1)
	desc := r.Embeds[0].Description
	assert.Contains(t, desc, "`!ping` - Check if the bot is alive")
	assert.Less(t, strings.Index(desc, config.CategoryInformation), strings.Index(desc, config.CategoryMaintenance))

	r, err = spec.Interaction(context.Background(), &cmd.Context{
		Origin: cmd.OriginInteraction,
		Args:   cmd.NewArgs(map[string]any{"command": "log"}),
	})
	require.NoError(t, err)
	require.Len(t, r.Embeds, 1)
	assert.Equal(t, "history", r.Embeds[0].Title)
	assert.Equal(t, "`/history`", r.Embeds[0].Fields[0].Value)
	assert.Equal(t, "Server only", r.Embeds[0].Footer)

	r, err = spec.Text(context.Background(), &cmd.Context{Prefix: "!", Args: cmd.NewArgs(map[string]any{"command": "nope"})})
	require.NoError(t, err)
	assert.True(t, r.Ephemeral)
}

func TestPing(t *testing.T) {
	spec := ping(Deps{Latency: func() time.Duration { return 42 * time.Millisecond }})
	r, err := spec.Text(context.Background(), &cmd.Context{})
	require.NoError(t, err)
	assert.Equal(t, "🏓 Pong! Response time: `42ms`", r.Content)
}

func TestHistory(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	spec := history(fakeHistory{records: []storage.CommandHistoryRecord{
		{Username: "alice", Command: "ping", Origin: "text", Datetime: at},
		{Username: "bob", Command: "covid", Origin: "interaction", Datetime: at.Add(time.Minute)},
	}})

	r, err := spec.Text(context.Background(), &cmd.Context{GuildID: "g1"})
	require.NoError(t, err)
	assert.True(t, r.Ephemeral)
	assert.True(t, strings.HasPrefix(r.Content, "```md\n"))
	assert.Less(t, strings.Index(r.Content, "bob"), strings.Index(r.Content, "alice"), "newest first")
	assert.Contains(t, r.Content, "2024-03-01 12:31")

	r, err = history(fakeHistory{}).Text(context.Background(), &cmd.Context{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "No command history found.", r.Content)

	_, err = history(fakeHistory{err: errors.New("disk")}).Text(context.Background(), &cmd.Context{GuildID: "g1"})
	assert.ErrorContains(t, err, "disk")
}
