package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keshon/herald/pkg/retrylimit"
)

// ErrCountryNotFound is returned when the stats API does not know a country.
var ErrCountryNotFound = errors.New("country not found")

type CountryStats struct {
	Country     string `json:"country"`
	CountryInfo struct {
		Flag string `json:"flag"`
	} `json:"countryInfo"`
	Updated             int64   `json:"updated"`
	Cases               int64   `json:"cases"`
	TodayCases          int64   `json:"todayCases"`
	Deaths              int64   `json:"deaths"`
	TodayDeaths         int64   `json:"todayDeaths"`
	Recovered           int64   `json:"recovered"`
	Active              int64   `json:"active"`
	Critical            int64   `json:"critical"`
	CasesPerOneMillion  float64 `json:"casesPerOneMillion"`
	DeathsPerOneMillion float64 `json:"deathsPerOneMillion"`
}

// StatsClient talks to a disease.sh compatible API.
type StatsClient struct {
	base  string
	http  *http.Client
	lim   *retrylimit.AdaptiveLimiter
	retry retrylimit.RetryConfig
}

func NewStatsClient(baseURL string, hc *http.Client) *StatsClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 3
	return &StatsClient{
		base:  strings.TrimRight(baseURL, "/"),
		http:  hc,
		lim:   retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
		retry: retry,
	}
}

// Country fetches the current statistics for one country.
func (c *StatsClient) Country(ctx context.Context, name string) (*CountryStats, error) {
	endpoint := c.base + "/countries/" + url.PathEscape(name)

	var out CountryStats
	err := retrylimit.WithRetryConfig(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &retrylimit.FatalError{Err: err}
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return &retrylimit.FatalError{Err: ErrCountryNotFound}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &retrylimit.StatusError{Code: resp.StatusCode, Status: resp.Status}
		case resp.StatusCode != http.StatusOK:
			return &retrylimit.FatalError{Err: &retrylimit.StatusError{Code: resp.StatusCode, Status: resp.Status}}
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return &retrylimit.FatalError{Err: fmt.Errorf("decode stats: %w", err)}
		}
		return nil
	}, c.lim, c.retry)
	if err != nil {
		return nil, fmt.Errorf("covid stats for %q: %w", name, err)
	}
	return &out, nil
}
