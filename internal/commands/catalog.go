// Package commands holds the built-in command specs.
package commands

import (
	"iter"
	"time"

	"github.com/keshon/herald/internal/storage"
	"github.com/keshon/herald/pkg/cmd"
)

const embedColor = 0xb01e66

// Lister is the read side of a command registry.
type Lister interface {
	List(category string) iter.Seq[*cmd.Spec]
	Categories() []string
	Resolve(token string) (*cmd.Spec, bool)
}

// HistoryStore reads per-guild command history.
type HistoryStore interface {
	FetchCommandHistory(guildID string) ([]storage.CommandHistoryRecord, error)
}

// Deps are the collaborators the built-in commands call at run time.
type Deps struct {
	Commands Lister
	// Latency reports the gateway heartbeat round trip.
	Latency func() time.Duration
	History HistoryStore
	Stats   *StatsClient
	// SortCategories orders help sections.
	SortCategories func([]string) []string
}

// Catalog returns the built-in commands as a registry source. Commands whose
// collaborator is missing from d are left out.
func Catalog(d Deps) cmd.Source {
	return cmd.SourceFunc(func() ([]cmd.Spec, error) {
		specs := []cmd.Spec{ping(d)}
		if d.Commands != nil {
			specs = append(specs, help(d))
		}
		if d.Stats != nil {
			specs = append(specs, covid(d.Stats))
		}
		if d.History != nil {
			specs = append(specs, history(d.History))
		}
		return specs, nil
	})
}
