package config

import (
	"cmp"
	"slices"
)

const (
	CategoryInformation = "🕯️ Information"
	CategoryUtilities   = "📢 Utilities"
	CategoryMaintenance = "🛠️ Maintenance"
)

// CategoryWeights orders help output; lighter categories come first.
var CategoryWeights = map[string]int{
	CategoryInformation: 0,
	CategoryUtilities:   10,
	"🧹 Cleanup":         45,
	"⚙️ Settings":       50,
	CategoryMaintenance: 60,
}

// SortCategories orders categories by weight. Unknown categories sort last,
// alphabetically.
func SortCategories(cats []string) []string {
	out := slices.Clone(cats)
	weight := func(c string) int {
		if w, ok := CategoryWeights[c]; ok {
			return w
		}
		return 1 << 16
	}
	slices.SortStableFunc(out, func(a, b string) int {
		if c := cmp.Compare(weight(a), weight(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return out
}
