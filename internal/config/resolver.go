package config

import (
	"slices"
	"strings"
)

// Resolve returns the configured module IDs in load order: stores first,
// then providers, then everything else, each group sorted. Services a
// module registers during Provision are visible to modules loaded later.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if ra, rb := loadRank(a), loadRank(b); ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})
	return ids
}

// Without returns ids minus the excluded ones, preserving order.
func Without(ids []string, exclude ...string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(id string) bool {
		return slices.Contains(exclude, id)
	})
}

func loadRank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	switch ns {
	case "store":
		return 0
	case "provider":
		return 1
	default:
		return 2
	}
}
