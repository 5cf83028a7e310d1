package render

import (
	"sort"

	"github.com/MeKo-Tech/gridmap/internal/types"
)

// LegendLimit caps the number of legend rows.
const LegendLimit = 8

// BuildLegend tallies type frequency across the rendered set, sorts
// descending by count and keeps the top rows. The legend reflects what is
// visible after sampling, not necessarily the true population.
func BuildLegend(rendered []types.RenderedBuilding, limit int) []types.LegendEntry {
	if limit <= 0 {
		limit = LegendLimit
	}
	if len(rendered) == 0 {
		return nil
	}

	counts := make(map[string]int)
	colors := make(map[string]string)
	for _, rb := range rendered {
		typ := rb.Building.BuildingType
		if typ == "" {
			typ = "unknown"
		}
		counts[typ]++
		if _, ok := colors[typ]; !ok {
			colors[typ] = rb.Color
		}
	}

	entries := make([]types.LegendEntry, 0, len(counts))
	total := float64(len(rendered))
	for typ, count := range counts {
		entries = append(entries, types.LegendEntry{
			Type:    typ,
			Color:   colors[typ],
			Count:   count,
			Percent: float64(count) / total * 100,
		})
	}

	// Descending by count, alphabetical tie-break for a stable ordering.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Type < entries[j].Type
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
