package types

import (
	"fmt"
	"math"
)

// Building represents one OSM building footprint with optional physical and
// consumption attributes. Identity is positional (index in the source list);
// records arrive from untrusted input and coordinates must be validated
// before use.
type Building struct {
	Latitude           float64           `json:"latitude"`
	Longitude          float64           `json:"longitude"`
	BuildingType       string            `json:"building_type,omitempty"`
	SurfaceAreaM2      float64           `json:"surface_area_m2,omitempty"`
	BaseConsumptionKWH float64           `json:"base_consumption_kwh,omitempty"`
	FloorsCount        int               `json:"floors_count,omitempty"`
	OSMID              int64             `json:"osm_id,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
}

// HasValidCoordinates reports whether the building's coordinates are numeric
// and inside the WGS84 range.
func (b Building) HasValidCoordinates() bool {
	if math.IsNaN(b.Latitude) || math.IsInf(b.Latitude, 0) {
		return false
	}
	if math.IsNaN(b.Longitude) || math.IsInf(b.Longitude, 0) {
		return false
	}
	return b.Latitude >= -90 && b.Latitude <= 90 &&
		b.Longitude >= -180 && b.Longitude <= 180
}

// RenderedBuilding pairs a building with its classified marker color.
// It is derived state, recomputed on every render pass and never persisted.
type RenderedBuilding struct {
	Building Building
	Color    string
}

// LegendEntry is one row of the type-frequency legend built from the
// currently rendered set.
type LegendEntry struct {
	Type    string  `json:"type"`
	Color   string  `json:"color"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// String returns a human-readable legend row.
func (e LegendEntry) String() string {
	return fmt.Sprintf("%-16s %6d (%.1f%%)", e.Type, e.Count, e.Percent)
}
