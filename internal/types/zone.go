package types

import (
	"fmt"
	"strings"
)

// BoundingBox represents a geographic bounding box in WGS84 (EPSG:4326).
type BoundingBox struct {
	MinLon float64 // Western edge (degrees)
	MinLat float64 // Southern edge (degrees)
	MaxLon float64 // Eastern edge (degrees)
	MaxLat float64 // Northern edge (degrees)
}

// Center returns the center point of the bounding box.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// ExpandByFraction grows the box by the given fraction of its width and
// height on every side, so footprints straddling the edge are still caught.
func (b BoundingBox) ExpandByFraction(fraction float64) BoundingBox {
	if fraction <= 0 {
		return b
	}
	dLon := (b.MaxLon - b.MinLon) * fraction
	dLat := (b.MaxLat - b.MinLat) * fraction
	return BoundingBox{
		MinLon: b.MinLon - dLon,
		MinLat: b.MinLat - dLat,
		MaxLon: b.MaxLon + dLon,
		MaxLat: b.MaxLat + dLat,
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%f, %f) - (%f, %f)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Zone is a named geographic region selectable by the user, the unit for
// which buildings are fetched.
type Zone struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	State              string      `json:"state"`
	BBox               BoundingBox `json:"bbox"`
	EstimatedBuildings int         `json:"estimated_buildings"`
	OSMRelationID      int64       `json:"osm_relation_id,omitempty"`
}

// MajorZones is the built-in Malaysia zone catalog.
var MajorZones = []Zone{
	{
		ID:                 "kuala_lumpur",
		Name:               "Kuala Lumpur",
		State:              "Federal Territory",
		BBox:               BoundingBox{MinLon: 101.6, MinLat: 3.05, MaxLon: 101.75, MaxLat: 3.25},
		EstimatedBuildings: 285000,
		OSMRelationID:      1124314,
	},
	{
		ID:                 "george_town",
		Name:               "George Town",
		State:              "Penang",
		BBox:               BoundingBox{MinLon: 100.25, MinLat: 5.35, MaxLon: 100.45, MaxLat: 5.55},
		EstimatedBuildings: 95000,
		OSMRelationID:      1116080,
	},
	{
		ID:                 "johor_bahru",
		Name:               "Johor Bahru",
		State:              "Johor",
		BBox:               BoundingBox{MinLon: 103.7, MinLat: 1.45, MaxLon: 103.85, MaxLat: 1.55},
		EstimatedBuildings: 85000,
		OSMRelationID:      1116268,
	},
	{
		ID:                 "ipoh",
		Name:               "Ipoh",
		State:              "Perak",
		BBox:               BoundingBox{MinLon: 101.0, MinLat: 4.55, MaxLon: 101.18, MaxLat: 4.65},
		EstimatedBuildings: 70000,
		OSMRelationID:      1116269,
	},
	{
		ID:                 "shah_alam",
		Name:               "Shah Alam",
		State:              "Selangor",
		BBox:               BoundingBox{MinLon: 101.45, MinLat: 3.0, MaxLon: 101.6, MaxLat: 3.15},
		EstimatedBuildings: 60000,
		OSMRelationID:      1116270,
	},
}

// NormalizeZoneID converts a user-facing zone name to its catalog id form
// ("George Town" -> "george_town").
func NormalizeZoneID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "-", "_")
	return id
}

// LookupZone finds a catalog zone by id or display name.
func LookupZone(name string) (Zone, bool) {
	id := NormalizeZoneID(name)
	for _, z := range MajorZones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}
