package datasource

import (
	"strconv"
	"strings"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/MeKo-Tech/gridmap/internal/types"
)

// consumptionSpecs gives base hourly consumption in kWh for a 100 m²
// reference building, by normalized type.
var consumptionSpecs = map[string]float64{
	"residential": 0.5,
	"commercial":  5.0,
	"industrial":  20.0,
	"office":      3.0,
	"hospital":    25.0,
	"school":      1.0,
	"hotel":       8.0,
	"religious":   1.0,
	"retail":      5.0,
	"warehouse":   20.0,
	"university":  3.0,
}

// ExtractBuildings converts an Overpass result into building records: one
// record per closed building way, positioned at the footprint centroid with
// a geodetic surface area.
func ExtractBuildings(result *overpass.Result) []types.Building {
	if result == nil {
		return nil
	}

	buildings := make([]types.Building, 0, len(result.Ways))
	for _, way := range result.Ways {
		b, ok := convertWay(way)
		if !ok {
			continue
		}
		buildings = append(buildings, b)
	}
	return buildings
}

// convertWay turns one building way into a record. Ways without a building
// tag, with explicit building=no, or with fewer than 3 geometry points are
// skipped.
func convertWay(way *overpass.Way) (types.Building, bool) {
	if way == nil || len(way.Geometry) < 3 {
		return types.Building{}, false
	}
	tag := way.Tags["building"]
	if tag == "" || tag == "no" || tag == "false" {
		return types.Building{}, false
	}

	ring := make(orb.Ring, len(way.Geometry))
	for i, p := range way.Geometry {
		ring[i] = orb.Point{p.Lon, p.Lat}
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	polygon := orb.Polygon{ring}

	centerLat, centerLon := centroid(ring)
	area := geo.Area(polygon)
	if area < 0 {
		area = -area
	}

	buildingType := normalizeType(tag, way.Tags)
	return types.Building{
		Latitude:           centerLat,
		Longitude:          centerLon,
		BuildingType:       buildingType,
		SurfaceAreaM2:      area,
		BaseConsumptionKWH: estimateBaseConsumption(buildingType, area),
		FloorsCount:        parseFloors(way.Tags),
		OSMID:              way.ID,
		Tags:               way.Tags,
	}, true
}

// centroid is the arithmetic mean of the ring's vertices, matching how the
// original footprint centers were computed. Good enough at building scale.
func centroid(ring orb.Ring) (lat, lon float64) {
	n := len(ring)
	if n == 0 {
		return 0, 0
	}
	// Skip the closing point so it isn't counted twice.
	if ring[0] == ring[n-1] && n > 1 {
		n--
	}
	var sumLat, sumLon float64
	for _, p := range ring[:n] {
		sumLon += p.Lon()
		sumLat += p.Lat()
	}
	return sumLat / float64(n), sumLon / float64(n)
}

// normalizeType folds raw OSM building values into the supported type set.
func normalizeType(buildingTag string, tags map[string]string) string {
	mapping := map[string]string{
		"house": "residential", "detached": "residential", "apartments": "residential",
		"residential": "residential", "terrace": "residential",
		"office": "office", "commercial": "commercial", "retail": "retail",
		"shop": "commercial", "industrial": "industrial", "warehouse": "warehouse",
		"factory": "industrial", "school": "school", "hospital": "hospital",
		"university": "university", "hotel": "hotel", "mosque": "religious",
		"temple": "religious", "church": "religious",
	}

	normalized, ok := mapping[strings.ToLower(buildingTag)]
	if !ok {
		normalized = "residential"
	}

	switch tags["amenity"] {
	case "school":
		normalized = "school"
	case "hospital":
		normalized = "hospital"
	case "university":
		normalized = "university"
	}
	if tags["landuse"] == "industrial" {
		normalized = "industrial"
	}
	if tags["shop"] != "" {
		normalized = "commercial"
	}
	return normalized
}

// estimateBaseConsumption scales the per-type hourly base consumption by
// footprint area against a 100 m² reference, bounded to sane limits.
func estimateBaseConsumption(buildingType string, surfaceAreaM2 float64) float64 {
	base, ok := consumptionSpecs[buildingType]
	if !ok {
		base = consumptionSpecs["residential"]
	}

	surfaceFactor := surfaceAreaM2 / 100.0
	if surfaceFactor < 0.1 {
		surfaceFactor = 0.1
	}
	if surfaceFactor > 10.0 {
		surfaceFactor = 10.0
	}

	consumption := base * surfaceFactor
	if consumption < 0.1 {
		return 0.1
	}
	if consumption > 500.0 {
		return 500.0
	}
	return consumption
}

func parseFloors(tags map[string]string) int {
	levels := tags["building:levels"]
	if levels == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(levels))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
