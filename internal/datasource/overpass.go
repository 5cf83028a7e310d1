// Package datasource fetches building footprints straight from the
// Overpass API. It is the backend-less alternative to loading buildings
// through the generation service, with an optional SQLite disk cache.
package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Christian/go-overpass"

	"github.com/MeKo-Tech/gridmap/internal/store"
	"github.com/MeKo-Tech/gridmap/internal/types"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// OverpassDataSource fetches OSM building data from the Overpass API.
type OverpassDataSource struct {
	client overpass.Client
	store  *store.Store
	maxAge time.Duration
	logger *slog.Logger
}

// NewOverpassDataSource creates a data source. st may be nil to disable the
// disk cache; maxAge bounds how old a cached zone may be before a refetch.
func NewOverpassDataSource(endpoint string, st *store.Store, maxAge time.Duration, logger *slog.Logger) *OverpassDataSource {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Rate limited to 1 concurrent request (API etiquette).
	client := overpass.NewWithSettings(endpoint, 1, http.DefaultClient)

	return &OverpassDataSource{
		client: client,
		store:  st,
		maxAge: maxAge,
		logger: logger,
	}
}

// FetchZoneBuildings returns all building footprints inside the zone's
// bounding box, served from the disk cache when fresh.
func (ds *OverpassDataSource) FetchZoneBuildings(ctx context.Context, zone types.Zone) ([]types.Building, error) {
	if ds.store != nil {
		cached, ok, err := ds.store.Get(zone.ID, ds.maxAge)
		if err != nil {
			ds.logger.Warn("building cache read failed, refetching", "zone", zone.ID, "error", err)
		} else if ok {
			ds.logger.Info("serving buildings from disk cache", "zone", zone.ID, "count", len(cached))
			return cached, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := buildingQuery(zone.BBox)
	start := time.Now()
	ds.logger.Info("fetching zone buildings from Overpass API", "zone", zone.ID)

	// The client version in use doesn't support context; cancellation is
	// checked before and after the blocking call.
	result, err := ds.client.Query(query)
	if err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buildings := ExtractBuildings(&result)
	ds.logger.Info("fetch completed",
		"zone", zone.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"ways", len(result.Ways),
		"buildings", len(buildings),
	)

	if ds.store != nil {
		if err := ds.store.Put(zone.ID, buildings); err != nil {
			ds.logger.Warn("building cache write failed", "zone", zone.ID, "error", err)
		}
	}
	return buildings, nil
}

// bboxMargin slightly widens the query box so footprints straddling the
// zone edge are still fetched.
const bboxMargin = 0.005

// buildingQuery creates the Overpass QL query for building footprints. The
// per-element bbox filter with "out geom" returns complete way geometry for
// footprints that intersect the box instead of clipping them at the edge.
func buildingQuery(bbox types.BoundingBox) string {
	bbox = bbox.ExpandByFraction(bboxMargin)
	box := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", bbox.MinLat, bbox.MinLon, bbox.MaxLat, bbox.MaxLon)
	return fmt.Sprintf(`
[out:json][timeout:180];
(
  way["building"](%s);
  relation["building"](%s);
);
out geom;
`, box, box)
}

// Close cleans up resources (no-op for current client version).
func (ds *OverpassDataSource) Close() error {
	return nil
}
