// Package render places classified building markers on an abstract map
// capability, computes view bounds, and builds a type-frequency legend.
package render

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/gridmap/internal/types"
	"github.com/paulmach/orb"
)

// View-fitting constants: a single point gets a fixed close zoom; bounding
// boxes are fitted with padding but never zoomed past MaxFitZoom, so tightly
// clustered points don't over-zoom.
const (
	SinglePointZoom = 17
	MaxFitZoom      = 16
	FitPadding      = 32
	MarkerRadius    = 4
)

// Config configures a Renderer. Zero values fall back to the package
// constants.
type Config struct {
	SinglePointZoom int
	MaxFitZoom      int
	FitPadding      int
	LegendLimit     int
	Logger          *slog.Logger
}

// Renderer consumes sampler output and a Map capability.
type Renderer struct {
	m      Map
	cfg    Config
	logger *slog.Logger
}

// Output summarizes one render pass.
type Output struct {
	// Placed is the number of markers added to the map.
	Placed int
	// Skipped counts malformed records dropped individually; they never
	// abort the batch.
	Skipped int
	// Legend is the top-N type-frequency legend over the rendered set.
	Legend []types.LegendEntry
	// Placeholder is set instead of geometry when no map capability is
	// available.
	Placeholder string
}

// New creates a renderer. m may be nil, in which case Render degrades to a
// numeric placeholder.
func New(m Map, cfg Config) *Renderer {
	if cfg.SinglePointZoom <= 0 {
		cfg.SinglePointZoom = SinglePointZoom
	}
	if cfg.MaxFitZoom <= 0 {
		cfg.MaxFitZoom = MaxFitZoom
	}
	if cfg.FitPadding <= 0 {
		cfg.FitPadding = FitPadding
	}
	if cfg.LegendLimit <= 0 {
		cfg.LegendLimit = LegendLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{m: m, cfg: cfg, logger: cfg.Logger}
}

// Render replaces all markers with the given set (full replace, not an
// incremental diff), fits the view, and returns the legend.
func (r *Renderer) Render(zoneName string, rendered []types.RenderedBuilding) Output {
	legend := BuildLegend(rendered, r.cfg.LegendLimit)

	if r.m == nil {
		// No geometry is computed in placeholder mode.
		return Output{
			Legend:      legend,
			Placeholder: fmt.Sprintf("%d buildings loaded for %s", len(rendered), zoneName),
		}
	}

	r.m.ClearMarkers()

	var points orb.MultiPoint
	placed, skipped := 0, 0
	for _, rb := range rendered {
		b := rb.Building
		if !b.HasValidCoordinates() {
			skipped++
			continue
		}
		r.m.AddMarker(b.Latitude, b.Longitude, MarkerStyle{
			Color:       rb.Color,
			Radius:      MarkerRadius,
			FillOpacity: 0.8,
		}, popupFor(b))
		points = append(points, orb.Point{b.Longitude, b.Latitude})
		placed++
	}

	r.fitView(points)

	r.logger.Debug("rendered building markers",
		"zone", zoneName,
		"placed", placed,
		"skipped", skipped,
		"legend_rows", len(legend),
	)
	return Output{Placed: placed, Skipped: skipped, Legend: legend}
}

// fitView applies the view-fitting rules: zero points leave the view alone,
// one point centers at a fixed close zoom, several points get exactly one
// fit-bounds call.
func (r *Renderer) fitView(points orb.MultiPoint) {
	switch len(points) {
	case 0:
	case 1:
		r.m.SetView(points[0].Lat(), points[0].Lon(), r.cfg.SinglePointZoom)
	default:
		r.m.FitBounds(points.Bound(), r.cfg.FitPadding, r.cfg.MaxFitZoom)
	}
}

// popupFor builds the marker popup lazily so detail markup is never
// materialized for markers nobody clicks.
func popupFor(b types.Building) PopupFunc {
	return func() string {
		var sb strings.Builder
		typ := b.BuildingType
		if typ == "" {
			typ = "unknown"
		}
		fmt.Fprintf(&sb, "Type: %s\n", typ)
		fmt.Fprintf(&sb, "Location: %.6f, %.6f\n", b.Latitude, b.Longitude)
		if b.SurfaceAreaM2 > 0 {
			fmt.Fprintf(&sb, "Surface: %.0f m²\n", b.SurfaceAreaM2)
		}
		if b.FloorsCount > 0 {
			fmt.Fprintf(&sb, "Floors: %d\n", b.FloorsCount)
		}
		if b.BaseConsumptionKWH > 0 {
			fmt.Fprintf(&sb, "Base consumption: %.2f kWh\n", b.BaseConsumptionKWH)
		}
		return sb.String()
	}
}
