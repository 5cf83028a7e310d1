// Package sampler validates, filters, and deterministically downsamples a
// building collection to a fixed rendering cap, classifying each kept
// building by type.
package sampler

import (
	"log/slog"

	"github.com/MeKo-Tech/gridmap/internal/types"
)

// DefaultCap is the rendering cap: the maximum number of markers placed for
// one dataset.
const DefaultCap = 20000

// Result is the output of one sampling pass.
type Result struct {
	// Rendered is the ordered list of kept buildings with their colors.
	Rendered []types.RenderedBuilding
	// Valid counts buildings that passed coordinate validation.
	Valid int
	// Invalid counts records dropped for out-of-range or non-numeric
	// coordinates.
	Invalid int
	// Kept is len(Rendered) after downsampling.
	Kept int
	// Stride is the sampling step applied (1 when no thinning occurred).
	Stride int
}

// Sample runs the pipeline over buildings: validate, stride-downsample to
// limit, classify. Invalid records are counted and dropped silently; there
// is no partial-failure abort. The pass is deterministic and
// order-preserving.
func Sample(buildings []types.Building, limit int) Result {
	if limit <= 0 {
		limit = DefaultCap
	}

	valid := make([]types.Building, 0, len(buildings))
	invalid := 0
	for _, b := range buildings {
		if !b.HasValidCoordinates() {
			invalid++
			continue
		}
		valid = append(valid, b)
	}

	// Stride sampling thins uniformly across the input's original ordering.
	// It is deterministic but not spatially stratified; even geographic
	// coverage is approximated, not guaranteed.
	stride := 1
	kept := valid
	if len(valid) > limit {
		stride = (len(valid) + limit - 1) / limit
		kept = make([]types.Building, 0, (len(valid)+stride-1)/stride)
		for i := 0; i < len(valid); i += stride {
			kept = append(kept, valid[i])
		}
	}

	rendered := make([]types.RenderedBuilding, len(kept))
	for i, b := range kept {
		rendered[i] = types.RenderedBuilding{
			Building: b,
			Color:    ColorFor(b.BuildingType),
		}
	}

	res := Result{
		Rendered: rendered,
		Valid:    len(valid),
		Invalid:  invalid,
		Kept:     len(rendered),
		Stride:   stride,
	}
	if invalid > 0 || stride > 1 {
		slog.Debug("sampled building collection",
			"input", len(buildings),
			"valid", res.Valid,
			"invalid", res.Invalid,
			"kept", res.Kept,
			"stride", res.Stride,
		)
	}
	return res
}

// Buildings returns the kept buildings without their colors, in render
// order. This is the set that becomes the session's currentBuildings.
func (r Result) Buildings() []types.Building {
	out := make([]types.Building, len(r.Rendered))
	for i, rb := range r.Rendered {
		out[i] = rb.Building
	}
	return out
}
