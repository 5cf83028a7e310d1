package render

import "github.com/paulmach/orb"

// MarkerStyle describes how a building marker is drawn.
type MarkerStyle struct {
	Color       string
	Radius      int
	FillOpacity float64
}

// PopupFunc lazily builds the popup content for a marker. It is only
// invoked when the marker is clicked, so popup markup is never materialized
// eagerly for large sets.
type PopupFunc func() string

// Map is the abstract map widget capability consumed by the renderer. A nil
// Map degrades rendering to a numeric placeholder.
type Map interface {
	// ClearMarkers removes all previously placed markers.
	ClearMarkers()
	// AddMarker places one marker. popup may be nil.
	AddMarker(lat, lon float64, style MarkerStyle, popup PopupFunc)
	// SetView centers the map on a point at the given zoom.
	SetView(lat, lon float64, zoom int)
	// FitBounds adjusts the view to cover bound with padding pixels,
	// never zooming in past maxZoom.
	FitBounds(bound orb.Bound, padding, maxZoom int)
}
