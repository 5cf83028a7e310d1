// Package imagemap is a static Map capability: it draws building markers
// and the legend onto a PNG instead of an interactive widget. The CLI uses
// it to give load results a visual form without a browser.
package imagemap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"sync"

	"github.com/MeKo-Tech/gridmap/internal/render"
	"github.com/MeKo-Tech/gridmap/internal/types"
	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type marker struct {
	lat, lon float64
	style    render.MarkerStyle
}

// ImageMap collects markers and view state, then rasterizes them on Encode.
type ImageMap struct {
	mu      sync.Mutex
	width   int
	height  int
	markers []marker
	bound   orb.Bound
	pad     int
	legend  []types.LegendEntry
	hasView bool
}

// New creates an image map canvas of the given pixel size.
func New(width, height int) *ImageMap {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 768
	}
	return &ImageMap{width: width, height: height, pad: 24}
}

// ClearMarkers implements render.Map.
func (m *ImageMap) ClearMarkers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = nil
	m.hasView = false
}

// AddMarker implements render.Map. Popups have no static rendering and are
// dropped.
func (m *ImageMap) AddMarker(lat, lon float64, style render.MarkerStyle, _ render.PopupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = append(m.markers, marker{lat: lat, lon: lon, style: style})
}

// SetView implements render.Map: a single-point view becomes a small box
// around the point, sized by the zoom level's degree span.
func (m *ImageMap) SetView(lat, lon float64, zoom int) {
	span := 360 / math.Pow(2, float64(zoom))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = orb.Bound{
		Min: orb.Point{lon - span/2, lat - span/2},
		Max: orb.Point{lon + span/2, lat + span/2},
	}
	m.hasView = true
}

// FitBounds implements render.Map. The maxZoom cap translates to a minimum
// degree span so tight clusters don't collapse to a single pixel region.
func (m *ImageMap) FitBounds(bound orb.Bound, padding, maxZoom int) {
	minSpan := 360 / math.Pow(2, float64(maxZoom))
	bound = ensureSpan(bound, minSpan)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = bound
	m.pad = padding
	m.hasView = true
}

// SetLegend attaches legend rows drawn into the output image.
func (m *ImageMap) SetLegend(entries []types.LegendEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legend = entries
}

// WritePNG rasterizes the current state to a PNG file.
func (m *ImageMap) WritePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := m.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode rasterizes markers and legend to w as PNG.
func (m *ImageMap) Encode(w io.Writer) error {
	m.mu.Lock()
	markers := append([]marker(nil), m.markers...)
	legend := append([]types.LegendEntry(nil), m.legend...)
	bound := m.bound
	hasView := m.hasView
	pad := m.pad
	width, height := m.width, m.height
	m.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{245, 245, 240, 255}}, image.Point{}, draw.Src)

	if !hasView && len(markers) > 0 {
		var pts orb.MultiPoint
		for _, mk := range markers {
			pts = append(pts, orb.Point{mk.lon, mk.lat})
		}
		bound = ensureSpan(pts.Bound(), 0.0005)
		hasView = true
	}

	if hasView {
		proj := newProjection(bound, width, height, pad)
		for _, mk := range markers {
			x, y := proj.toPixel(mk.lat, mk.lon)
			fillCircle(img, x, y, mk.style.Radius, parseHexColor(mk.style.Color))
		}
	}

	drawLegend(img, legend)
	return png.Encode(w, img)
}

// ensureSpan widens bound symmetrically so both axes span at least minSpan
// degrees.
func ensureSpan(b orb.Bound, minSpan float64) orb.Bound {
	cx := (b.Min[0] + b.Max[0]) / 2
	cy := (b.Min[1] + b.Max[1]) / 2
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minSpan {
		w = minSpan
	}
	if h < minSpan {
		h = minSpan
	}
	return orb.Bound{
		Min: orb.Point{cx - w/2, cy - h/2},
		Max: orb.Point{cx + w/2, cy + h/2},
	}
}

type projection struct {
	bound      orb.Bound
	scale      float64
	offX, offY float64
}

// newProjection maps the geographic bound onto the canvas with uniform
// scale (equirectangular, fine at city extents) and centered placement.
func newProjection(bound orb.Bound, width, height, pad int) projection {
	spanX := bound.Max[0] - bound.Min[0]
	spanY := bound.Max[1] - bound.Min[1]
	if spanX <= 0 {
		spanX = 1e-6
	}
	if spanY <= 0 {
		spanY = 1e-6
	}
	availW := float64(width - 2*pad)
	availH := float64(height - 2*pad)
	scale := math.Min(availW/spanX, availH/spanY)

	offX := float64(pad) + (availW-spanX*scale)/2
	offY := float64(pad) + (availH-spanY*scale)/2
	return projection{bound: bound, scale: scale, offX: offX, offY: offY}
}

func (p projection) toPixel(lat, lon float64) (int, int) {
	x := p.offX + (lon-p.bound.Min[0])*p.scale
	// Latitude grows north, pixels grow south.
	y := p.offY + (p.bound.Max[1]-lat)*p.scale
	return int(math.Round(x)), int(math.Round(y))
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	if r <= 0 {
		r = 1
	}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

const (
	legendSwatch = 10
	legendRowH   = 16
	legendMargin = 8
	legendBoxW   = 210
)

// drawLegend paints legend rows with color swatches in the top-right corner.
func drawLegend(img *image.RGBA, entries []types.LegendEntry) {
	if len(entries) == 0 {
		return
	}

	bounds := img.Bounds()
	boxH := len(entries)*legendRowH + 2*legendMargin
	x0 := bounds.Max.X - legendBoxW - legendMargin
	y0 := legendMargin
	box := image.Rect(x0, y0, x0+legendBoxW, y0+boxH)
	draw.Draw(img, box, &image.Uniform{color.RGBA{255, 255, 255, 230}}, image.Point{}, draw.Over)

	face := basicfont.Face7x13
	for i, e := range entries {
		rowY := y0 + legendMargin + i*legendRowH

		swatch := image.Rect(x0+legendMargin, rowY, x0+legendMargin+legendSwatch, rowY+legendSwatch)
		draw.Draw(img, swatch, &image.Uniform{parseHexColor(e.Color)}, image.Point{}, draw.Src)

		d := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.RGBA{40, 40, 40, 255}),
			Face: face,
			Dot:  fixed.P(x0+legendMargin+legendSwatch+6, rowY+legendSwatch),
		}
		d.DrawString(fmt.Sprintf("%s %d (%.1f%%)", e.Type, e.Count, e.Percent))
	}
}

// parseHexColor decodes "#RRGGBB"; malformed values degrade to grey rather
// than failing the render.
func parseHexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{158, 158, 158, 255}
	}
	return color.RGBA{r, g, b, 255}
}
