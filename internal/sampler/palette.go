package sampler

import "strings"

// DefaultColor is assigned to unknown or missing building types.
const DefaultColor = "#9E9E9E"

// palette maps normalized building types to marker colors.
var palette = map[string]string{
	"residential": "#4CAF50",
	"house":       "#66BB6A",
	"apartment":   "#81C784",
	"commercial":  "#2196F3",
	"retail":      "#03A9F4",
	"office":      "#3F51B5",
	"industrial":  "#FF9800",
	"warehouse":   "#795548",
	"hospital":    "#F44336",
	"school":      "#9C27B0",
	"university":  "#673AB7",
	"hotel":       "#E91E63",
	"mixed_use":   "#607D8B",
	"religious":   "#FFC107",
	"government":  "#8BC34A",
}

// ColorFor returns the palette color for a building type, falling back to
// DefaultColor for unknown or empty types.
func ColorFor(buildingType string) string {
	if c, ok := palette[strings.ToLower(strings.TrimSpace(buildingType))]; ok {
		return c
	}
	return DefaultColor
}
