package types

import (
	"fmt"
	"time"
)

// SupportedFrequencies maps sampling frequency codes to display labels.
var SupportedFrequencies = map[string]string{
	"15T": "15 minutes",
	"30T": "30 minutes",
	"1H":  "1 hour",
	"3H":  "3 hours",
	"D":   "daily",
}

// Generation limits enforced before a request is sent to the backend.
const (
	MinGenerationBuildings = 1
	MaxGenerationBuildings = 10000
	MinGenerationDays      = 1
	MaxGenerationDays      = 365
)

const dateLayout = "2006-01-02"

// GenerationRequest holds the parameters of a synthetic-dataset generation
// job. Dates use YYYY-MM-DD.
type GenerationRequest struct {
	ZoneName  string `json:"zone_name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Frequency string `json:"frequency"`
}

// Days returns the inclusive day span of the request.
func (r GenerationRequest) Days() (int, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return 0, fmt.Errorf("invalid start date %q: %w", r.StartDate, err)
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return 0, fmt.Errorf("invalid end date %q: %w", r.EndDate, err)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		return 0, fmt.Errorf("end date %s is before start date %s", r.EndDate, r.StartDate)
	}
	return days, nil
}

// Validate checks the request against the generation limits.
func (r GenerationRequest) Validate(buildingCount int) error {
	if r.ZoneName == "" {
		return fmt.Errorf("zone name is required")
	}
	if _, ok := SupportedFrequencies[r.Frequency]; !ok {
		return fmt.Errorf("unsupported frequency %q", r.Frequency)
	}
	if buildingCount < MinGenerationBuildings || buildingCount > MaxGenerationBuildings {
		return fmt.Errorf("building count %d outside [%d, %d]",
			buildingCount, MinGenerationBuildings, MaxGenerationBuildings)
	}
	days, err := r.Days()
	if err != nil {
		return err
	}
	if days > MaxGenerationDays {
		return fmt.Errorf("date range of %d days exceeds maximum of %d", days, MaxGenerationDays)
	}
	return nil
}

// GenerationMetadata is the backend's summary of a completed generation job.
type GenerationMetadata struct {
	TotalPoints           int     `json:"total_points"`
	BuildingsCount        int     `json:"buildings_count"`
	Frequency             string  `json:"frequency"`
	GenerationTimeSeconds float64 `json:"generation_time_seconds"`
}

// GenerationResult is the stored outcome of a generation request.
type GenerationResult struct {
	ZoneName    string             `json:"zone_name"`
	Metadata    GenerationMetadata `json:"generation_metadata"`
	DataPreview []map[string]any   `json:"data_preview,omitempty"`
}

// ZoneEstimation is the backend's complexity estimate for a zone, shown to
// the user before a long-running load or generation is started.
type ZoneEstimation struct {
	ZoneFound            bool     `json:"zone_found"`
	ZoneName             string   `json:"zone_name"`
	EstimatedBuildings   int      `json:"estimated_buildings"`
	AreaKM2              float64  `json:"area_km2"`
	EstimatedTimeMinutes float64  `json:"estimated_time_minutes"`
	EstimatedSizeMB      float64  `json:"estimated_size_mb"`
	ComplexityLevel      string   `json:"complexity_level"`
	Recommendation       string   `json:"recommendation,omitempty"`
	Warnings             []string `json:"warnings,omitempty"`
}

// OSMLoadMetadata describes an OSM building load as reported by the backend.
type OSMLoadMetadata struct {
	TotalBuildings   int      `json:"total_buildings"`
	TotalOSMElements int      `json:"total_osm_elements"`
	QueryTimeSeconds float64  `json:"query_time_seconds"`
	MethodUsed       string   `json:"method_used"`
	CoverageComplete bool     `json:"coverage_complete"`
	Warnings         []string `json:"warnings,omitempty"`
}

// ExportResult describes files produced by the backend export endpoint.
type ExportResult struct {
	Files       []ExportFile `json:"files"`
	TotalSizeMB float64      `json:"total_size_mb"`
}

// ExportFile is one exported artifact available for download.
type ExportFile struct {
	Filename string  `json:"filename"`
	Format   string  `json:"format"`
	SizeMB   float64 `json:"size_mb"`
}
