// Package pipeline wires the API client, sampler, renderer, progress
// simulation, and session state into the end-to-end zone workflow:
// estimate, load buildings, generate the dataset, export and download.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/gridmap/internal/apiclient"
	"github.com/MeKo-Tech/gridmap/internal/progress"
	"github.com/MeKo-Tech/gridmap/internal/render"
	"github.com/MeKo-Tech/gridmap/internal/sampler"
	"github.com/MeKo-Tech/gridmap/internal/session"
	"github.com/MeKo-Tech/gridmap/internal/types"
)

// ErrSuperseded is returned when a response arrives after the session moved
// on (zone changed or a newer request started); the result was discarded.
var ErrSuperseded = errors.New("response superseded by a newer request")

// BuildingSource fetches building footprints without going through the
// generation backend (direct Overpass access).
type BuildingSource interface {
	FetchZoneBuildings(ctx context.Context, zone types.Zone) ([]types.Building, error)
}

// Config wires the pipeline's collaborators. Client and Session are
// required; Renderer, Source, and the tuning knobs are optional.
type Config struct {
	Client   *apiclient.Client
	Session  *session.State
	Renderer *render.Renderer
	// Source enables LoadBuildingsDirect; nil disables it.
	Source BuildingSource
	// SampleCap bounds how many buildings are rendered.
	SampleCap int
	// MaxAttempts bounds building-load retries.
	MaxAttempts int
	// TickInterval drives the generation progress simulation.
	TickInterval time.Duration
	// OnProgress receives simulated progress ticks during Generate.
	OnProgress progress.TickFunc
	Logger     *slog.Logger
}

// Pipeline orchestrates the zone workflow against the backend.
type Pipeline struct {
	client   *apiclient.Client
	session  *session.State
	renderer *render.Renderer
	source   BuildingSource
	sim      *progress.Simulator

	sampleCap   int
	maxAttempts int
	logger      *slog.Logger
}

// New creates a pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("pipeline: client is required")
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("pipeline: session is required")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.New(nil, render.Config{Logger: cfg.Logger})
	}
	if cfg.SampleCap <= 0 {
		cfg.SampleCap = sampler.DefaultCap
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = apiclient.DefaultMaxAttempts
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = progress.DefaultTickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		client:      cfg.Client,
		session:     cfg.Session,
		renderer:    cfg.Renderer,
		source:      cfg.Source,
		sim:         progress.NewSimulator(cfg.TickInterval, cfg.OnProgress),
		sampleCap:   cfg.SampleCap,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}, nil
}

// ZoneEntry is one selectable zone as listed by the backend.
type ZoneEntry struct {
	ZoneID             string `json:"zone_id"`
	Name               string `json:"name"`
	Type               string `json:"type"`
	EstimatedBuildings int    `json:"estimated_buildings"`
	RecommendedMethod  string `json:"recommended_method,omitempty"`
}

// Zones lists the backend's zone catalog.
func (p *Pipeline) Zones(ctx context.Context) ([]ZoneEntry, error) {
	raw, err := p.client.CachedGet(ctx, "/api/zones", 0)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	var resp struct {
		Zones []ZoneEntry `json:"zones"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode zone list: %w", err)
	}
	return resp.Zones, nil
}

// EstimateZone fetches the backend's complexity estimate for a zone.
// Responses are cached, so repeated zone browsing stays cheap.
func (p *Pipeline) EstimateZone(ctx context.Context, zoneName string) (*types.ZoneEstimation, error) {
	id := types.NormalizeZoneID(zoneName)
	raw, err := p.client.CachedGet(ctx, "/api/zone-estimation/"+id, 0)
	if err != nil {
		return nil, fmt.Errorf("estimate zone %s: %w", id, err)
	}

	var resp struct {
		ZoneName   string               `json:"zone_name"`
		Estimation types.ZoneEstimation `json:"estimation"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode zone estimation: %w", err)
	}

	est := resp.Estimation
	est.ZoneFound = true
	if est.ZoneName == "" {
		est.ZoneName = resp.ZoneName
	}
	return &est, nil
}

// LoadResult summarizes one completed building load.
type LoadResult struct {
	Buildings []types.Building
	Metadata  types.OSMLoadMetadata
	Sample    sampler.Result
	Render    render.Output
}

// LoadBuildings fetches a zone's buildings through the backend (with
// retries), downsamples, renders, and stores the set in the session. A
// response that arrives after the session moved to another zone or a newer
// request is discarded and reported as ErrSuperseded.
func (p *Pipeline) LoadBuildings(ctx context.Context, zoneName, method string) (*LoadResult, error) {
	id := types.NormalizeZoneID(zoneName)
	p.session.SetZone(id)
	gen := p.session.Begin()

	p.session.SetLoading(true)
	defer p.session.SetLoading(false)

	body := map[string]string{"method": method}
	raw, err := p.client.RequestWithRetry(ctx, http.MethodPost, "/api/osm-buildings/"+id, body, p.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("load buildings for %s: %w", id, err)
	}

	var resp struct {
		Buildings []types.Building      `json:"buildings"`
		Metadata  types.OSMLoadMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode building response: %w", err)
	}

	return p.finishLoad(gen, zoneName, resp.Buildings, resp.Metadata)
}

// LoadBuildingsDirect fetches a catalog zone's buildings straight from
// Overpass, bypassing the backend. Requires a configured BuildingSource.
func (p *Pipeline) LoadBuildingsDirect(ctx context.Context, zoneName string) (*LoadResult, error) {
	if p.source == nil {
		return nil, fmt.Errorf("no direct building source configured")
	}
	zone, ok := types.LookupZone(zoneName)
	if !ok {
		return nil, fmt.Errorf("unknown zone %q", zoneName)
	}

	p.session.SetZone(zone.ID)
	gen := p.session.Begin()

	p.session.SetLoading(true)
	defer p.session.SetLoading(false)

	buildings, err := p.source.FetchZoneBuildings(ctx, zone)
	if err != nil {
		return nil, fmt.Errorf("load buildings for %s: %w", zone.ID, err)
	}

	meta := types.OSMLoadMetadata{
		TotalBuildings:   len(buildings),
		TotalOSMElements: len(buildings),
		MethodUsed:       "overpass",
		CoverageComplete: true,
	}
	return p.finishLoad(gen, zone.Name, buildings, meta)
}

// finishLoad runs the shared tail of both load paths: sample, render, and
// commit to the session under the generation guard.
func (p *Pipeline) finishLoad(gen uint64, zoneName string, buildings []types.Building, meta types.OSMLoadMetadata) (*LoadResult, error) {
	sampled := sampler.Sample(buildings, p.sampleCap)
	out := p.renderer.Render(zoneName, sampled.Rendered)

	if !p.session.SetBuildings(gen, sampled.Buildings()) {
		return nil, ErrSuperseded
	}

	p.logger.Info("buildings loaded",
		"zone", zoneName,
		"fetched", len(buildings),
		"valid", sampled.Valid,
		"kept", sampled.Kept,
		"stride", sampled.Stride,
		"placed", out.Placed,
	)
	return &LoadResult{
		Buildings: sampled.Buildings(),
		Metadata:  meta,
		Sample:    sampled,
		Render:    out,
	}, nil
}

// Generate validates the request against the session's loaded buildings,
// runs the progress simulation while the backend works, and stores the
// result in the session. The simulation is stopped on every exit path.
func (p *Pipeline) Generate(ctx context.Context, req types.GenerationRequest) (*types.GenerationResult, error) {
	buildings := p.session.Buildings()
	if err := req.Validate(len(buildings)); err != nil {
		return nil, fmt.Errorf("invalid generation request: %w", err)
	}
	days, err := req.Days()
	if err != nil {
		return nil, err
	}

	gen := p.session.Begin()
	estimated := progress.EstimateDuration(len(buildings), days)
	// Re-arm the simulator so a previous run's terminal state doesn't
	// leave this one without progress.
	p.sim.Reset()
	p.logger.Info("starting generation",
		"zone", req.ZoneName,
		"buildings", len(buildings),
		"days", days,
		"frequency", req.Frequency,
		"estimated", estimated,
	)
	p.sim.Start(estimated)

	payload := struct {
		ZoneName     string           `json:"zone_name"`
		BuildingsOSM []types.Building `json:"buildings_osm"`
		StartDate    string           `json:"start_date"`
		EndDate      string           `json:"end_date"`
		Frequency    string           `json:"frequency"`
	}{
		ZoneName:     req.ZoneName,
		BuildingsOSM: buildings,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Frequency:    req.Frequency,
	}

	raw, err := p.client.Post(ctx, "/api/generate", payload)
	if err != nil {
		p.sim.Fail()
		return nil, fmt.Errorf("generate dataset: %w", err)
	}

	var result types.GenerationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		p.sim.Fail()
		return nil, fmt.Errorf("decode generation response: %w", err)
	}

	p.sim.Complete()
	if !p.session.SetGeneratedData(gen, &result) {
		return nil, ErrSuperseded
	}
	return &result, nil
}

// Progress reports the current simulated progress and state.
func (p *Pipeline) Progress() (float64, progress.State) {
	return p.sim.Progress()
}

// Export asks the backend to write the generated dataset in the given
// formats and returns the produced file listing.
func (p *Pipeline) Export(ctx context.Context, formats []string, prefix string) (*types.ExportResult, error) {
	if p.session.GeneratedData() == nil {
		return nil, fmt.Errorf("no generated data to export")
	}
	if len(formats) == 0 {
		formats = []string{"csv"}
	}

	payload := struct {
		Formats        []string `json:"formats"`
		FilenamePrefix string   `json:"filename_prefix,omitempty"`
	}{Formats: formats, FilenamePrefix: prefix}

	raw, err := p.client.Post(ctx, "/api/export", payload)
	if err != nil {
		return nil, fmt.Errorf("export dataset: %w", err)
	}

	var result types.ExportResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode export response: %w", err)
	}
	return &result, nil
}

// Download streams one exported file into dir and returns its path and size.
func (p *Pipeline) Download(ctx context.Context, filename, dir string) (string, int64, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create download dir: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", path, err)
	}

	n, err := p.client.Download(ctx, "/api/download/"+filename, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("download %s: %w", filename, err)
	}

	p.logger.Info("file downloaded", "path", path, "bytes", n)
	return path, n, nil
}
