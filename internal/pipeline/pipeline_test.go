package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/gridmap/internal/apiclient"
	"github.com/MeKo-Tech/gridmap/internal/progress"
	"github.com/MeKo-Tech/gridmap/internal/render"
	"github.com/MeKo-Tech/gridmap/internal/session"
	"github.com/MeKo-Tech/gridmap/internal/types"
)

type fakeMap struct {
	markers  int
	clears   int
	fitCalls int
}

func (m *fakeMap) ClearMarkers() { m.clears++; m.markers = 0 }
func (m *fakeMap) AddMarker(lat, lon float64, style render.MarkerStyle, popup render.PopupFunc) {
	m.markers++
}
func (m *fakeMap) SetView(lat, lon float64, zoom int)          {}
func (m *fakeMap) FitBounds(b orb.Bound, padding, maxZoom int) { m.fitCalls++ }

func newTestPipeline(t *testing.T, handler http.Handler, m render.Map) (*Pipeline, *session.State) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := apiclient.New(apiclient.Config{
		BaseURL:        srv.URL,
		Timeout:        5 * time.Second,
		RetryBaseDelay: time.Millisecond,
	})
	sess := session.New()

	p, err := New(Config{
		Client:       client,
		Session:      sess,
		Renderer:     render.New(m, render.Config{}),
		TickInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return p, sess
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestZones(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/zones", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"success": true,
			"zones": []map[string]any{
				{"zone_id": "kuala_lumpur", "name": "Kuala Lumpur", "type": "major_city", "estimated_buildings": 285000},
				{"zone_id": "ipoh", "name": "Ipoh", "type": "major_city", "estimated_buildings": 70000},
			},
			"total_zones": 2,
		})
	})

	p, _ := newTestPipeline(t, mux, nil)
	zones, err := p.Zones(context.Background())
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "kuala_lumpur", zones[0].ZoneID)
	assert.Equal(t, 70000, zones[1].EstimatedBuildings)
}

func TestEstimateZoneCachesResponses(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/zone-estimation/kuala_lumpur", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, map[string]any{
			"success":   true,
			"zone_name": "Kuala Lumpur",
			"estimation": map[string]any{
				"estimated_buildings":    285000,
				"area_km2":               243.0,
				"estimated_time_minutes": 12.5,
				"complexity_level":       "high",
			},
		})
	})

	p, _ := newTestPipeline(t, mux, nil)
	ctx := context.Background()

	// Display-name form normalizes to the catalog id.
	est, err := p.EstimateZone(ctx, "Kuala Lumpur")
	require.NoError(t, err)
	assert.True(t, est.ZoneFound)
	assert.Equal(t, "Kuala Lumpur", est.ZoneName)
	assert.Equal(t, 285000, est.EstimatedBuildings)
	assert.Equal(t, "high", est.ComplexityLevel)

	_, err = p.EstimateZone(ctx, "kuala_lumpur")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second estimate should be served from cache")
}

func buildingsHandler(buildings []types.Building) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"success":   true,
			"buildings": buildings,
			"metadata": map[string]any{
				"total_buildings":    len(buildings),
				"total_osm_elements": len(buildings),
				"method_used":        "relation",
				"coverage_complete":  true,
			},
		})
	}
}

func TestLoadBuildings(t *testing.T) {
	buildings := []types.Building{
		{Latitude: 3.14, Longitude: 101.69, BuildingType: "residential"},
		{Latitude: 3.15, Longitude: 101.70, BuildingType: "commercial"},
		{Latitude: 91.0, Longitude: 101.70, BuildingType: "office"}, // invalid, dropped
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/osm-buildings/kuala_lumpur", buildingsHandler(buildings))

	m := &fakeMap{}
	p, sess := newTestPipeline(t, mux, m)

	res, err := p.LoadBuildings(context.Background(), "Kuala Lumpur", "relation")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Sample.Valid)
	assert.Equal(t, 1, res.Sample.Invalid)
	assert.Equal(t, 2, res.Render.Placed)
	assert.Equal(t, 2, m.markers)
	assert.Equal(t, 1, m.fitCalls)
	assert.Equal(t, "relation", res.Metadata.MethodUsed)

	assert.Equal(t, "kuala_lumpur", sess.Zone())
	assert.Len(t, sess.Buildings(), 2)
	assert.False(t, sess.Loading())
}

func TestLoadBuildingsSupersededByZoneChange(t *testing.T) {
	var sess *session.State
	mux := http.NewServeMux()
	mux.HandleFunc("/api/osm-buildings/kuala_lumpur", func(w http.ResponseWriter, r *http.Request) {
		// User switches zones while the request is in flight.
		sess.SetZone("ipoh")
		buildingsHandler([]types.Building{{Latitude: 3.14, Longitude: 101.69}})(w, r)
	})

	p, s := newTestPipeline(t, mux, nil)
	sess = s

	_, err := p.LoadBuildings(context.Background(), "kuala_lumpur", "bbox")
	require.ErrorIs(t, err, ErrSuperseded)
	assert.Empty(t, s.Buildings())
}

type stubSource struct {
	buildings []types.Building
	gotZone   string
}

func (s *stubSource) FetchZoneBuildings(ctx context.Context, zone types.Zone) ([]types.Building, error) {
	s.gotZone = zone.ID
	return s.buildings, nil
}

func TestLoadBuildingsDirect(t *testing.T) {
	src := &stubSource{buildings: []types.Building{
		{Latitude: 4.6, Longitude: 101.1, BuildingType: "residential"},
	}}

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	client := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	sess := session.New()

	p, err := New(Config{Client: client, Session: sess, Source: src})
	require.NoError(t, err)

	res, err := p.LoadBuildingsDirect(context.Background(), "Ipoh")
	require.NoError(t, err)
	assert.Equal(t, "ipoh", src.gotZone)
	assert.Equal(t, "overpass", res.Metadata.MethodUsed)
	assert.Len(t, sess.Buildings(), 1)

	// Unknown zones fail before any fetch.
	_, err = p.LoadBuildingsDirect(context.Background(), "atlantis")
	require.Error(t, err)
}

func seedBuildings(t *testing.T, sess *session.State, n int) {
	t.Helper()
	buildings := make([]types.Building, n)
	for i := range buildings {
		buildings[i] = types.Building{Latitude: 3.1, Longitude: 101.6, BuildingType: "residential"}
	}
	require.True(t, sess.SetBuildings(sess.Begin(), buildings))
}

func TestGenerate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ZoneName     string           `json:"zone_name"`
			BuildingsOSM []types.Building `json:"buildings_osm"`
			Frequency    string           `json:"frequency"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Kuala Lumpur", payload.ZoneName)
		assert.Len(t, payload.BuildingsOSM, 5)
		assert.Equal(t, "1H", payload.Frequency)

		writeJSON(w, map[string]any{
			"success":   true,
			"zone_name": payload.ZoneName,
			"generation_metadata": map[string]any{
				"total_points":            5 * 24 * 7,
				"buildings_count":         5,
				"frequency":               "1H",
				"generation_time_seconds": 1.2,
			},
		})
	})

	p, sess := newTestPipeline(t, mux, nil)
	seedBuildings(t, sess, 5)

	result, err := p.Generate(context.Background(), types.GenerationRequest{
		ZoneName:  "Kuala Lumpur",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-07",
		Frequency: "1H",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Metadata.BuildingsCount)
	assert.Equal(t, 5*24*7, result.Metadata.TotalPoints)

	pct, state := p.Progress()
	assert.Equal(t, progress.Completed, state)
	assert.Equal(t, 100.0, pct)

	stored := sess.GeneratedData()
	require.NotNil(t, stored)
	assert.Equal(t, "Kuala Lumpur", stored.ZoneName)
}

func TestGenerateSimulatesEachRun(t *testing.T) {
	// Observed from inside the backend handler, while Generate is awaiting
	// the response: the simulation must be live for every run, not only
	// the first.
	var p *Pipeline
	type snapshot struct {
		pct   float64
		state progress.State
	}
	var inFlight []snapshot

	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		pct, state := p.Progress()
		inFlight = append(inFlight, snapshot{pct, state})
		writeJSON(w, map[string]any{
			"success":             true,
			"zone_name":           "Ipoh",
			"generation_metadata": map[string]any{"buildings_count": 3},
		})
	})

	pp, sess := newTestPipeline(t, mux, nil)
	p = pp
	seedBuildings(t, sess, 3)

	req := types.GenerationRequest{
		ZoneName: "Ipoh", StartDate: "2024-01-01", EndDate: "2024-01-02", Frequency: "1H",
	}
	for run := 0; run < 2; run++ {
		_, err := p.Generate(context.Background(), req)
		require.NoError(t, err, "run %d", run)

		pct, state := p.Progress()
		assert.Equal(t, progress.Completed, state, "run %d", run)
		assert.Equal(t, 100.0, pct, "run %d", run)
	}

	require.Len(t, inFlight, 2)
	for run, snap := range inFlight {
		assert.Equal(t, progress.Simulating, snap.state, "run %d", run)
		assert.Less(t, snap.pct, 95.0, "run %d", run)
	}
}

func TestGenerateValidatesBeforeRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not reach the backend")
	})
	p, sess := newTestPipeline(t, mux, nil)

	// No buildings loaded.
	_, err := p.Generate(context.Background(), types.GenerationRequest{
		ZoneName: "Ipoh", StartDate: "2024-01-01", EndDate: "2024-01-02", Frequency: "1H",
	})
	require.Error(t, err)

	// Unsupported frequency.
	seedBuildings(t, sess, 3)
	_, err = p.Generate(context.Background(), types.GenerationRequest{
		ZoneName: "Ipoh", StartDate: "2024-01-01", EndDate: "2024-01-02", Frequency: "7T",
	})
	require.Error(t, err)
}

func TestGenerateBackendFailureStopsSimulation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]any{"success": false, "error": "generation blew up"})
	})

	p, sess := newTestPipeline(t, mux, nil)
	seedBuildings(t, sess, 3)

	_, err := p.Generate(context.Background(), types.GenerationRequest{
		ZoneName: "Ipoh", StartDate: "2024-01-01", EndDate: "2024-01-02", Frequency: "D",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation blew up")

	pct, state := p.Progress()
	assert.Equal(t, progress.Failed, state)
	assert.Less(t, pct, 100.0)
	assert.Nil(t, sess.GeneratedData())
}

func TestExportAndDownload(t *testing.T) {
	const fileBody = "timestamp,building_id,consumption_kwh\n"

	mux := http.NewServeMux()
	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Formats []string `json:"formats"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"csv", "parquet"}, payload.Formats)

		writeJSON(w, map[string]any{
			"success": true,
			"files": []map[string]any{
				{"filename": "grid_1h.csv", "format": "csv", "size_mb": 1.5},
				{"filename": "grid_1h.parquet", "format": "parquet", "size_mb": 0.4},
			},
			"total_size_mb": 1.9,
		})
	})
	mux.HandleFunc("/api/download/grid_1h.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, fileBody)
	})

	p, sess := newTestPipeline(t, mux, nil)

	// Export refuses to run before anything was generated.
	_, err := p.Export(context.Background(), []string{"csv"}, "grid")
	require.Error(t, err)

	require.True(t, sess.SetGeneratedData(sess.Begin(), &types.GenerationResult{ZoneName: "Ipoh"}))

	exported, err := p.Export(context.Background(), []string{"csv", "parquet"}, "grid")
	require.NoError(t, err)
	require.Len(t, exported.Files, 2)
	assert.InDelta(t, 1.9, exported.TotalSizeMB, 1e-9)

	dir := t.TempDir()
	path, n, err := p.Download(context.Background(), "grid_1h.csv", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "grid_1h.csv"), path)
	assert.Equal(t, int64(len(fileBody)), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fileBody, string(data))
}
