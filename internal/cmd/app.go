package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/gridmap/internal/apiclient"
	"github.com/MeKo-Tech/gridmap/internal/datasource"
	"github.com/MeKo-Tech/gridmap/internal/pipeline"
	"github.com/MeKo-Tech/gridmap/internal/progress"
	"github.com/MeKo-Tech/gridmap/internal/render"
	"github.com/MeKo-Tech/gridmap/internal/render/imagemap"
	"github.com/MeKo-Tech/gridmap/internal/session"
	"github.com/MeKo-Tech/gridmap/internal/store"
)

// appOptions tune the per-command pipeline assembly.
type appOptions struct {
	// mapOut renders markers into a PNG at this path; empty keeps the
	// renderer in placeholder mode.
	mapOut     string
	mapWidth   int
	mapHeight  int
	sampleCap  int
	onProgress progress.TickFunc
}

// app bundles the wired pipeline with the resources that need closing.
type app struct {
	pipeline *pipeline.Pipeline
	session  *session.State
	imageMap *imagemap.ImageMap
	mapOut   string
	store    *store.Store
}

// newApp assembles the pipeline from the global flags plus opts.
func newApp(opts appOptions) (*app, error) {
	if logger == nil {
		initLogging()
	}

	sess := session.New()
	client := apiclient.New(apiclient.Config{
		BaseURL: viper.GetString("api-base"),
		Logger:  logger,
		Hooks: apiclient.Hooks{
			OnRequestStart: sess.TrackRequest,
			OnRequestEnd:   sess.UntrackRequest,
		},
	})

	a := &app{session: sess, mapOut: opts.mapOut}

	var m render.Map
	if opts.mapOut != "" {
		w, h := opts.mapWidth, opts.mapHeight
		if w <= 0 {
			w = 1024
		}
		if h <= 0 {
			h = 768
		}
		a.imageMap = imagemap.New(w, h)
		m = a.imageMap
	}

	var source pipeline.BuildingSource
	switch viper.GetString("source") {
	case "backend":
	case "overpass":
		if path := viper.GetString("cache-db"); path != "" {
			st, err := store.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open building cache: %w", err)
			}
			a.store = st
		}
		source = datasource.NewOverpassDataSource(
			viper.GetString("overpass-endpoint"),
			a.store,
			viper.GetDuration("cache-max-age"),
			logger,
		)
	default:
		return nil, fmt.Errorf("unsupported source: %s", viper.GetString("source"))
	}

	p, err := pipeline.New(pipeline.Config{
		Client:     client,
		Session:    sess,
		Renderer:   render.New(m, render.Config{Logger: logger}),
		Source:     source,
		SampleCap:  opts.sampleCap,
		OnProgress: opts.onProgress,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

// loadBuildings dispatches to the configured building source.
func (a *app) loadBuildings(ctx context.Context, zone, method string) (*pipeline.LoadResult, error) {
	if viper.GetString("source") == "overpass" {
		return a.pipeline.LoadBuildingsDirect(ctx, zone)
	}
	return a.pipeline.LoadBuildings(ctx, zone, method)
}

// writeMap writes the rendered marker map PNG when one was requested.
func (a *app) writeMap(res *pipeline.LoadResult) error {
	if a.imageMap == nil {
		return nil
	}
	a.imageMap.SetLegend(res.Render.Legend)
	if err := a.imageMap.WritePNG(a.mapOut); err != nil {
		return fmt.Errorf("write map: %w", err)
	}
	logger.Info("Marker map written", "path", a.mapOut)
	return nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("closing building cache failed", "error", err)
		}
	}
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
