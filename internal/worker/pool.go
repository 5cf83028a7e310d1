// Package worker provides a parallel zone-prefetch worker pool.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/gridmap/internal/types"
)

// Fetcher loads a zone's buildings. This matches the signature of
// datasource.OverpassDataSource.FetchZoneBuildings.
type Fetcher interface {
	FetchZoneBuildings(ctx context.Context, zone types.Zone) ([]types.Building, error)
}

// Result is the outcome of prefetching one zone.
type Result struct {
	Zone    types.Zone
	Count   int
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each zone completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Fetcher    Fetcher
	OnProgress ProgressFunc
}

// Pool prefetches zones in parallel.
type Pool struct {
	workers    int
	fetcher    Fetcher
	onProgress ProgressFunc
}

// New creates a worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:    workers,
		fetcher:    cfg.Fetcher,
		onProgress: cfg.OnProgress,
	}
}

// Run prefetches all zones and returns one result per zone. It blocks until
// every zone completes or the context is cancelled.
func (p *Pool) Run(ctx context.Context, zones []types.Zone) []Result {
	if len(zones) == 0 {
		return nil
	}

	zoneCh := make(chan types.Zone, len(zones))
	resultCh := make(chan Result, len(zones))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, zoneCh, resultCh)
		}()
	}

	for _, zone := range zones {
		zoneCh <- zone
	}
	close(zoneCh)

	done := make(chan struct{})
	results := make([]Result, 0, len(zones))
	var completed, failed int

	go func() {
		for result := range resultCh {
			results = append(results, result)
			completed++
			if result.Err != nil {
				failed++
			}
			if p.onProgress != nil {
				p.onProgress(completed, len(zones), failed)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done
	return results
}

func (p *Pool) worker(ctx context.Context, zones <-chan types.Zone, results chan<- Result) {
	for zone := range zones {
		select {
		case <-ctx.Done():
			results <- Result{Zone: zone, Err: ctx.Err()}
			continue
		default:
		}

		start := time.Now()
		buildings, err := p.fetcher.FetchZoneBuildings(ctx, zone)
		results <- Result{
			Zone:    zone,
			Count:   len(buildings),
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
