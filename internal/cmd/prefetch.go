package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/gridmap/internal/datasource"
	"github.com/MeKo-Tech/gridmap/internal/store"
	"github.com/MeKo-Tech/gridmap/internal/types"
	"github.com/MeKo-Tech/gridmap/internal/worker"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch [zone]...",
	Short: "Prefetch zone buildings from Overpass into the local cache",
	Long: `Fetch building footprints for the given zones (default: all catalog
zones) directly from the Overpass API and store them in the SQLite cache,
so later loads are served locally. Requires --cache-db.`,
	RunE: runPrefetch,
}

func init() {
	rootCmd.AddCommand(prefetchCmd)

	prefetchCmd.Flags().IntP("workers", "w", 2, "Number of parallel zone fetches")
	prefetchCmd.Flags().Bool("progress", true, "Show a progress bar")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"prefetch.workers", "workers"},
		{"prefetch.progress", "progress"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, prefetchCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	dbPath := viper.GetString("cache-db")
	if dbPath == "" {
		return fmt.Errorf("--cache-db is required for prefetch")
	}

	zones := types.MajorZones
	if len(args) > 0 {
		zones = zones[:0:0]
		for _, name := range args {
			zone, ok := types.LookupZone(name)
			if !ok {
				return fmt.Errorf("unknown zone %q", name)
			}
			zones = append(zones, zone)
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open building cache: %w", err)
	}
	defer st.Close()

	ds := datasource.NewOverpassDataSource(
		viper.GetString("overpass-endpoint"),
		st,
		viper.GetDuration("cache-max-age"),
		logger,
	)
	defer ds.Close()

	ctx, cancel := signalContext()
	defer cancel()

	prog := worker.NewProgress(len(zones), viper.GetBool("prefetch.progress"))
	pool := worker.New(worker.Config{
		Workers:    viper.GetInt("prefetch.workers"),
		Fetcher:    ds,
		OnProgress: prog.Callback(),
	})

	results := pool.Run(ctx, zones)
	prog.Done()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("zone prefetch failed", "zone", r.Zone.ID, "error", r.Err)
			continue
		}
		logger.Info("zone prefetched", "zone", r.Zone.ID, "buildings", r.Count, "elapsed", r.Elapsed)
	}

	fmt.Println(prog.Summary())
	if failed > 0 {
		return fmt.Errorf("%d of %d zones failed", failed, len(zones))
	}
	return nil
}
