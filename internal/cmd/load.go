package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loadCmd = &cobra.Command{
	Use:   "load <zone>",
	Short: "Load a zone's building footprints",
	Long: `Load building footprints for a zone, downsample them to the render cap,
and print the building-type legend. With --map-out the classified markers
are rendered into a PNG.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().String("method", "relation", "Backend OSM query method (relation, bbox, hybrid)")
	loadCmd.Flags().Int("cap", 0, "Render cap (0 uses the default of 20000)")
	loadCmd.Flags().String("map-out", "", "Write a marker-map PNG to this path")
	loadCmd.Flags().Int("map-width", 1024, "Marker-map width in pixels")
	loadCmd.Flags().Int("map-height", 768, "Marker-map height in pixels")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"load.method", "method"},
		{"load.cap", "cap"},
		{"load.map_out", "map-out"},
		{"load.map_width", "map-width"},
		{"load.map_height", "map-height"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, loadCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{
		mapOut:    viper.GetString("load.map_out"),
		mapWidth:  viper.GetInt("load.map_width"),
		mapHeight: viper.GetInt("load.map_height"),
		sampleCap: viper.GetInt("load.cap"),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := a.loadBuildings(ctx, args[0], viper.GetString("load.method"))
	if err != nil {
		return err
	}

	fmt.Printf("Fetched:  %d buildings (%d invalid skipped)\n", res.Sample.Valid+res.Sample.Invalid, res.Sample.Invalid)
	if res.Sample.Stride > 1 {
		fmt.Printf("Sampled:  %d kept (stride %d)\n", res.Sample.Kept, res.Sample.Stride)
	}
	if res.Render.Placeholder != "" {
		fmt.Println(res.Render.Placeholder)
	} else {
		fmt.Printf("Rendered: %d markers (%d skipped)\n", res.Render.Placed, res.Render.Skipped)
	}

	if len(res.Render.Legend) > 0 {
		fmt.Println("\nBuilding types:")
		for _, e := range res.Render.Legend {
			fmt.Printf("  %s\n", e)
		}
	}

	return a.writeMap(res)
}
