package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <zone>",
	Short: "Show the backend's complexity estimate for a zone",
	Args:  cobra.ExactArgs(1),
	RunE:  runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	est, err := a.pipeline.EstimateZone(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Zone:              %s\n", est.ZoneName)
	fmt.Printf("Buildings (est.):  %d\n", est.EstimatedBuildings)
	fmt.Printf("Area:              %.1f km²\n", est.AreaKM2)
	fmt.Printf("Load time (est.):  %.1f min\n", est.EstimatedTimeMinutes)
	fmt.Printf("Size (est.):       %.1f MB\n", est.EstimatedSizeMB)
	fmt.Printf("Complexity:        %s\n", est.ComplexityLevel)
	if est.Recommendation != "" {
		fmt.Printf("Recommendation:    %s\n", est.Recommendation)
	}
	for _, w := range est.Warnings {
		fmt.Printf("Warning:           %s\n", w)
	}
	return nil
}
