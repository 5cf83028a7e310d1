package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/gridmap/internal/datasource"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gridmap",
	Short: "Building-footprint loading and electricity dataset generation for Malaysia zones",
	Long: `Gridmap loads OpenStreetMap building footprints for Malaysian zones,
renders them to a classified marker map, and drives the synthetic
electricity-consumption dataset generator.

Buildings come either from the generation backend's API or directly from
the Overpass API with a local SQLite cache.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("api-base", "http://127.0.0.1:5000", "Generation backend base URL")
	rootCmd.PersistentFlags().String("source", "backend", "Building source (backend, overpass)")
	rootCmd.PersistentFlags().String("overpass-endpoint", datasource.DefaultEndpoint, "Overpass interpreter URL (source=overpass)")
	rootCmd.PersistentFlags().String("cache-db", "", "SQLite building cache path (source=overpass; empty disables)")
	rootCmd.PersistentFlags().Duration("cache-max-age", 24*time.Hour, "Maximum age of cached zone buildings")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	bindFlags := []string{"api-base", "source", "overpass-endpoint", "cache-db", "cache-max-age", "verbose"}
	for _, name := range bindFlags {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("GRIDMAP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
