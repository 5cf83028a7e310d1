package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var downloadCmd = &cobra.Command{
	Use:   "download <filename>...",
	Short: "Download previously exported files from the backend",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringP("dir", "d", ".", "Directory to download into")
	if err := viper.BindPFlag("download.dir", downloadCmd.Flags().Lookup("dir")); err != nil {
		panic(fmt.Sprintf("failed to bind flag dir: %v", err))
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	dir := viper.GetString("download.dir")
	for _, name := range args {
		path, n, err := a.pipeline.Download(ctx, name, dir)
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", name, err)
		}
		fmt.Printf("Downloaded %s (%d bytes)\n", path, n)
	}
	return nil
}
