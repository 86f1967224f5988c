package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/engine"
	"github.com/franz/music-minder/internal/util"
)

var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Index a directory tree into the catalog",
	Long: `Scan walks the directory, reads tags from every audio file, and
upserts each one into the catalog. Files that vanished from disk are
removed from the catalog. Scanning the same tree twice is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	root := args[0]
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return usageErrorf("directory does not exist: %s", root)
	}

	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	res, err := eng.Scan(context.Background(), engine.ScanRequest{Root: root})
	if err != nil {
		return err
	}

	util.SuccessLog("Scan complete: %d files found, %d indexed, %d removed, %d errors",
		res.FilesFound, res.Indexed, res.Removed, len(res.Errors))
	return nil
}
