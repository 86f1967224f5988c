package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/fingerprint"
	"github.com/franz/music-minder/internal/util"
)

var checkToolsCmd = &cobra.Command{
	Use:   "check-tools",
	Short: "Verify the external tools minder depends on",
	Args:  cobra.NoArgs,
	RunE:  runCheckTools,
}

func init() {
	rootCmd.AddCommand(checkToolsCmd)
}

func runCheckTools(cmd *cobra.Command, args []string) error {
	if !fingerprint.Available() {
		return usageErrorf("fpcalc not found; %s", fingerprint.InstallHint())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	version, err := fingerprint.Version(ctx)
	if err != nil {
		return fmt.Errorf("fpcalc found at %s but not runnable: %w", fingerprint.Path(), err)
	}
	util.SuccessLog("fpcalc: %s (%s)", fingerprint.Path(), version)
	return nil
}
