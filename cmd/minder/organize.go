package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/engine"
	"github.com/franz/music-minder/internal/organize"
	"github.com/franz/music-minder/internal/util"
)

var (
	organizeDest    string
	organizePattern string
	organizeDryRun  bool
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Move library files into a clean folder layout",
	Long: `Organize renames every cataloged file into the destination following
the pattern. Placeholders: {Artist}, {Album}, {TrackNum}, {Title}, {ext};
missing values fall back to Unknown. Every completed move is journaled,
so 'minder undo' can reverse the run. Use --dry-run to preview.`,
	Args: cobra.NoArgs,
	RunE: runOrganize,
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Reverse the last organize run",
	Args:  cobra.NoArgs,
	RunE:  runUndo,
}

func init() {
	organizeCmd.Flags().StringVarP(&organizeDest, "dest", "d", "", "destination root directory (required)")
	organizeCmd.Flags().StringVarP(&organizePattern, "pattern", "p", organize.DefaultPattern, "path pattern")
	organizeCmd.Flags().BoolVarP(&organizeDryRun, "dry-run", "n", false, "print planned moves without touching files")
	organizeCmd.MarkFlagRequired("dest")
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(undoCmd)
}

func runOrganize(cmd *cobra.Command, args []string) error {
	if organizeDest == "" {
		return usageErrorf("destination is required (--dest)")
	}

	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	req := engine.OrganizeRequest{
		Destination: organizeDest,
		Pattern:     organizePattern,
		DryRun:      organizeDryRun,
	}
	if organizeDryRun {
		req.OnMove = func(m organize.PlannedMove) {
			fmt.Printf("  %s\n    -> %s\n", m.Source, m.Destination)
		}
	}

	res, err := eng.Organize(context.Background(), req)
	if err != nil {
		return err
	}

	if organizeDryRun {
		util.InfoLog("Dry run: %d files would move", res.Planned)
		return nil
	}
	util.SuccessLog("Organized %d files (%d skipped, %d failed)", res.Moved, res.Skipped, res.Failed)
	for _, e := range res.Errors {
		util.WarnLog("  %v", e)
	}
	return nil
}

func runUndo(cmd *cobra.Command, args []string) error {
	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	if !eng.HasUndo() {
		return usageErrorf("nothing to undo: no organize journal found")
	}

	res, err := eng.Undo(context.Background())
	if err != nil {
		return err
	}
	util.SuccessLog("Restored %d files (%d failed)", res.Moved, res.Failed)
	return nil
}
