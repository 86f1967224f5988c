package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/engine"
	"github.com/franz/music-minder/internal/health"
	"github.com/franz/music-minder/internal/util"
)

var (
	qualityLimit int
	qualityWorst int
)

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Score metadata completeness across the library",
	Long: `Quality rescores every track's metadata completeness (0-100), stores
the scores, and prints the tier histogram. --worst lists the lowest
scoring tracks with the reasons they lose points.`,
	Args: cobra.NoArgs,
	RunE: runQuality,
}

func init() {
	qualityCmd.Flags().IntVar(&qualityLimit, "limit", 0, "only rescore this many tracks (0 = all)")
	qualityCmd.Flags().IntVar(&qualityWorst, "worst", 0, "list the N lowest scoring tracks")
	rootCmd.AddCommand(qualityCmd)
}

func runQuality(cmd *cobra.Command, args []string) error {
	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	res, err := eng.QualityScan(context.Background(), engine.QualityScanRequest{Limit: qualityLimit})
	if err != nil {
		return err
	}

	util.SuccessLog("Assessed %d tracks", res.Assessed)
	s := res.Stats
	fmt.Printf("Excellent (90+):  %d\n", s.Excellent)
	fmt.Printf("Good (70-89):     %d\n", s.Good)
	fmt.Printf("Fair (50-69):     %d\n", s.Fair)
	fmt.Printf("Poor (<50):       %d\n", s.Poor)
	if s.Unchecked > 0 {
		fmt.Printf("Unchecked:        %d\n", s.Unchecked)
	}
	fmt.Printf("Average score:    %.1f\n", s.Average)

	if qualityWorst > 0 {
		return listWorst(store, qualityWorst)
	}
	return nil
}

func listWorst(store *catalog.Store, n int) error {
	tracks, err := store.GetTracksBelowQuality(100, n)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tPATH\tPROBLEMS")
	for _, t := range tracks {
		score := 0
		if t.QualityScore != nil {
			score = *t.QualityScore
		}
		problems := ""
		for i, d := range health.Flags(t.QualityFlags).Descriptions() {
			if i > 0 {
				problems += "; "
			}
			problems += d
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", score, t.Path, problems)
	}
	return w.Flush()
}
