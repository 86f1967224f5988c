package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/catalog"
)

var checkStatus string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show library health from past enrichment runs",
	Long: `Check summarizes the file-health table: how many files identified
cleanly, how many had no fingerprint match, and how many errored.
--status lists the individual files in one bucket.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkStatus, "status", "", "list files with this status (ok, no_match, error)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	store, err := catalog.Open(catalogPath())
	if err != nil {
		return err
	}
	defer store.Close()

	if checkStatus != "" {
		status := catalog.HealthStatus(checkStatus)
		switch status {
		case catalog.HealthOK, catalog.HealthNoMatch, catalog.HealthError:
		default:
			return usageErrorf("unknown status %q (want ok, no_match, or error)", checkStatus)
		}
		rows, err := store.ListFileHealth(status)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tCHECKED\tCONFIDENCE\tDETAIL")
		for _, h := range rows {
			detail := h.ErrorDetail
			if h.ErrorKind != "" {
				detail = h.ErrorKind + ": " + detail
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", h.Path, h.CheckedAt.Format("2006-01-02 15:04"), h.Confidence, detail)
		}
		return w.Flush()
	}

	summary, err := store.GetHealthSummary()
	if err != nil {
		return err
	}
	total, err := store.CountTracks()
	if err != nil {
		return err
	}

	checked := summary.OK + summary.NoMatch + summary.Errors
	fmt.Printf("Tracks:     %d\n", total)
	fmt.Printf("Checked:    %d\n", checked)
	fmt.Printf("  ok:       %d\n", summary.OK)
	fmt.Printf("  no match: %d\n", summary.NoMatch)
	fmt.Printf("  error:    %d\n", summary.Errors)
	if unchecked := total - checked; unchecked > 0 {
		fmt.Printf("Unchecked:  %d (run 'minder enrich --from-catalog')\n", unchecked)
	}
	return nil
}
