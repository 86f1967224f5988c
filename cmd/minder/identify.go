package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/engine"
	"github.com/franz/music-minder/internal/util"
)

var identifyKey string

var identifyCmd = &cobra.Command{
	Use:   "identify <file>",
	Short: "Identify one file by acoustic fingerprint",
	Long: `Identify fingerprints the file with fpcalc and looks it up against the
AcoustID service. Matches are listed best first with their confidence
scores. Requires an API key (--key, credentials.acoustid_api_key, or
ACOUSTID_API_KEY).`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	identifyCmd.Flags().StringVarP(&identifyKey, "key", "k", "", "AcoustID API key")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return usageErrorf("file does not exist: %s", path)
	}

	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	matches, err := eng.Identify(context.Background(), engine.IdentifyRequest{Path: path, APIKey: identifyKey})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		util.InfoLog("No matches for %s", path)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tARTIST\tTITLE\tALBUM\tRECORDING")
	for _, m := range matches {
		fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%s\n", m.Score, m.Artist, m.Title, m.Album, m.RecordingID)
	}
	return w.Flush()
}
