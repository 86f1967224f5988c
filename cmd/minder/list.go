package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/catalog"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog tracks",
	Long: `List prints the catalog in a stable order. By default only the first
page is shown for a fast answer on large libraries; --all streams the
rest as well.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "list every track, not just the first page")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := catalog.Open(catalogPath())
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.CountTracks()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tARTIST\tALBUM\t#\tTITLE\tQUALITY")

	printed := 0
	// First page immediately, remainder only on request.
	page, err := store.GetTracksPaginated(catalog.FirstPageSize, 0)
	if err != nil {
		return err
	}
	printed += printTracks(w, page)

	if listAll {
		for printed < total {
			page, err = store.GetTracksPaginated(catalog.FirstPageSize, printed)
			if err != nil {
				return err
			}
			if len(page) == 0 {
				break
			}
			printed += printTracks(w, page)
		}
	}
	w.Flush()

	if printed < total {
		fmt.Printf("... %d of %d tracks shown (use --all for the rest)\n", printed, total)
	} else {
		fmt.Printf("%d tracks\n", printed)
	}
	return nil
}

func printTracks(w *tabwriter.Writer, tracks []*catalog.Track) int {
	for _, t := range tracks {
		num := ""
		if t.TrackNumber != nil {
			num = fmt.Sprintf("%02d", *t.TrackNumber)
		}
		quality := "-"
		if t.QualityScore != nil {
			quality = fmt.Sprintf("%d", *t.QualityScore)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Artist, t.Album, num, t.Title, quality)
	}
	return len(tracks)
}
