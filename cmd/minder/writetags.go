package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/engine"
	"github.com/franz/music-minder/internal/meta"
	"github.com/franz/music-minder/internal/util"
)

var (
	wtTitle    string
	wtArtist   string
	wtAlbum    string
	wtGenre    string
	wtTrackNum int
	wtYear     int
	wtFillOnly bool
	wtPreview  bool
)

var writeTagsCmd = &cobra.Command{
	Use:   "write-tags <file>",
	Short: "Edit a file's tags",
	Long: `Write-tags sets the given tag fields on the file. With --fill-only,
fields that already have a value are left alone; with --preview the
pending changes are printed and nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runWriteTags,
}

func init() {
	writeTagsCmd.Flags().StringVar(&wtTitle, "title", "", "track title")
	writeTagsCmd.Flags().StringVar(&wtArtist, "artist", "", "artist name")
	writeTagsCmd.Flags().StringVar(&wtAlbum, "album", "", "album title")
	writeTagsCmd.Flags().StringVar(&wtGenre, "genre", "", "genre")
	writeTagsCmd.Flags().IntVar(&wtTrackNum, "track", 0, "track number")
	writeTagsCmd.Flags().IntVar(&wtYear, "year", 0, "release year")
	writeTagsCmd.Flags().BoolVar(&wtFillOnly, "fill-only", false, "never overwrite existing values")
	writeTagsCmd.Flags().BoolVar(&wtPreview, "preview", false, "show pending changes without writing")
	rootCmd.AddCommand(writeTagsCmd)
}

func runWriteTags(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return usageErrorf("file does not exist: %s", path)
	}
	if !meta.CanWrite(path) {
		return usageErrorf("unsupported format for tag writing: %s", path)
	}

	rec := &meta.TagRecord{
		Title:  wtTitle,
		Artist: wtArtist,
		Album:  wtAlbum,
		Genre:  wtGenre,
	}
	if wtTrackNum > 0 {
		rec.TrackNumber = &wtTrackNum
	}
	if wtYear > 0 {
		rec.Year = &wtYear
	}

	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	res, err := eng.WriteTags(context.Background(), engine.WriteTagsRequest{
		Path:     path,
		Fields:   rec,
		FillOnly: wtFillOnly,
		Preview:  wtPreview,
	})
	if err != nil {
		return err
	}

	if wtPreview {
		if len(res.Changes) == 0 {
			util.InfoLog("No changes")
			return nil
		}
		for _, c := range res.Changes {
			fmt.Printf("  %s: %q -> %q\n", c.Field, c.Old, c.New)
		}
		for _, s := range res.Skipped {
			fmt.Printf("  %s: kept existing value\n", s)
		}
		return nil
	}

	util.SuccessLog("Updated %d fields (%d kept)", len(res.Report.FieldsUpdated), len(res.Report.FieldsSkipped))
	return nil
}
