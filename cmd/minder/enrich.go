package main

import (
	"context"
	"errors"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/engine"
	"github.com/franz/music-minder/internal/enrich"
	"github.com/franz/music-minder/internal/util"
)

var (
	enrichKey        string
	enrichMinConf    float64
	enrichWrite      bool
	enrichFillOnly   bool
	enrichFromDB     bool
	enrichBatchLimit int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [files...]",
	Short: "Fingerprint and identify a batch of files",
	Long: `Enrich fingerprints each file, identifies it via AcoustID, and records
the outcome in the catalog's health table. With --write, identified tags
are written into the files; --fill-only protects existing values.
Without file arguments, --from-catalog enriches unchecked catalog
entries instead.`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichKey, "key", "k", "", "AcoustID API key")
	enrichCmd.Flags().Float64Var(&enrichMinConf, "min-confidence", 0, "minimum match confidence (default 0.8)")
	enrichCmd.Flags().BoolVarP(&enrichWrite, "write", "w", false, "write identified tags into the files")
	enrichCmd.Flags().BoolVar(&enrichFillOnly, "fill-only", true, "only fill empty tag fields when writing")
	enrichCmd.Flags().BoolVar(&enrichFromDB, "from-catalog", false, "enrich catalog entries with no health record")
	enrichCmd.Flags().IntVar(&enrichBatchLimit, "limit", 100, "max files per batch with --from-catalog")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	paths := args
	if len(paths) == 0 {
		if !enrichFromDB {
			return usageErrorf("no files given (pass paths or --from-catalog)")
		}
		paths, err = uncheckedPaths(store, enrichBatchLimit)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			util.InfoLog("Every catalog entry already has a health record")
			return nil
		}
	}

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stderr.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("enriching"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	res, err := eng.Enrich(context.Background(), engine.EnrichRequest{
		Paths:         paths,
		APIKey:        enrichKey,
		MinConfidence: enrichMinConf,
		Write:         enrichWrite,
		FillOnly:      enrichFillOnly,
		OnProgress: func(p enrich.Progress) {
			if bar != nil {
				bar.Set(p.Processed)
			}
		},
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	util.SuccessLog("Enriched %d files: %d matched, %d no match, %d failed",
		len(res.Items), res.Matched, res.NoMatch, res.Failed)
	return nil
}

// uncheckedPaths returns catalog entries that have never been enriched.
func uncheckedPaths(store *catalog.Store, limit int) ([]string, error) {
	all, err := store.GetAllTrackPaths()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range all {
		if limit > 0 && len(out) >= limit {
			break
		}
		if _, err := store.GetFileHealth(p); errors.Is(err, util.ErrNotFound) {
			out = append(out, p)
		}
	}
	return out, nil
}
