package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/config"
	mengine "github.com/franz/music-minder/internal/engine"
	"github.com/franz/music-minder/internal/fingerprint"
	"github.com/franz/music-minder/internal/util"
)

var (
	cfgFile string
	dbPath  string
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "minder",
		Short: "Music Minder - catalog, identify, and organize your music library",
		Long: `minder keeps a desktop music library healthy: it scans and watches
directories into an embedded catalog, identifies files by acoustic
fingerprint, fills in missing tags, organizes files into a clean layout
with full undo, and plays the result.`,
		Version:       util.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			quiet, _ := cmd.Flags().GetBool("quiet")
			noColor, _ := cmd.Flags().GetBool("no-color")
			util.SetVerbose(verbose)
			util.SetQuiet(quiet)
			if noColor {
				util.SetColors(false)
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return nil
		},
	}
)

// usageError marks mistakes the user can fix (exit code 1); everything
// else that fails is a runtime error (exit code 2).
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...interface{}) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "catalog database file (default is the user data dir)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored log output")
}

func catalogPath() string {
	if dbPath != "" {
		return dbPath
	}
	return filepath.Join(config.DataDir(), "library.db")
}

// openEngine builds the full engine; the caller must Close it and the
// returned store.
func openEngine() (*mengine.Engine, *catalog.Store, error) {
	store, err := catalog.Open(catalogPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	eng := mengine.New(mengine.Options{
		Store:    store,
		Config:   cfg,
		DataDir:  config.DataDir(),
		CacheDir: filepath.Join(config.CacheDir(), "covers"),
	})
	return eng, store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var ue usageError
		switch {
		case errors.As(err, &ue),
			errors.Is(err, mengine.ErrMissingAPIKey),
			errors.Is(err, fingerprint.ErrToolMissing):
			os.Exit(1)
		default:
			os.Exit(2)
		}
	}
}
