package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/engine"
	"github.com/franz/music-minder/internal/health"
	"github.com/franz/music-minder/internal/scan"
	"github.com/franz/music-minder/internal/util"
)

var watchNoGardener bool

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and keep the catalog in sync",
	Long: `Watch monitors a directory tree for new, changed, and deleted audio
files and updates the catalog as changes land. A background gardener
keeps quality scores fresh while the watch runs. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoGardener, "no-gardener", false, "disable background quality rescoring")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := args[0]
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return usageErrorf("not a directory: %s", root)
	}

	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !watchNoGardener {
		gardener := health.NewGardener(store, health.DefaultGardenerConfig())
		gardener.Start(ctx)
		defer gardener.Wait()
		go func() {
			for ev := range gardener.Events() {
				if ev.Type == health.BatchDone && ev.Assessed > 0 {
					util.DebugLog("Gardener rescored %d tracks", ev.Assessed)
				}
			}
		}()
	}

	util.InfoLog("Watching %s (ctrl-c to stop)", root)
	err = eng.Watch(ctx, engine.WatchRequest{
		Root: root,
		OnEvent: func(ev scan.Event) {
			switch ev.Type {
			case scan.WatchError:
				util.WarnLog("Watch: %v", ev.Err)
			case scan.DirCreated:
				util.DebugLog("Watching new directory %s", ev.Path)
			default:
				util.InfoLog("%s %s", ev.Type, ev.Path)
			}
		},
	})
	if errors.Is(err, context.Canceled) {
		util.InfoLog("Watch stopped")
		return nil
	}
	return err
}
