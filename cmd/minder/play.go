package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/music-minder/internal/audio"
	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/platform"
	"github.com/franz/music-minder/internal/util"
)

var (
	playShuffle bool
	playRepeat  string
	playVolume  int
)

var playCmd = &cobra.Command{
	Use:   "play [files...]",
	Short: "Play audio files or the whole catalog",
	Long: `Play queues the given files and plays them through the default audio
device. With no arguments the entire catalog is queued. Playback runs
until the queue finishes or the process is interrupted.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVarP(&playShuffle, "shuffle", "s", false, "shuffle the queue before playing")
	playCmd.Flags().StringVar(&playRepeat, "repeat", "off", "repeat mode: off, all, or one")
	playCmd.Flags().IntVar(&playVolume, "volume", 100, "initial volume, 0-100")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	repeat, err := parseRepeat(playRepeat)
	if err != nil {
		return err
	}
	if playVolume < 0 || playVolume > 100 {
		return usageErrorf("volume must be between 0 and 100")
	}

	eng, store, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	defer eng.Close()

	items, err := buildPlayQueue(store, args)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return usageErrorf("nothing to play")
	}

	player, err := eng.Player()
	if err != nil {
		return err
	}

	controls := platform.NewMediaControls(player.Send)
	if err := controls.Start(); err != nil {
		util.DebugLog("Media controls unavailable: %v", err)
	} else {
		defer controls.Stop()
	}

	for _, it := range items {
		player.Send(audio.Command{Type: audio.CmdEnqueue, Item: it})
	}
	if playShuffle {
		player.Send(audio.Command{Type: audio.CmdShuffle})
	}
	if repeat != audio.RepeatOff {
		player.Send(audio.Command{Type: audio.CmdSetRepeat, Repeat: repeat})
	}
	if playVolume != 100 {
		player.Send(audio.Command{Type: audio.CmdSetVolume, Volume: float32(playVolume) / 100})
	}
	player.Send(audio.Command{Type: audio.CmdPlay})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return playLoop(ctx, player, controls, len(items))
}

// playLoop drives the terminal display and media-control updates from
// player events until the queue finishes or ctx is cancelled.
func playLoop(ctx context.Context, player *audio.Engine, controls platform.MediaControls, queueLen int) error {
	var (
		current  audio.QueueItem
		duration time.Duration
		playing  bool
	)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	update := func(stopped bool) {
		controls.Update(platform.NowPlaying{
			TrackID:     current.TrackID,
			Title:       current.DisplayTitle(),
			Artist:      current.Artist,
			Album:       current.Album,
			Playing:     playing,
			Stopped:     stopped,
			Position:    player.Shared().Position(),
			Duration:    duration,
			QueueLength: queueLen,
		})
	}

	for {
		select {
		case <-ctx.Done():
			player.Send(audio.Command{Type: audio.CmdShutdown})
			// drain until the engine closes the channel
			for range player.Events() {
			}
			util.InfoLog("Playback stopped")
			return nil

		case <-ticker.C:
			if playing {
				update(false)
			}

		case ev, ok := <-player.Events():
			if !ok {
				return nil
			}
			switch ev.Type {
			case audio.EventTrackLoaded:
				current = ev.Item
				duration = ev.Duration
				label := current.DisplayTitle()
				if current.Artist != "" {
					label = current.Artist + " - " + label
				}
				util.InfoLog("Now playing: %s", label)
				update(false)
			case audio.EventStateChanged:
				playing = ev.State == audio.StatePlaying
				if ev.State == audio.StateStopped {
					update(true)
					player.Send(audio.Command{Type: audio.CmdShutdown})
					for range player.Events() {
					}
					util.SuccessLog("Queue finished")
					return nil
				}
				update(false)
			case audio.EventError:
				util.WarnLog("Playback: %v", ev.Err)
			}
		}
	}
}

// buildPlayQueue resolves files into queue items, pulling metadata from
// the catalog when a file is indexed. No arguments means the whole
// catalog in its stored order.
func buildPlayQueue(store *catalog.Store, args []string) ([]audio.QueueItem, error) {
	if len(args) == 0 {
		tracks, err := store.GetAllTracks()
		if err != nil {
			return nil, err
		}
		items := make([]audio.QueueItem, 0, len(tracks))
		for _, t := range tracks {
			items = append(items, audio.QueueItem{
				TrackID: t.ID,
				Path:    t.Path,
				Title:   t.Title,
				Artist:  t.Artist,
				Album:   t.Album,
			})
		}
		return items, nil
	}

	items := make([]audio.QueueItem, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, usageErrorf("cannot read %s: %v", arg, err)
		}
		item := audio.QueueItem{Path: abs}
		if t, err := store.GetTrackByPath(abs); err == nil {
			item.TrackID = t.ID
			item.Title = t.Title
			item.Artist = t.Artist
			item.Album = t.Album
		} else if !errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func parseRepeat(s string) (audio.RepeatMode, error) {
	switch s {
	case "off":
		return audio.RepeatOff, nil
	case "all":
		return audio.RepeatAll, nil
	case "one":
		return audio.RepeatOne, nil
	default:
		return audio.RepeatOff, usageErrorf("invalid repeat mode: %s (use off, all, or one)", s)
	}
}
