package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitForChannels blocks until dir holds at least want files matching
// pattern, watching the directory for the imaging step to deliver
// them. A zero timeout waits until ctx is done.
func WaitForChannels(ctx context.Context, logger *slog.Logger, dir, pattern string, want int, timeout time.Duration) error {
	count := func() (int, error) {
		paths, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return 0, err
		}
		return len(paths), nil
	}

	n, err := count()
	if err != nil {
		return err
	}
	if n >= want {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}
	logger.Info("waiting for channel images", "dir", dir, "have", n, "want", want)

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed while waiting on %s", dir)
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// Recount on every relevant event; renames and deletes can
			// move the count in either direction.
			n, err := count()
			if err != nil {
				return err
			}
			if n >= want {
				logger.Info("channel images complete", "dir", dir, "count", n)
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed while waiting on %s", dir)
			}
			return err
		case <-deadline:
			n, _ := count()
			return fmt.Errorf("timed out waiting for channel images in %s: have %d, want %d", dir, n, want)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
