package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/vidrender/options"
)

// watchOptions reloads path whenever it changes and sends every file that
// decodes and validates. The directory is watched rather than the file so
// that editors replacing the file by rename are noticed.
func watchOptions(ctx context.Context, path string, log *slog.Logger) (<-chan *options.Options, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	want := filepath.Clean(path)
	out := make(chan *options.Options, 1)

	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != want ||
					!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				o, err := loadOptions(path)
				if err != nil {
					log.Warn("options reload failed", "path", path, "err", err)
					continue
				}
				log.Info("options reloaded", "path", path)
				// Keep only the newest pending update.
				select {
				case <-out:
				default:
				}
				out <- o
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch error", "err", err)
			}
		}
	}()
	return out, nil
}
