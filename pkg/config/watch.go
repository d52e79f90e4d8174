package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/odvcencio/autotap/pkg/errors"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads the config file at path whenever it changes and passes the
// result to onChange. A reload that fails is reported with a nil config.
// Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file so editors that
// replace the file on save keep triggering reloads.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) error {
	if onChange == nil {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "config watch requires a callback")
	}
	abs, err := filepath.Abs(expandHomeDir(path))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "resolve config path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "create config watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "watch config directory").
			WithContext("path", abs)
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			reload = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onChange(nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "config watcher"))
		case <-reload:
			reload = nil
			cfg, err := LoadFromPath(abs)
			onChange(cfg, err)
		}
	}
}
