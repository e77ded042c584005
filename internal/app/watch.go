package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/francisoliverlee/rocketmq-mcp/internal/config"
)

const watchDebounce = 200 * time.Millisecond

// watchConfig calls onChange after writes to path settle. The parent
// directory is watched so editors that replace the file are seen.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, onChange func()) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("watch_disabled", slog.Any("err", err))
		return
	}
	defer w.Close()

	base := filepath.Base(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		logger.Warn("watch_disabled", slog.Any("err", err))
		return
	}
	logger.Info("watching_config", slog.String("path", path))

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
				continue
			}
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("watch_error", slog.Any("err", err))
		case <-timer.C:
			onChange()
		}
	}
}

// configChecker compares the config file on disk with the one the
// process started from. Settings are fixed for the process lifetime, so a
// difference is only reported.
type configChecker struct {
	path    string
	running config.Config
	logger  *slog.Logger
}

// check reports whether the file now differs from the running settings.
func (c configChecker) check() bool {
	if _, err := os.Stat(c.path); err != nil {
		c.logger.Error("config_reload_failed", slog.String("path", c.path), slog.Any("err", err))
		return false
	}
	next, err := config.Load(c.path, false)
	if err != nil {
		c.logger.Error("config_reload_failed", slog.String("path", c.path), slog.Any("err", err))
		return false
	}
	if res := config.Validate(next); !res.OK {
		c.logger.Error("config_reload_failed", slog.String("path", c.path), slog.Any("errors", res.Errors))
		return false
	}
	if next == c.running {
		c.logger.Info("config_unchanged", slog.String("path", c.path))
		return false
	}
	c.logger.Warn("config_change_requires_restart", slog.String("path", c.path))
	return true
}
