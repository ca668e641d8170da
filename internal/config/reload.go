package config

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dshills/vtstate/internal/config/watcher"
)

// ApplyFunc receives a configuration that loaded and validated cleanly.
type ApplyFunc func(cfg *Config)

// Watch reloads path whenever it changes and passes the result to apply.
// A reload that fails to parse or validate is logged and the previous
// configuration stays in effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, log *zap.Logger, apply ApplyFunc) error {
	if path == "" {
		return errors.New("config: no file to watch")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config")

	w, err := watcher.New(path, watcher.WithErrorHandler(func(err error) {
		log.Warn("config watcher error", zap.Error(err))
	}))
	if err != nil {
		return err
	}

	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			log.Info("config file removed, keeping current settings", zap.String("path", ev.Path))
			return
		}
		cfg, err := Load(path)
		if err != nil {
			log.Error("config reload failed", zap.String("path", ev.Path), zap.Error(err))
			return
		}
		log.Info("config reloaded", zap.String("path", ev.Path), zap.Stringer("op", ev.Op))
		apply(cfg)
	})

	return w.Run(ctx)
}
