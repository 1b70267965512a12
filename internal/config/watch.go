package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"usher/internal/utils"
)

// Watch reloads the configuration whenever the file is rewritten and hands
// the new value to onChange. Editors often replace the file instead of
// writing in place, so the parent directory is watched and events are
// filtered by name. A reload that fails validation keeps the old config.
func Watch(path string, logger *utils.Logger, onChange func(*Config)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Error("Config reload failed, keeping previous settings:", err)
					continue
				}
				logger.Info("Config reloaded from", path)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("Config watcher error:", err)
			}
		}
	}()

	return watcher.Close, nil
}
