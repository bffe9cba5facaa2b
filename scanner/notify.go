/*
Copyright 2023 eatmoreapple

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// notifier turns file system events under a directory into debounced scan
// requests on C.
type notifier struct {
	watcher  *fsnotify.Watcher
	match    func(name string) bool
	logger   *slog.Logger
	debounce time.Duration
	C        chan struct{}
	done     chan struct{}
}

func newNotifier(dir string, match func(string) bool, debounce time.Duration, logger *slog.Logger) (*notifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// fsnotify does not recurse, every directory is watched on its own
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	n := &notifier{
		watcher:  watcher,
		match:    match,
		logger:   logger,
		debounce: debounce,
		C:        make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go n.run()
	return n, nil
}

func (n *notifier) run() {
	timer := time.NewTimer(n.debounce)
	timer.Stop()
	var debounceCh <-chan time.Time

	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err = n.watcher.Add(event.Name); err != nil {
						n.logger.Warn("failed to watch directory", "dir", event.Name, "error", err)
					}
				}
			}
			// a removed directory can not be inspected, rescan anyway
			if !n.match(event.Name) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			n.logger.Debug("file system event", "file", event.Name, "op", event.Op.String())
			timer.Reset(n.debounce)
			debounceCh = timer.C

		case <-debounceCh:
			debounceCh = nil
			select {
			case n.C <- struct{}{}:
			default:
			}

		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.Warn("file system notification error", "error", err)

		case <-n.done:
			return
		}
	}
}

// Close stops the notifier.
func (n *notifier) Close() error {
	close(n.done)
	return n.watcher.Close()
}
