package rules

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the bursts of write events editors and atomic
// renames produce into a single reload.
const reloadDebounce = 250 * time.Millisecond

// WatchRulesFile watches the rules YAML file and hot-reloads the engine's
// rule table when it changes. A file that fails to parse is logged and
// skipped; the engine keeps its current rules. The watcher runs until ctx is
// cancelled.
func WatchRulesFile(ctx context.Context, path string, engine *Engine) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve rules path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory, not the file: editors and config management
	// tools replace files via rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch rules directory: %w", err)
	}

	go func() {
		defer watcher.Close()

		var pending *time.Timer
		reload := make(chan struct{}, 1)

		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("rules watcher error: %v", err)

			case <-reload:
				rules, err := LoadRulesFromFile(absPath)
				if err != nil {
					log.Printf("rules reload skipped, file invalid: %v", err)
					continue
				}
				if err := engine.ReplaceRules(rules); err != nil {
					log.Printf("rules reload skipped: %v", err)
					continue
				}
				log.Printf("reloaded %d rules from %s", len(rules), absPath)
			}
		}
	}()

	return nil
}
