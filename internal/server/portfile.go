package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// portResult is one outcome of watching the port file: either the parsed
// config port or a watch failure.
type portResult struct {
	port uint16
	err  error
}

// watchPortFile watches the directory containing path until the server has
// written its config port there. The file is only considered complete once
// it ends with a newline; partial writes are ignored and re-read on the
// next event.
//
// The returned stop function must be called to release the watcher.
func watchPortFile(dir, path string) (<-chan portResult, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create port file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	results := make(chan portResult, 1)
	go func() {
		// The server may have written the file between MkdirTemp and
		// watcher.Add; check once before waiting for events.
		if port, ok, err := readPortFile(path); err != nil || ok {
			results <- portResult{port: port, err: err}
			return
		}
		for {
			select {
			case _, open := <-watcher.Events:
				if !open {
					return
				}
				port, ok, err := readPortFile(path)
				if err != nil || ok {
					results <- portResult{port: port, err: err}
					return
				}
			case err, open := <-watcher.Errors:
				if !open {
					return
				}
				results <- portResult{err: fmt.Errorf("port file watch failed: %w", err)}
				return
			}
		}
	}()

	return results, func() { watcher.Close() }, nil
}

// readPortFile parses the port file. ok is false while the file does not
// exist yet or is missing its terminating newline.
func readPortFile(path string) (port uint16, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read port file: %w", err)
	}
	contents := string(data)
	if !strings.HasSuffix(contents, "\n") {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(contents), 10, 16)
	if err != nil {
		return 0, false, fmt.Errorf("parse port file %q: %w", strings.TrimSpace(contents), err)
	}
	return uint16(n), true, nil
}
