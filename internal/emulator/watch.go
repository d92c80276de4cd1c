package emulator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WaitForResponse blocks until the round's response file appears in folder
// and returns its path. It returns at once when the file already exists.
func WaitForResponse(ctx context.Context, folder string, start, end int) (string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch before probing so a file placed in between is not missed.
	if err := watcher.Add(folder); err != nil {
		return "", fmt.Errorf("watching %s: %w", folder, err)
	}
	if path, err := probe(folder, start, end); path != "" || err != nil {
		return path, err
	}

	prefix := fmt.Sprintf("%03d-%03d.%s.", start, end, FileResponse)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return "", fmt.Errorf("watcher closed")
			}
			return "", fmt.Errorf("watching %s: %w", folder, err)
		case event, ok := <-watcher.Events:
			if !ok {
				return "", fmt.Errorf("watcher closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), prefix) {
				continue
			}
			if path, err := probe(folder, start, end); path != "" || err != nil {
				return path, err
			}
		}
	}
}

func probe(folder string, start, end int) (string, error) {
	name, err := FindFile(folder, start, end, FileResponse, extCSV)
	if err != nil || name == "" {
		return "", err
	}
	return filepath.Join(folder, name), nil
}
