// Package flagged manages the list of crowd respondents whose answers are
// discarded, and detects respondents who answer with a single label.
package flagged

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Set is a set of respondent identifiers.
type Set map[string]struct{}

// Has reports whether id is listed. A nil set lists nobody.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add lists id. Blank identifiers are ignored.
func (s Set) Add(id string) {
	if id = strings.TrimSpace(id); id != "" {
		s[id] = struct{}{}
	}
}

// Sorted returns the identifiers in order.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Parse reads one identifier per line.
func Parse(r io.Reader) (Set, error) {
	s := Set{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.Add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading flagged list: %w", err)
	}
	return s, nil
}

// Load reads a flagged list file. A missing file yields an empty set.
func Load(path string) (Set, error) {
	if path == "" {
		return Set{}, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening flagged list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Append adds ids that are not yet listed to the file at path, creating it
// when needed, and returns how many were added.
func Append(path string, ids []string) (int, error) {
	existing, err := Load(path)
	if err != nil {
		return 0, err
	}
	var lines []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || existing.Has(id) {
			continue
		}
		existing.Add(id)
		lines = append(lines, id)
	}
	if len(lines) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening flagged list: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return 0, fmt.Errorf("writing flagged list: %w", err)
	}
	return len(lines), nil
}
