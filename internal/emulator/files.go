package emulator

import (
	"fmt"
	"os"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
)

// File types inside an emulation folder. Names follow
// "{start:03d}-{end:03d}.{type}.{optional-suffix}.{ext}".
const (
	FileAction    = "action"
	FileResponse  = "response"
	FileSavepoint = "savepoint"

	extCSV       = "csv"
	extSavepoint = "sav"
)

// RoundEnd returns the last day of the round starting at start: the first
// seven rounds last one day, later rounds a week.
func RoundEnd(start int) int {
	if start < 7 {
		return start
	}
	return start + 6
}

// FileName returns the canonical file name of a round file.
func FileName(start, end int, fileType, ext string) string {
	return fmt.Sprintf("%03d-%03d.%s.%s", start, end, fileType, ext)
}

// FindFile returns the name of the round file in folder matching the type
// and extension, or "" when there is none. More than one match is an
// integrity error.
func FindFile(folder string, start, end int, fileType, ext string) (string, error) {
	prefix := fmt.Sprintf("%03d-%03d.%s.", start, end, fileType)
	suffix := "." + ext

	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", fmt.Errorf("listing emulation folder: %w", err)
	}
	var matches []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	}
	return "", &models.IntegrityError{
		StartDay: start,
		EndDay:   end,
		FileType: fileType,
		Detail:   fmt.Sprintf("ambiguous files %s", strings.Join(matches, ", ")),
	}
}
