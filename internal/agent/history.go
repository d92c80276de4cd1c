package agent

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/nvandessel/nudge/internal/models"
)

// History files hold one sent notification per line:
// reward,time,day,location,activity,recency with the state dimensions
// written as their integer codes.

// WriteHistory writes samples in history-file format.
func WriteHistory(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.Reward, 'g', -1, 64),
			strconv.Itoa(int(s.State.Time)),
			strconv.Itoa(int(s.State.Day)),
			strconv.Itoa(int(s.State.Location)),
			strconv.Itoa(int(s.State.Activity)),
			strconv.Itoa(int(s.State.Recency)),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing history row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHistory parses a history file and validates every state.
func ReadHistory(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	cr.TrimLeadingSpace = true

	var samples []Sample
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading history line %d: %w", line, err)
		}

		reward, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("history line %d: reward: %w", line, err)
		}
		var codes [5]int
		for i := range codes {
			codes[i], err = strconv.Atoi(row[i+1])
			if err != nil {
				return nil, fmt.Errorf("history line %d: column %d: %w", line, i+2, err)
			}
		}
		s := models.State{
			Time:     models.TimeOfDay(codes[0]),
			Day:      models.DayType(codes[1]),
			Location: models.Location(codes[2]),
			Activity: models.Activity(codes[3]),
			Recency:  models.Recency(codes[4]),
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("history line %d: %w", line, err)
		}
		samples = append(samples, Sample{State: s, Reward: reward})
	}
	return samples, nil
}

func writeHistoryFile(path string, samples []Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating history file: %w", err)
	}
	if err := WriteHistory(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readHistoryFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()
	return ReadHistory(f)
}
