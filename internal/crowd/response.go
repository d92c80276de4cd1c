package crowd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nvandessel/nudge/internal/models"
)

// Response file columns as produced by the crowd platform.
const (
	ColWorkerID         = "WorkerId"
	ColWorkTime         = "WorkTimeInSeconds"
	ColSubmitTime       = "SubmitTime"
	ColContent          = "Input.content"
	ColHour             = "Input.hour"
	ColMinute           = "Input.minute"
	ColWeekday          = "Input.day"
	ColMotion           = "Input.motion"
	ColLocation         = "Input.location"
	ColMinutesSinceLast = "Input.last_notification_time"
	ColDaysPassed       = "Input.num_days_passed"
	ColSentiment        = "Answer.sentiment"
)

// ResponseHeader is the column layout written by WriteResponses.
var ResponseHeader = []string{
	ColWorkerID, ColWorkTime, ColContent, ColHour, ColMinute, ColWeekday,
	ColMotion, ColLocation, ColMinutesSinceLast, ColDaysPassed, ColSentiment,
}

// Response is one answered question.
type Response struct {
	WorkerID         string
	WorkTimeSeconds  int
	SubmitTime       string
	Content          string
	Hour             int
	Minute           int
	Weekday          int
	Motion           string
	Location         string
	MinutesSinceLast int
	DaysPassed       int
	Sentiment        string
}

// Key returns the tick the response answers.
func (r Response) Key() models.TickKey {
	return models.TickKey{Day: r.DaysPassed, Hour: r.Hour, Minute: r.Minute}
}

// Answer maps the sentiment label.
func (r Response) Answer() (models.Answer, error) {
	return models.ParseSentiment(r.Sentiment)
}

// Context parses the question context of the response.
func (r Response) Context() (models.Context, error) {
	return Action{
		Hour:             r.Hour,
		Minute:           r.Minute,
		Weekday:          r.Weekday,
		Motion:           r.Motion,
		Location:         r.Location,
		MinutesSinceLast: r.MinutesSinceLast,
		DaysPassed:       r.DaysPassed,
	}.Context()
}

// ReadResponses parses a response file. Only the columns needed to key and
// resolve an answer are required; the rest are read when present.
func ReadResponses(r io.Reader) ([]Response, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading response header: %w", err)
	}
	cols, err := indexColumns(header, ColHour, ColMinute, ColDaysPassed, ColSentiment)
	if err != nil {
		return nil, err
	}

	var out []Response
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading response line %d: %w", line, err)
		}
		p := rowParser{row: row, cols: cols}
		resp := Response{
			WorkerID:         p.str(ColWorkerID),
			WorkTimeSeconds:  p.num(ColWorkTime),
			SubmitTime:       p.str(ColSubmitTime),
			Content:          p.str(ColContent),
			Hour:             p.num(ColHour),
			Minute:           p.num(ColMinute),
			Weekday:          p.num(ColWeekday),
			Motion:           p.str(ColMotion),
			Location:         p.str(ColLocation),
			MinutesSinceLast: p.num(ColMinutesSinceLast),
			DaysPassed:       p.num(ColDaysPassed),
			Sentiment:        p.str(ColSentiment),
		}
		if p.err != nil {
			return nil, fmt.Errorf("response line %d: %w", line, p.err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// WriteResponses writes responses with ResponseHeader.
func WriteResponses(w io.Writer, responses []Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResponseHeader); err != nil {
		return fmt.Errorf("writing response header: %w", err)
	}
	for _, r := range responses {
		row := []string{
			r.WorkerID,
			strconv.Itoa(r.WorkTimeSeconds),
			r.Content,
			strconv.Itoa(r.Hour),
			strconv.Itoa(r.Minute),
			strconv.Itoa(r.Weekday),
			r.Motion,
			r.Location,
			strconv.Itoa(r.MinutesSinceLast),
			strconv.Itoa(r.DaysPassed),
			r.Sentiment,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing response row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
