package environment

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/nvandessel/nudge/internal/crowd"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

// Distribution returned for a bucket with no survey data.
const (
	emptyAccept  = 0.1
	emptyIgnore  = 0.8
	emptyDismiss = 0.1
)

// surveyBucket groups records by everything except the time of day.
type surveyBucket struct {
	Day      models.DayType
	Location models.Location
	Activity models.Activity
	Recency  models.Recency
}

type surveyRecord struct {
	hour     int
	minute   int
	answer   models.Answer
	workerID string
	workTime int
}

// Survey answers like the crowd did. Records are bucketed by day type,
// location, activity and recency; a query draws one record from its bucket,
// weighting each by 1/(|minutes apart| + 5), and returns that record's
// answer with certainty.
type Survey struct {
	buckets map[surveyBucket][]surveyRecord
	records []surveyRecord
	rand    *rng.Source
}

// LoadSurvey reads crowd response files. Responses with an unknown
// sentiment are skipped, as are those filter rejects.
func LoadSurvey(paths []string, src *rng.Source, filter func(crowd.Response) bool, logger *slog.Logger) (*Survey, error) {
	var all []crowd.Response
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening survey file: %w", err)
		}
		rs, err := crowd.ReadResponses(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading survey file %s: %w", p, err)
		}
		all = append(all, rs...)
	}
	if filter != nil {
		kept := all[:0]
		for _, r := range all {
			if filter(r) {
				kept = append(kept, r)
			}
		}
		all = kept
	}

	s, err := NewSurvey(all, src)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		if empty := s.EmptyBuckets(); empty > 0 {
			logger.Warn("survey has buckets without records; those answer at random", "empty_buckets", empty, "records", s.NumRecords())
		}
	}
	return s, nil
}

// NewSurvey builds a survey user from parsed responses.
func NewSurvey(responses []crowd.Response, src *rng.Source) (*Survey, error) {
	s := &Survey{buckets: make(map[surveyBucket][]surveyRecord), rand: src}
	for i, r := range responses {
		ans, err := r.Answer()
		if err != nil {
			continue
		}
		ctx, err := r.Context()
		if err != nil {
			return nil, fmt.Errorf("survey response %d: %w", i, err)
		}
		rec := surveyRecord{hour: r.Hour, minute: r.Minute, answer: ans, workerID: r.WorkerID, workTime: r.WorkTimeSeconds}
		key := bucketOf(ctx.Weekday, ctx.Location, ctx.Activity, ctx.MinutesSinceLast)
		s.buckets[key] = append(s.buckets[key], rec)
		s.records = append(s.records, rec)
	}
	return s, nil
}

func bucketOf(weekday int, loc models.Location, act models.Activity, minutesSinceLast int) surveyBucket {
	return surveyBucket{
		Day:      models.DayState(weekday),
		Location: loc,
		Activity: act,
		Recency:  models.RecencyState(minutesSinceLast),
	}
}

// ResponseDistribution implements Environment.
func (s *Survey) ResponseDistribution(hour, minute, weekday int, loc models.Location, act models.Activity, minutesSinceLast int) (float64, float64, float64, error) {
	if !loc.Valid() {
		return 0, 0, 0, &models.ValidationError{Dimension: "location", Value: int(loc)}
	}
	if !act.Valid() {
		return 0, 0, 0, &models.ValidationError{Dimension: "activity", Value: int(act)}
	}
	records := s.buckets[bucketOf(weekday, loc, act, minutesSinceLast)]
	if len(records) == 0 {
		return emptyAccept, emptyIgnore, emptyDismiss, nil
	}

	weights := make([]float64, len(records))
	for i, r := range records {
		delta := math.Abs(float64(models.DeltaMinutes(0, hour, minute, 0, r.hour, r.minute)))
		weights[i] = 1 / (delta + 5)
	}
	i, err := s.rand.Choice(weights)
	if err != nil {
		return 0, 0, 0, err
	}
	switch records[i].answer {
	case models.AnswerAccept:
		return 1, 0, 0, nil
	case models.AnswerIgnore:
		return 0, 1, 0, nil
	default:
		return 0, 0, 1, nil
	}
}

// NumRecords returns the number of usable survey responses.
func (s *Survey) NumRecords() int { return len(s.records) }

// EmptyBuckets returns how many context buckets have no records.
func (s *Survey) EmptyBuckets() int {
	total := models.NumDayType * models.NumLocation * models.NumActivity * models.NumRecency
	return total - len(s.buckets)
}

// AnswerCounts returns how many records accepted, ignored and dismissed.
func (s *Survey) AnswerCounts() (accept, ignore, dismiss int) {
	for _, r := range s.records {
		switch r.answer {
		case models.AnswerAccept:
			accept++
		case models.AnswerIgnore:
			ignore++
		default:
			dismiss++
		}
	}
	return accept, ignore, dismiss
}

// WorkerCounts returns per-respondent totals.
func (s *Survey) WorkerCounts() map[string]int {
	out := make(map[string]int)
	for _, r := range s.records {
		out[r.workerID]++
	}
	return out
}

// AverageWorkTime returns the mean and population standard deviation of the
// time respondents spent per answer, in seconds.
func (s *Survey) AverageWorkTime() (mean, std float64) {
	if len(s.records) == 0 {
		return 0, 0
	}
	for _, r := range s.records {
		mean += float64(r.workTime)
	}
	mean /= float64(len(s.records))
	for _, r := range s.records {
		d := float64(r.workTime) - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(s.records)))
}
