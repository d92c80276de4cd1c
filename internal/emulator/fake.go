package emulator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/nvandessel/nudge/internal/crowd"
	"github.com/nvandessel/nudge/internal/environment"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/rng"
)

var actionName = regexp.MustCompile(`^(\d{3}-\d{3})\.action\.`)

// FakeResponses answers every question of an action file by sampling the
// environment and writes the answers next to it as "ddd-ddd.response.csv".
// It returns the response file path and the number of answers.
func FakeResponses(actionPath string, env environment.Environment, src *rng.Source) (string, int, error) {
	m := actionName.FindStringSubmatch(filepath.Base(actionPath))
	if m == nil {
		return "", 0, fmt.Errorf("%s is not a round action file", actionPath)
	}
	outPath := filepath.Join(filepath.Dir(actionPath), m[1]+"."+FileResponse+"."+extCSV)

	in, err := os.Open(actionPath)
	if err != nil {
		return "", 0, fmt.Errorf("opening action file: %w", err)
	}
	defer in.Close()
	actions, err := crowd.ReadActions(in)
	if err != nil {
		return "", 0, err
	}

	responses := make([]crowd.Response, 0, len(actions))
	for i, a := range actions {
		cx, err := a.Context()
		if err != nil {
			return "", 0, fmt.Errorf("action row %d: %w", i+1, err)
		}
		accept, ignore, dismiss, err := env.ResponseDistribution(cx.Hour, cx.Minute, cx.Weekday, cx.Location, cx.Activity, cx.MinutesSinceLast)
		if err != nil {
			return "", 0, fmt.Errorf("action row %d: %w", i+1, err)
		}
		dist, err := models.Normalize(accept, ignore, dismiss)
		if err != nil {
			return "", 0, fmt.Errorf("action row %d: %w", i+1, err)
		}
		k, err := src.Choice(dist.Weights())
		if err != nil {
			return "", 0, err
		}
		responses = append(responses, crowd.Response{
			Content:          a.Content,
			Hour:             a.Hour,
			Minute:           a.Minute,
			Weekday:          a.Weekday,
			Motion:           a.Motion,
			Location:         a.Location,
			MinutesSinceLast: a.MinutesSinceLast,
			DaysPassed:       a.DaysPassed,
			Sentiment:        models.AnswerAt(k).Sentiment(),
		})
	}

	out, err := os.Create(outPath)
	if err != nil {
		return "", 0, fmt.Errorf("creating response file: %w", err)
	}
	defer out.Close()
	if err := crowd.WriteResponses(out, responses); err != nil {
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		return "", 0, fmt.Errorf("closing response file: %w", err)
	}
	return outPath, len(responses), nil
}
