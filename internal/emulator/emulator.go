// Package emulator runs round-based emulations in which a crowd of survey
// respondents stands in for the simulated environment.
//
// Each round has two phases. Generate asks the agent for a decision at
// every tick of the round and writes the sent notifications to an action
// file for the crowd platform. The process then stops until a response
// file for the round is placed in the folder; ProcessRewards resolves every
// tick's reward from it, feeds the round to the agent and opens the next
// round. A savepoint taken after Generate makes the pause survivable across
// process invocations.
package emulator

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/nudge/internal/agent"
	"github.com/nvandessel/nudge/internal/analysis"
	"github.com/nvandessel/nudge/internal/behavior"
	"github.com/nvandessel/nudge/internal/clock"
	"github.com/nvandessel/nudge/internal/controller"
	"github.com/nvandessel/nudge/internal/crowd"
	"github.com/nvandessel/nudge/internal/flagged"
	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/models"
)

// StepMinutes is the spacing of decision ticks.
const StepMinutes = 10

// DefaultNegativeReward is the reward of a dismissed notification.
const DefaultNegativeReward = -5

// Phase is the emulator's position within a round.
type Phase int

const (
	PhaseGenerating Phase = iota
	PhaseAwaitingRewards
)

func (p Phase) String() string {
	switch p {
	case PhaseGenerating:
		return "generating notifications"
	case PhaseAwaitingRewards:
		return "awaiting rewards"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Options configures Create and Restore.
type Options struct {
	// Overwrite removes an existing folder in Create.
	Overwrite bool

	// NegativeReward is the reward of a dismissal. Default: -5. Create only.
	NegativeReward float64

	// RefWeekday is the weekday of day 0. Create only.
	RefWeekday int

	// FlaggedPath lists respondents whose answers are discarded. A missing
	// file lists nobody.
	FlaggedPath string

	Logger    *slog.Logger
	Decisions *logging.DecisionLogger
}

// Emulator is a round-based emulation bound to a folder. It is not safe
// for concurrent use and assumes it is the folder's only writer.
type Emulator struct {
	folder   string
	agent    agent.Agent
	behavior behavior.Behavior
	clock    *clock.Clock
	now      clock.Time

	phase    Phase
	start    int
	end      int
	lastSent models.TickKey
	rewards  models.RewardTable

	records []models.EmulationRecord
	round   []models.EmulationRecord

	flaggedPath string
	logger      *slog.Logger
	decisions   *logging.DecisionLogger
}

func (o Options) apply(e *Emulator) {
	e.flaggedPath = o.FlaggedPath
	e.logger = o.Logger
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	e.decisions = o.Decisions
}

// Create starts an emulation in folder, which must not exist unless
// opts.Overwrite is set. The agent must be in batch mode.
func Create(folder string, b behavior.Behavior, a agent.Agent, opts Options) (*Emulator, error) {
	if a.Mode() != agent.ModeBatch {
		return nil, &models.ConfigurationError{Detail: "emulation needs a batch agent"}
	}
	if opts.NegativeReward == 0 {
		opts.NegativeReward = DefaultNegativeReward
	}

	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving folder: %w", err)
	}
	if _, err := os.Stat(abs); err == nil {
		if !opts.Overwrite {
			return nil, &models.ConfigurationError{Detail: fmt.Sprintf("folder %s already exists", abs)}
		}
		if err := os.RemoveAll(abs); err != nil {
			return nil, fmt.Errorf("removing folder: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking folder: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}

	clk, err := clock.New(opts.RefWeekday, clock.DefaultQuietHours)
	if err != nil {
		return nil, err
	}
	now, err := clk.Forward(StepMinutes)
	if err != nil {
		return nil, err
	}

	a.SetNegativeReward(opts.NegativeReward)
	e := &Emulator{
		folder:   abs,
		agent:    a,
		behavior: b,
		clock:    clk,
		now:      now,
		phase:    PhaseGenerating,
		start:    0,
		end:      RoundEnd(0),
		rewards:  models.DefaultRewardTable(opts.NegativeReward),
	}
	opts.apply(e)
	e.logger.Info("emulator created", "folder", abs, "agent", a.Kind())
	return e, nil
}

// Restore resumes the emulation in folder from the savepoint of its latest
// round, after checking that every earlier round has its action and
// response files and the latest round its action file.
func Restore(folder string, opts Options) (*Emulator, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving folder: %w", err)
	}

	var last string
	lastStart, lastEnd := -1, -1
	for start := 0; ; {
		end := RoundEnd(start)
		name, err := FindFile(abs, start, end, FileSavepoint, extSavepoint)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		last, lastStart, lastEnd = name, start, end
		start = end + 1
	}
	if last == "" {
		return nil, &models.IntegrityError{FileType: FileSavepoint, Detail: "no savepoint found in " + abs}
	}

	for start := 0; start < lastStart; {
		end := RoundEnd(start)
		for _, fileType := range []string{FileAction, FileResponse} {
			if err := requireFile(abs, start, end, fileType); err != nil {
				return nil, err
			}
		}
		start = end + 1
	}
	if err := requireFile(abs, lastStart, lastEnd, FileAction); err != nil {
		return nil, err
	}

	sp, err := ReadSavepoint(filepath.Join(abs, last))
	if err != nil {
		return nil, &models.IntegrityError{StartDay: lastStart, EndDay: lastEnd, FileType: FileSavepoint, Detail: err.Error()}
	}
	if sp.StartDay != lastStart || sp.EndDay != lastEnd {
		return nil, &models.IntegrityError{
			StartDay: lastStart,
			EndDay:   lastEnd,
			FileType: FileSavepoint,
			Detail:   fmt.Sprintf("savepoint holds round %03d-%03d", sp.StartDay, sp.EndDay),
		}
	}

	e, err := fromSavepoint(abs, sp)
	if err != nil {
		return nil, fmt.Errorf("restoring savepoint %s: %w", last, err)
	}
	opts.apply(e)
	e.logger.Info("emulator restored", "folder", abs, "round_start", e.start, "round_end", e.end, "phase", e.phase.String())
	return e, nil
}

func requireFile(folder string, start, end int, fileType string) error {
	name, err := FindFile(folder, start, end, fileType, extCSV)
	if err != nil {
		return err
	}
	if name == "" {
		return &models.IntegrityError{StartDay: start, EndDay: end, FileType: fileType, Detail: "file missing"}
	}
	return nil
}

func fromSavepoint(folder string, sp *Savepoint) (*Emulator, error) {
	clk, err := clock.FromSnapshot(sp.Clock)
	if err != nil {
		return nil, err
	}
	a, err := agent.Restore(sp.Agent)
	if err != nil {
		return nil, err
	}
	b, err := behavior.Restore(sp.Behavior)
	if err != nil {
		return nil, err
	}
	if sp.Phase != PhaseGenerating && sp.Phase != PhaseAwaitingRewards {
		return nil, fmt.Errorf("invalid phase %d", sp.Phase)
	}
	return &Emulator{
		folder:   folder,
		agent:    a,
		behavior: b,
		clock:    clk,
		now:      clk.Now(),
		phase:    sp.Phase,
		start:    sp.StartDay,
		end:      sp.EndDay,
		lastSent: sp.LastSent,
		rewards:  sp.Rewards,
		records:  sp.Records,
		round:    sp.Round,
	}, nil
}

// Folder returns the absolute emulation folder.
func (e *Emulator) Folder() string { return e.folder }

// Phase returns the current phase.
func (e *Emulator) Phase() Phase { return e.phase }

// Round returns the current round's first and last day.
func (e *Emulator) Round() (start, end int) { return e.start, e.end }

// Agent returns the emulated policy.
func (e *Emulator) Agent() agent.Agent { return e.agent }

// Records returns the resolved records of every completed round.
func (e *Emulator) Records() []models.EmulationRecord {
	return append([]models.EmulationRecord(nil), e.records...)
}

// Analyzer summarizes the completed rounds.
func (e *Emulator) Analyzer() *analysis.Analyzer {
	return analysis.New(e.Records(), e.start)
}

func (e *Emulator) require(p Phase, op string) error {
	if e.phase != p {
		return &models.ProtocolError{Op: op, State: e.phase.String()}
	}
	return nil
}

// Generate runs the agent over every tick of the round and writes the sent
// notifications to the round's action file. It returns the file path and
// the number of notifications sent. A failure leaves the emulator unusable;
// resume from the last savepoint.
func (e *Emulator) Generate() (string, int, error) {
	if err := e.require(PhaseGenerating, "generate notifications"); err != nil {
		return "", 0, err
	}

	path := filepath.Join(e.folder, FileName(e.start, e.end, FileAction, extCSV))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating action file: %w", err)
	}
	defer f.Close()
	aw, err := crowd.NewActionWriter(f)
	if err != nil {
		return "", 0, err
	}

	var round []models.EmulationRecord
	for e.now.Days <= e.end {
		cx, err := controller.Observe(e.now, e.lastSent, e.behavior)
		if err != nil {
			return "", 0, fmt.Errorf("observing %s: %w", e.now, err)
		}
		state := cx.State()
		send, err := e.agent.Action(state)
		if err != nil {
			return "", 0, err
		}
		round = append(round, models.EmulationRecord{Context: cx, State: state, Send: send})

		if send {
			if err := aw.Write(crowd.NewAction(cx)); err != nil {
				return "", 0, err
			}
			e.lastSent = cx.Key()
		}
		e.decisions.Log(map[string]any{
			"event":  "emulation_tick",
			"day":    cx.DaysPassed,
			"hour":   cx.Hour,
			"minute": cx.Minute,
			"state":  state.String(),
			"send":   send,
			"agent":  string(e.agent.Kind()),
		})

		if e.now, err = e.clock.Forward(StepMinutes); err != nil {
			return "", 0, err
		}
	}
	if err := aw.Flush(); err != nil {
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("closing action file: %w", err)
	}

	e.round = round
	e.phase = PhaseAwaitingRewards
	e.logger.Info("notifications generated", "round_start", e.start, "round_end", e.end, "ticks", len(round), "sent", aw.Count())
	return path, aw.Count(), nil
}

// ProbeResponse returns the path of the round's response file, or "" when
// it has not been placed yet.
func (e *Emulator) ProbeResponse() (string, error) {
	if err := e.require(PhaseAwaitingRewards, "probe response"); err != nil {
		return "", err
	}
	return probe(e.folder, e.start, e.end)
}

// ProcessRewards resolves the round's rewards from its response file, feeds
// the round to the agent and opens the next round. Nothing is committed
// when any sent notification lacks a response.
func (e *Emulator) ProcessRewards() error {
	if err := e.require(PhaseAwaitingRewards, "process rewards"); err != nil {
		return err
	}
	path, err := e.ProbeResponse()
	if err != nil {
		return err
	}
	if path == "" {
		return &models.IntegrityError{StartDay: e.start, EndDay: e.end, FileType: FileResponse, Detail: "file missing"}
	}

	skip, err := flagged.Load(e.flaggedPath)
	if err != nil {
		return err
	}
	answers, err := readAnswers(path, skip)
	if err != nil {
		return &models.IntegrityError{StartDay: e.start, EndDay: e.end, FileType: FileResponse, Detail: err.Error()}
	}

	resolved := make([]models.EmulationRecord, len(e.round))
	history := make([]models.Transition, len(e.round))
	for i, r := range e.round {
		r.Reward = nil
		reward := 0.0
		if r.Send {
			a, ok := answers[r.Context.Key()]
			if !ok {
				return &models.IntegrityError{
					StartDay: e.start,
					EndDay:   e.end,
					FileType: FileResponse,
					Detail:   fmt.Sprintf("no response at %s", r.Context.Key()),
				}
			}
			reward = e.rewards.Reward(a)
		}
		if err := r.Resolve(reward); err != nil {
			return err
		}
		resolved[i] = r
		history[i] = r.Transition()
	}

	if err := e.agent.FeedBatch(history); err != nil {
		return fmt.Errorf("feeding round %03d-%03d: %w", e.start, e.end, err)
	}

	s := analysis.Summarize(resolved)
	e.logger.Info("rewards processed",
		"round_start", e.start, "round_end", e.end,
		"reward", s.TotalReward, "sent", s.Notifications, "accepted", s.Accepted, "dismissed", s.Dismissed)

	e.records = append(e.records, resolved...)
	e.round = nil
	e.start = e.end + 1
	e.end = RoundEnd(e.start)
	e.phase = PhaseGenerating
	return nil
}

// readAnswers keys the responses by tick. Among responses to the same tick
// the first that is not an ignore wins; flagged respondents are skipped.
func readAnswers(path string, skip flagged.Set) (map[models.TickKey]models.Answer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	responses, err := crowd.ReadResponses(f)
	if err != nil {
		return nil, err
	}
	return resolveAnswers(responses, skip)
}

func resolveAnswers(responses []crowd.Response, skip flagged.Set) (map[models.TickKey]models.Answer, error) {
	answers := make(map[models.TickKey]models.Answer)
	for _, r := range responses {
		if r.WorkerID != "" && skip.Has(r.WorkerID) {
			continue
		}
		a, err := r.Answer()
		if err != nil {
			return nil, fmt.Errorf("response at %s: %w", r.Key(), err)
		}
		key := r.Key()
		if prev, ok := answers[key]; !ok || prev == models.AnswerIgnore {
			answers[key] = a
		}
	}
	return answers, nil
}

// Savepoint writes the emulator to the round's savepoint file and returns
// its path. Only legal right after Generate.
func (e *Emulator) Savepoint() (string, error) {
	if err := e.require(PhaseAwaitingRewards, "generate savepoint"); err != nil {
		return "", err
	}
	sp, err := e.snapshot()
	if err != nil {
		return "", err
	}
	path := filepath.Join(e.folder, FileName(e.start, e.end, FileSavepoint, extSavepoint))
	if err := WriteSavepoint(path, sp); err != nil {
		return "", err
	}
	e.logger.Debug("savepoint written", "path", path, "records", len(e.records))
	return path, nil
}

func (e *Emulator) snapshot() (*Savepoint, error) {
	cs, err := e.clock.Snapshot()
	if err != nil {
		return nil, err
	}
	as, err := e.agent.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("capturing agent: %w", err)
	}
	bs, err := e.behavior.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("capturing behavior: %w", err)
	}
	return &Savepoint{
		Version:   SavepointVersion,
		CreatedAt: time.Now().UTC(),
		Clock:     cs,
		Phase:     e.phase,
		StartDay:  e.start,
		EndDay:    e.end,
		LastSent:  e.lastSent,
		Rewards:   e.rewards,
		Records:   e.records,
		Round:     e.round,
		Agent:     as,
		Behavior:  bs,
	}, nil
}
