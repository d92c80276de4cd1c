package agent

import "github.com/nvandessel/nudge/internal/models"

// Collector sends with a fixed probability regardless of state and records
// (reward, state) for every sent notification. It never learns; its history
// file trains the Offline agent.
type Collector struct {
	*base
	samples []Sample
	current models.State
	chosen  bool
}

func newCollector(b *base) *Collector {
	return &Collector{base: b}
}

// Action implements Agent.
func (c *Collector) Action(s models.State) (bool, error) {
	if err := c.beginAction(s); err != nil {
		return false, err
	}
	c.current = s
	c.chosen = c.rand.Bernoulli(c.cfg.SendProbability)
	c.logDecision(s, c.chosen, nil)
	return c.chosen, nil
}

// FeedReward implements Agent.
func (c *Collector) FeedReward(reward float64) error {
	if err := c.beginReward(); err != nil {
		return err
	}
	if c.chosen {
		c.samples = append(c.samples, Sample{State: c.current, Reward: reward})
	}
	c.steps++
	return nil
}

// FeedBatch implements Agent.
func (c *Collector) FeedBatch(history []models.Transition) error {
	if err := c.beginBatch(history); err != nil {
		return err
	}
	for _, t := range history {
		if t.Send {
			c.samples = append(c.samples, Sample{State: t.State, Reward: t.Reward})
		}
	}
	c.steps += len(history)
	return nil
}

// Samples returns the recorded history.
func (c *Collector) Samples() []Sample {
	return samplesCopy(c.samples)
}

// SaveModel writes the recorded history file.
func (c *Collector) SaveModel(path string) error {
	return writeHistoryFile(path, c.samples)
}

// Snapshot implements Agent.
func (c *Collector) Snapshot() (Snapshot, error) {
	s, err := c.snapshot()
	if err != nil {
		return s, err
	}
	s.Samples = samplesCopy(c.samples)
	cur := c.current
	s.Current = &cur
	s.Chosen = c.chosen
	return s, nil
}

func (c *Collector) restoreModel(s Snapshot) error {
	if err := c.restore(s); err != nil {
		return err
	}
	c.samples = samplesCopy(s.Samples)
	if s.Current != nil {
		c.current = *s.Current
	}
	c.chosen = s.Chosen
	return nil
}
