package models

import (
	"fmt"
	"strings"
)

// Answer is how a person reacted to a notification.
type Answer int

const (
	AnswerDismiss Answer = iota
	AnswerIgnore
	AnswerAccept
)

func (a Answer) String() string {
	switch a {
	case AnswerDismiss:
		return "dismiss"
	case AnswerIgnore:
		return "ignore"
	case AnswerAccept:
		return "accept"
	}
	return fmt.Sprintf("invalid(%d)", int(a))
}

// Sentiment labels used by the crowd survey.
const (
	SentimentAccept  = "Accept"
	SentimentLater   = "Later"
	SentimentDismiss = "Dismiss"
)

// ParseSentiment maps a survey sentiment label to an Answer.
func ParseSentiment(s string) (Answer, error) {
	switch strings.TrimSpace(s) {
	case SentimentAccept:
		return AnswerAccept, nil
	case SentimentLater:
		return AnswerIgnore, nil
	case SentimentDismiss:
		return AnswerDismiss, nil
	}
	return 0, fmt.Errorf("unknown sentiment %q", s)
}

// Sentiment returns the survey label for a.
func (a Answer) Sentiment() string {
	switch a {
	case AnswerAccept:
		return SentimentAccept
	case AnswerIgnore:
		return SentimentLater
	default:
		return SentimentDismiss
	}
}

// RewardTable maps answers to scalar rewards.
type RewardTable struct {
	Accept  float64 `json:"accept" yaml:"accept"`
	Ignore  float64 `json:"ignore" yaml:"ignore"`
	Dismiss float64 `json:"dismiss" yaml:"dismiss"`
}

// DefaultRewardTable returns accept=1, ignore=0 and the given dismiss reward.
func DefaultRewardTable(negative float64) RewardTable {
	return RewardTable{Accept: 1, Ignore: 0, Dismiss: negative}
}

// Reward returns the reward for an answer.
func (t RewardTable) Reward(a Answer) float64 {
	switch a {
	case AnswerAccept:
		return t.Accept
	case AnswerIgnore:
		return t.Ignore
	default:
		return t.Dismiss
	}
}

// Distribution is a normalized (accept, ignore, dismiss) probability triple.
type Distribution struct {
	Accept  float64 `json:"accept"`
	Ignore  float64 `json:"ignore"`
	Dismiss float64 `json:"dismiss"`
}

// Normalize scales the three weights so they sum to 1.
func Normalize(accept, ignore, dismiss float64) (Distribution, error) {
	if accept < 0 || ignore < 0 || dismiss < 0 {
		return Distribution{}, fmt.Errorf("negative response weight (%g, %g, %g)", accept, ignore, dismiss)
	}
	sum := accept + ignore + dismiss
	if sum <= 0 {
		return Distribution{}, fmt.Errorf("response weights sum to zero")
	}
	return Distribution{Accept: accept / sum, Ignore: ignore / sum, Dismiss: dismiss / sum}, nil
}

// Weights returns the distribution in (accept, ignore, dismiss) order.
func (d Distribution) Weights() []float64 {
	return []float64{d.Accept, d.Ignore, d.Dismiss}
}

// AnswerAt maps an index into Weights back to an Answer.
func AnswerAt(i int) Answer {
	switch i {
	case 0:
		return AnswerAccept
	case 1:
		return AnswerIgnore
	default:
		return AnswerDismiss
	}
}
