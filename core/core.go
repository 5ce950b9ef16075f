package core

import (
	"fmt"
	"time"
)

// Default cadences of the live views
const (
	DefaultAlertsInterval     = time.Second
	DefaultFeedInterval       = 3 * time.Second
	DefaultStatsInterval      = 5 * time.Second
	DefaultActiveExamInterval = 30 * time.Second
	DefaultCountdownInterval  = time.Second

	DefaultAlertLimit = 50
	DefaultFeedLimit  = 15

	DefaultConfidence = 0.65
)

// PollIntervals configures every live view independently
type PollIntervals struct {
	Alerts     time.Duration
	Feed       time.Duration
	Stats      time.Duration
	ActiveExam time.Duration
	Countdown  time.Duration
}

func DefaultPollIntervals() PollIntervals {
	return PollIntervals{
		Alerts:     DefaultAlertsInterval,
		Feed:       DefaultFeedInterval,
		Stats:      DefaultStatsInterval,
		ActiveExam: DefaultActiveExamInterval,
		Countdown:  DefaultCountdownInterval,
	}
}

// WithDefaults fills every unset interval with its default
func (p PollIntervals) WithDefaults() PollIntervals {
	d := DefaultPollIntervals()
	if p.Alerts <= 0 {
		p.Alerts = d.Alerts
	}
	if p.Feed <= 0 {
		p.Feed = d.Feed
	}
	if p.Stats <= 0 {
		p.Stats = d.Stats
	}
	if p.ActiveExam <= 0 {
		p.ActiveExam = d.ActiveExam
	}
	if p.Countdown <= 0 {
		p.Countdown = d.Countdown
	}
	return p
}

type SourceFilter string

const (
	SourceAll       SourceFilter = "all"
	SourceOnlyVideo SourceFilter = "video"
	SourceOnlyAudio SourceFilter = "audio"
)

// AlertFilter selects which alerts the alerts view shows.
// Confidence is applied by the backend, Source on the client.
type AlertFilter struct {
	Confidence float64      `json:"confidence"`
	Source     SourceFilter `json:"source"`
	SessionID  *int64       `json:"sessionId,omitempty"`
}

func DefaultAlertFilter() AlertFilter {
	return AlertFilter{
		Confidence: DefaultConfidence,
		Source:     SourceAll,
	}
}

func (f AlertFilter) Validate() error {
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidConfidence, f.Confidence)
	}
	switch f.Source {
	case SourceAll, SourceOnlyVideo, SourceOnlyAudio:
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidSource, f.Source)
	}
}

// Matches applies the client-side part of the filter
func (f AlertFilter) Matches(a Alert) bool {
	if f.Source == SourceAll || f.Source == "" {
		return true
	}
	return string(a.Source) == string(f.Source)
}

// Query builds the server-side part of the filter
func (f AlertFilter) Query(limit int) AlertQuery {
	confidence := f.Confidence
	return AlertQuery{
		Confidence: &confidence,
		Limit:      limit,
		SessionID:  f.SessionID,
	}
}
