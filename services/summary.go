package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

// SessionSummary is the integrity report of the active examination
type SessionSummary struct {
	Exam      *core.Examination  `json:"exam"`
	Stats     *core.SessionStats `json:"stats"`
	ExportURL string             `json:"exportUrl,omitempty"`
}

// SummaryService loads the report once per request; it does not poll
type SummaryService struct {
	api core.MonitoringAPI
	log *zap.Logger
}

func NewSummaryService(api core.MonitoringAPI, log *zap.Logger) *SummaryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SummaryService{api: api, log: log}
}

// Load returns an empty summary when no examination is active.
// Missing stats are tolerated; the examination alone is still reported.
func (s *SummaryService) Load(ctx context.Context) (*SessionSummary, error) {
	exam, err := s.api.ActiveExamination(ctx)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return &SessionSummary{}, nil
	}

	summary := &SessionSummary{Exam: exam, ExportURL: s.api.ExportURL(exam.ID)}
	stats, err := s.api.SessionStats(ctx, exam.ID)
	if err != nil {
		s.log.Warn("failed to load session stats", zap.Int64("exam_id", exam.ID), zap.Error(err))
		return summary, nil
	}
	summary.Stats = stats
	return summary, nil
}

// ExportURL points at the report download of the active examination
func (s *SummaryService) ExportURL(ctx context.Context) (string, error) {
	exam, err := s.api.ActiveExamination(ctx)
	if err != nil {
		return "", err
	}
	if exam == nil {
		return "", core.ErrNoActiveExamination
	}
	return s.api.ExportURL(exam.ID), nil
}
