package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AIClient performs the remote triage call.
// We define it here to decouple from the specific agent implementation
type AIClient interface {
	PerformTriage(ctx context.Context, report SymptomReport) (Result, error)
}

// EventPublisher emits lifecycle events. A nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// CompletedEvent is published after every successful triage.
type CompletedEvent struct {
	Type          string    `json:"type"`
	RecordID      string    `json:"record_id"`
	Severity      Severity  `json:"severity"`
	Professional  string    `json:"suggested_professional"`
	MissingFields []string  `json:"missing_fields,omitempty"`
	At            time.Time `json:"at"`
}

type Service struct {
	client    AIClient
	repo      Repository
	publisher EventPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewService(client AIClient, repo Repository, publisher EventPublisher, logger *logrus.Logger) *Service {
	return &Service{
		client:    client,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// PerformTriage asks the AI client for an assessment of report. Recording and
// event delivery are best effort and never fail the triage itself.
func (s *Service) PerformTriage(ctx context.Context, report SymptomReport) (Result, error) {
	log := s.logger.WithFields(logrus.Fields{
		"Function": "PerformTriage",
		"Symptoms": report.Symptoms,
		"Severity": report.Severity,
	})
	log.Info("Requesting triage")

	res, err := s.client.PerformTriage(ctx, report.Clone())
	if err != nil {
		log.WithError(err).Error("Triage request failed")
		return Result{}, fmt.Errorf("triage failed: %w", err)
	}

	missing := res.MissingFields()
	if len(missing) > 0 {
		log.WithField("MissingFields", missing).Warn("Triage response is missing required fields")
	}

	rec := &Record{
		ID:        uuid.New(),
		Report:    report.Clone(),
		Result:    res,
		CreatedAt: s.now(),
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, rec); err != nil {
			log.WithError(err).Error("Failed to record triage result")
		}
	}

	if s.publisher != nil {
		event := CompletedEvent{
			Type:          "triage.completed",
			RecordID:      rec.ID.String(),
			Severity:      res.Severity,
			Professional:  string(res.SuggestedProfessional),
			MissingFields: missing,
			At:            rec.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, rec.ID.String(), event); err != nil {
			log.WithError(err).Error("Failed to publish triage event")
		}
	}

	log.WithFields(logrus.Fields{
		"RecordID":     rec.ID,
		"Assessed":     res.Severity,
		"Professional": res.SuggestedProfessional,
	}).Info("Triage completed")

	return res, nil
}
