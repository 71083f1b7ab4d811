package service

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type incidentService struct {
	repo ports.IncidentRepository
	log  zerolog.Logger
}

// NewIncidentService creates the consistency escalation path: an alert-level
// log line, a metric, and a persisted incident for manual review.
func NewIncidentService(repo ports.IncidentRepository, log zerolog.Logger) ports.IncidentReporter {
	return &incidentService{repo: repo, log: log}
}

// Report persists on a detached context so the incident outlives a rolled-back
// unit of work. Call it after the unit of work has returned.
func (s *incidentService) Report(_ context.Context, operation, resourceType, resourceID string, err error) {
	code := "CONS_000"
	if appErr, ok := apperror.As(err); ok {
		code = appErr.Code
	}

	consistencyErrorsTotal.WithLabelValues(operation).Inc()
	s.log.Error().
		Err(err).
		Bool("alert", true).
		Str("operation", operation).
		Str("resource_type", resourceType).
		Str("resource_id", resourceID).
		Str("code", code).
		Msg("consistency error, flagged for manual review")

	incident := &domain.ConsistencyIncident{
		ID:           uuid.New(),
		Operation:    operation,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Code:         code,
		Detail:       err.Error(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(context.Background(), incident); err != nil {
		s.log.Error().Err(err).Str("resource_id", resourceID).Msg("failed to persist consistency incident")
	}
}
