package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// errNotYetDue makes asynq retry a task that fired before its release time.
var errNotYetDue = errors.New("settlement not yet due")

// Handler processes asynq tasks.
type Handler struct {
	settlements ports.SettlementService
	log         zerolog.Logger
}

// NewHandler creates a task handler.
func NewHandler(settlements ports.SettlementService, log zerolog.Logger) *Handler {
	return &Handler{settlements: settlements, log: log}
}

// HandleReleaseSettlement releases a booking's earning once it is due.
func (h *Handler) HandleReleaseSettlement(ctx context.Context, t *asynq.Task) error {
	var p ReleaseSettlementPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.BookingID == uuid.Nil {
		return fmt.Errorf("missing booking id: %w", asynq.SkipRetry)
	}

	settlement, err := h.settlements.ReleaseDue(ctx, p.BookingID)
	switch {
	case apperror.IsKind(err, apperror.KindNotFound), apperror.IsKind(err, apperror.KindConsistency):
		// Nothing a retry can fix; consistency errors are already escalated.
		h.log.Error().Err(err).Str("booking_id", p.BookingID.String()).Msg("release task dropped")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		return err
	}

	if settlement.Status == domain.SettlementStatusHeld {
		return fmt.Errorf("booking %s: %w", p.BookingID, errNotYetDue)
	}
	return nil
}

// NewServeMux registers every task handler.
func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReleaseSettlement, h.HandleReleaseSettlement)
	return mux
}
