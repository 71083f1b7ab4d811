package worker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeReleaseSettlement = "release-settlement"
)

// QueueSettlement carries release tasks.
const QueueSettlement = "settlement"

// ReleaseSettlementPayload identifies the booking whose earning is due.
type ReleaseSettlementPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
}

// NewReleaseSettlementTask builds a release task.
func NewReleaseSettlementTask(bookingID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(ReleaseSettlementPayload{BookingID: bookingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReleaseSettlement, data), nil
}

// releaseTaskID is deterministic so a booking is never scheduled twice.
func releaseTaskID(bookingID uuid.UUID) string {
	return fmt.Sprintf("release:%s", bookingID)
}
