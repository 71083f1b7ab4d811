package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus mirrors the booking lifecycle owned by the marketplace.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusAccepted   BookingStatus = "accepted"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// Booking is the slice of a marketplace booking checkout needs.
type Booking struct {
	ID         uuid.UUID     `json:"id"`
	BusinessID uuid.UUID     `json:"business_id"`
	WorkerID   uuid.UUID     `json:"worker_id"`
	FinalPrice int64         `json:"final_price"`
	Status     BookingStatus `json:"status"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Involves reports whether actor is the booking's business or worker.
func (b *Booking) Involves(actor uuid.UUID) bool {
	return actor == b.BusinessID || actor == b.WorkerID
}
