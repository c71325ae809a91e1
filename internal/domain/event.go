package domain

import (
	"time"
)

// Ключи маршрутизации событий брокера.
const (
	EventSlotChanged          = "slot.changed"
	EventSlotDeleted          = "slot.deleted"
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentCancelled = "appointment.cancelled"
	EventAppointmentStatus    = "appointment.status"
	EventNotificationCreated  = "notification.created"
)

// Event описывает изменение, после которого у врача на дату меняется
// доступность. Получатели сбрасывают кэш по (DoctorID, Date).
type Event struct {
	Type          string    `json:"type"`
	DoctorID      int64     `json:"doctor_id,omitempty"`
	Date          string    `json:"date,omitempty"`
	SlotID        int64     `json:"slot_id,omitempty"`
	AppointmentID int64     `json:"appointment_id,omitempty"`
	UserID        int64     `json:"user_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func PointerTo[T any](v T) *T {
	return &v
}
