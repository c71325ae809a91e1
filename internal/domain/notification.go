package domain

import (
	"time"
)

type NotificationType string

const (
	NotificationAppointmentBooked    NotificationType = "appointment_booked"
	NotificationAppointmentCancelled NotificationType = "appointment_cancelled"
	NotificationAppointmentStatus    NotificationType = "appointment_status"
	NotificationPrescriptionIssued   NotificationType = "prescription_issued"
	NotificationReviewReceived       NotificationType = "review_received"
)

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	EntityID  *int64           `json:"entity_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type CreateNotificationDTO struct {
	UserID   int64
	Type     NotificationType
	Title    string
	Message  string
	EntityID *int64
}

type NotificationFilter struct {
	UserID     int64 `json:"user_id"`
	UnreadOnly bool  `json:"unread_only"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
