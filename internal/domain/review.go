package domain

import (
	"time"
)

type Review struct {
	ID            int64      `json:"id"`
	PatientID     int64      `json:"patient_id"`
	DoctorID      int64      `json:"doctor_id"`
	AppointmentID int64      `json:"appointment_id"`
	Rating        int        `json:"rating"`
	Comment       string     `json:"comment"`
	Reply         *string    `json:"reply,omitempty"`
	RepliedAt     *time.Time `json:"replied_at,omitempty"`
	PatientName   string     `json:"patient_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type CreateReviewDTO struct {
	AppointmentID int64  `json:"appointment_id" binding:"required"`
	Rating        int    `json:"rating" binding:"required,min=1,max=5"`
	Comment       string `json:"comment" binding:"max=2000"`
}

type UpdateReviewDTO struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" binding:"omitempty,max=2000"`
}

type ReplyReviewDTO struct {
	Text string `json:"text" binding:"required,max=2000"`
}

type ReviewFilter struct {
	DoctorID  *int64 `json:"doctor_id"`
	PatientID *int64 `json:"patient_id"`
	MinRating *int   `json:"min_rating"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}
