package domain

import (
	"time"
)

type Medication struct {
	Name         string `json:"name" binding:"required"`
	Dosage       string `json:"dosage" binding:"required"`
	Frequency    string `json:"frequency" binding:"required"`
	DurationDays int    `json:"duration_days" binding:"min=0,max=365"`
}

type Prescription struct {
	ID            int64        `json:"id"`
	AppointmentID int64        `json:"appointment_id"`
	DoctorID      int64        `json:"doctor_id"`
	PatientID     int64        `json:"patient_id"`
	Diagnosis     string       `json:"diagnosis"`
	Notes         string       `json:"notes"`
	Medications   []Medication `json:"medications"`
	AttachmentKey string       `json:"-"`
	HasAttachment bool         `json:"has_attachment"`
	DoctorName    string       `json:"doctor_name,omitempty"`
	PatientName   string       `json:"patient_name,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type CreatePrescriptionDTO struct {
	AppointmentID int64        `json:"appointment_id" binding:"required"`
	Diagnosis     string       `json:"diagnosis" binding:"required"`
	Notes         string       `json:"notes"`
	Medications   []Medication `json:"medications" binding:"dive"`
}

type UpdatePrescriptionDTO struct {
	Diagnosis   *string       `json:"diagnosis" binding:"omitempty,min=1"`
	Notes       *string       `json:"notes"`
	Medications *[]Medication `json:"medications" binding:"omitempty,dive"`
}

type PrescriptionFilter struct {
	PatientID     *int64 `json:"patient_id"`
	DoctorID      *int64 `json:"doctor_id"`
	AppointmentID *int64 `json:"appointment_id"`
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
}

type AttachmentLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
