package domain

import (
	"time"
)

type Doctor struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	SpecializationID   *int64    `json:"specialization_id"`
	SpecializationName string    `json:"specialization_name,omitempty"`
	Bio                string    `json:"bio"`
	ExperienceYears    int       `json:"experience_years"`
	ConsultationFee    float64   `json:"consultation_fee"`
	Location           string    `json:"location"`
	Rating             float64   `json:"rating"`
	ReviewsCount       int       `json:"reviews_count"`
	ProfilePhotoURL    string    `json:"profile_photo_url"`
	User               User      `json:"user"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type CreateDoctorDTO struct {
	SpecializationID *int64  `json:"specialization_id"`
	Bio              string  `json:"bio"`
	ExperienceYears  int     `json:"experience_years" binding:"min=0,max=80"`
	ConsultationFee  float64 `json:"consultation_fee" binding:"min=0"`
	Location         string  `json:"location"`
}

type UpdateDoctorDTO struct {
	SpecializationID *int64   `json:"specialization_id"`
	Bio              *string  `json:"bio"`
	ExperienceYears  *int     `json:"experience_years" binding:"omitempty,min=0,max=80"`
	ConsultationFee  *float64 `json:"consultation_fee" binding:"omitempty,min=0"`
	Location         *string  `json:"location"`
}

type DoctorSort string

const (
	DoctorSortRating     DoctorSort = "rating"
	DoctorSortFee        DoctorSort = "fee"
	DoctorSortExperience DoctorSort = "experience"
)

func (s DoctorSort) IsValid() bool {
	return s == DoctorSortRating || s == DoctorSortFee || s == DoctorSortExperience
}

type DoctorFilter struct {
	Search           *string    `json:"search"`
	SpecializationID *int64     `json:"specialization_id"`
	MinRating        *float64   `json:"min_rating"`
	MaxFee           *float64   `json:"max_fee"`
	SortBy           DoctorSort `json:"sort_by"`
	Limit            int        `json:"limit"`
	Offset           int        `json:"offset"`
}
