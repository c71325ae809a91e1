package domain

import (
	"time"

	"medbook/pkg/slots"
)

type SlotType string

const (
	SlotTypeIndividual SlotType = "individual"
	SlotTypeGroup      SlotType = "group"
)

// AppointmentSlot - окно приёма врача на одну дату. DayOfWeek и AvailableSlots
// вычисляются в Derive и не хранятся.
type AppointmentSlot struct {
	ID             int64     `json:"id"`
	DoctorID       int64     `json:"doctor_id"`
	Date           string    `json:"date"`
	DayOfWeek      string    `json:"day_of_week"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	SlotDuration   int       `json:"slot_duration"`
	SlotType       SlotType  `json:"slot_type"`
	MaxPatients    int       `json:"max_patients"`
	BookedSlots    []string  `json:"booked_slots"`
	AvailableSlots []string  `json:"available_slots"`
	IsRecurring    bool      `json:"is_recurring"`
	RecurrenceID   *string   `json:"recurrence_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *AppointmentSlot) Capacity() int {
	return slots.Capacity(s.SlotType == SlotTypeGroup, s.MaxPatients)
}

func (s *AppointmentSlot) Labels() ([]string, error) {
	return slots.Generate(s.StartTime, s.EndTime, s.SlotDuration)
}

// Derive пересчитывает day_of_week и доступные метки из даты, границ,
// длительности и booked_slots.
func (s *AppointmentSlot) Derive() error {
	date, err := slots.ParseDate(s.Date)
	if err != nil {
		return err
	}

	labels, err := s.Labels()
	if err != nil {
		return err
	}

	if s.BookedSlots == nil {
		s.BookedSlots = []string{}
	}
	s.DayOfWeek = slots.WeekdayName(date)
	s.AvailableSlots = slots.Available(labels, s.BookedSlots)
	if s.AvailableSlots == nil {
		s.AvailableSlots = []string{}
	}

	return nil
}

type CreateSlotDTO struct {
	Date            string   `json:"date" binding:"required,isodate"`
	StartTime       string   `json:"start_time" binding:"required,clock"`
	EndTime         string   `json:"end_time" binding:"required,clock"`
	SlotDuration    int      `json:"slot_duration" binding:"required,min=1"`
	SlotType        SlotType `json:"slot_type" binding:"required,oneof=individual group"`
	MaxPatients     int      `json:"max_patients" binding:"omitempty,min=1"`
	IsRecurring     bool     `json:"is_recurring"`
	RecurrenceWeeks int      `json:"recurrence_weeks" binding:"omitempty,min=1"`
}

type UpdateSlotDTO struct {
	Date         *string   `json:"date" binding:"omitempty,isodate"`
	StartTime    *string   `json:"start_time" binding:"omitempty,clock"`
	EndTime      *string   `json:"end_time" binding:"omitempty,clock"`
	SlotDuration *int      `json:"slot_duration" binding:"omitempty,min=1"`
	SlotType     *SlotType `json:"slot_type" binding:"omitempty,oneof=individual group"`
	MaxPatients  *int      `json:"max_patients" binding:"omitempty,min=1"`
}

type SlotFilter struct {
	DoctorID     *int64  `json:"doctor_id"`
	DateFrom     *string `json:"date_from"`
	DateTo       *string `json:"date_to"`
	RecurrenceID *string `json:"recurrence_id"`
	Limit        int     `json:"limit"`
	Offset       int     `json:"offset"`
}

// SlotAvailability - свободные метки одного окна. Remaining заполняется для
// групповых окон: сколько мест осталось на каждой свободной метке.
type SlotAvailability struct {
	SlotID    int64          `json:"slot_id"`
	Date      string         `json:"date"`
	DayOfWeek string         `json:"day_of_week"`
	SlotType  SlotType       `json:"slot_type"`
	Duration  int            `json:"slot_duration"`
	Available []string       `json:"available"`
	Remaining map[string]int `json:"remaining,omitempty"`
}

type SlotDayGroup struct {
	Date      string            `json:"date"`
	DayOfWeek string            `json:"day_of_week"`
	Slots     []AppointmentSlot `json:"slots"`
	Summary   slots.Summary     `json:"summary"`
}

type WeekdayStats struct {
	DayOfWeek string `json:"day_of_week"`
	slots.Summary
}

type SlotStats struct {
	DoctorID  int64          `json:"doctor_id"`
	Windows   int            `json:"windows"`
	Summary   slots.Summary  `json:"summary"`
	ByWeekday []WeekdayStats `json:"by_weekday"`
}
