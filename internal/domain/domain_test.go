package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestAppointmentSlot_Derive(t *testing.T) {
	s := AppointmentSlot{
		Date:         "2024-03-18",
		DayOfWeek:    "Friday",
		StartTime:    "09:00",
		EndTime:      "10:00",
		SlotDuration: 20,
		SlotType:     SlotTypeIndividual,
		BookedSlots:  []string{"09:20", "12:00"},
	}

	if err := s.Derive(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.DayOfWeek != "Monday" {
		t.Errorf("DayOfWeek = %s, want Monday", s.DayOfWeek)
	}
	if want := []string{"09:00", "09:40"}; !reflect.DeepEqual(s.AvailableSlots, want) {
		t.Errorf("AvailableSlots = %v, want %v", s.AvailableSlots, want)
	}
}

func TestAppointmentSlot_DeriveEmpty(t *testing.T) {
	s := AppointmentSlot{Date: "2024-03-18", StartTime: "09:00", EndTime: "09:15", SlotDuration: 20}
	if err := s.Derive(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AvailableSlots == nil || len(s.AvailableSlots) != 0 {
		t.Errorf("expected empty non-nil availability, got %#v", s.AvailableSlots)
	}
	if s.BookedSlots == nil {
		t.Error("BookedSlots should be normalised to an empty slice")
	}
}

func TestAppointmentSlot_DeriveInvalid(t *testing.T) {
	s := AppointmentSlot{Date: "2024-03-18", StartTime: "09:00", EndTime: "10:00", SlotDuration: 0}
	if err := s.Derive(); err == nil {
		t.Error("expected error for zero duration")
	}

	s = AppointmentSlot{Date: "18/03/2024", StartTime: "09:00", EndTime: "10:00", SlotDuration: 10}
	if err := s.Derive(); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestAppointmentSlot_Capacity(t *testing.T) {
	if got := (&AppointmentSlot{SlotType: SlotTypeIndividual, MaxPatients: 5}).Capacity(); got != 1 {
		t.Errorf("individual capacity = %d, want 1", got)
	}
	if got := (&AppointmentSlot{SlotType: SlotTypeGroup, MaxPatients: 5}).Capacity(); got != 5 {
		t.Errorf("group capacity = %d, want 5", got)
	}
}

func TestAppointmentStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{AppointmentStatusPending, AppointmentStatusConfirmed, true},
		{AppointmentStatusPending, AppointmentStatusCancelled, true},
		{AppointmentStatusPending, AppointmentStatusCompleted, false},
		{AppointmentStatusConfirmed, AppointmentStatusCompleted, true},
		{AppointmentStatusConfirmed, AppointmentStatusCancelled, true},
		{AppointmentStatusCompleted, AppointmentStatusCancelled, false},
		{AppointmentStatusCancelled, AppointmentStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if !AppointmentStatusConfirmed.IsActive() || AppointmentStatusCompleted.IsActive() {
		t.Error("unexpected IsActive result")
	}
}

func TestError_Kinds(t *testing.T) {
	err := NotFound("врач не найден")
	if !errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		t.Error("NotFound must wrap ErrNotFound only")
	}
	if err.Error() != "врач не найден" {
		t.Errorf("unexpected message %q", err.Error())
	}

	var derr *Error
	if !errors.As(Conflict("занято"), &derr) || derr.Kind != ErrConflict {
		t.Error("Conflict must be a *Error with ErrConflict kind")
	}
}

func TestUser_FullName(t *testing.T) {
	u := User{FirstName: "Иван", LastName: "Петров"}
	if got := u.FullName(); got != "Петров Иван" {
		t.Errorf("FullName = %q", got)
	}
}
