package slots

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestGenerate_Examples(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		duration int
		want     []string
	}{
		{"hour by 20", "09:00", "10:00", 20, []string{"09:00", "09:20", "09:40"}},
		{"shorter than duration", "09:00", "09:15", 20, []string{}},
		{"end excluded", "09:00", "10:00", 30, []string{"09:00", "09:30"}},
		{"remainder dropped", "09:00", "10:10", 30, []string{"09:00", "09:30"}},
		{"equal bounds", "12:00", "12:00", 15, []string{}},
		{"reversed bounds", "18:00", "08:00", 15, []string{}},
		{"single digit hour", "9:00", "9:30", 15, []string{"09:00", "09:15"}},
		{"late evening", "22:30", "23:59", 30, []string{"22:30", "23:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Generate(tt.start, tt.end, tt.duration)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Generate(%s, %s, %d) = %v, want %v", tt.start, tt.end, tt.duration, got, tt.want)
			}

			n, err := Count(tt.start, tt.end, tt.duration)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != len(tt.want) {
				t.Errorf("Count = %d, want %d", n, len(tt.want))
			}
		})
	}
}

func TestGenerate_InvalidDuration(t *testing.T) {
	for _, d := range []int{0, -1, -30} {
		if _, err := Generate("09:00", "10:00", d); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("duration %d: expected ErrInvalidDuration, got %v", d, err)
		}
		if _, err := Count("09:00", "10:00", d); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("duration %d: expected ErrInvalidDuration from Count, got %v", d, err)
		}
	}
}

func TestGenerate_InvalidTime(t *testing.T) {
	for _, in := range [][2]string{{"9am", "10:00"}, {"09:00", "25:00"}, {"", "10:00"}, {"09:00", "10:61"}} {
		if _, err := Generate(in[0], in[1], 15); !errors.Is(err, ErrInvalidTime) {
			t.Errorf("Generate(%q, %q): expected ErrInvalidTime, got %v", in[0], in[1], err)
		}
	}
}

// Длина последовательности совпадает с floor((end-start)/duration), метки
// строго возрастают и лежат в [start, end).
func TestGenerate_Properties(t *testing.T) {
	for start := Clock(0); start < 24*60; start += 37 {
		for end := Clock(0); end < 24*60; end += 53 {
			for _, duration := range []int{1, 5, 7, 15, 20, 45, 60, 90, 240} {
				got, err := Generate(start.String(), end.String(), duration)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				want := 0
				if end > start {
					want = int(end-start) / duration
				}
				if len(got) != want {
					t.Fatalf("len(Generate(%s, %s, %d)) = %d, want %d", start, end, duration, len(got), want)
				}

				prev := Clock(-1)
				for _, label := range got {
					c, err := ParseClock(label)
					if err != nil {
						t.Fatalf("label %q does not parse: %v", label, err)
					}
					if c <= prev {
						t.Fatalf("labels not strictly increasing: %v", got)
					}
					if c < start || c >= end {
						t.Fatalf("label %s outside [%s, %s)", label, start, end)
					}
					prev = c
				}
			}
		}
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	first, err := Generate("08:00", "17:00", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Generate("08:00", "17:00", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated calls differ: %v vs %v", first, second)
	}
}

func TestAvailable(t *testing.T) {
	generated := []string{"09:00", "09:20", "09:40"}

	got := Available(generated, []string{"09:20"})
	if want := []string{"09:00", "09:40"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Available = %v, want %v", got, want)
	}

	got = Available(generated, []string{"11:00", "09:40"})
	if want := []string{"09:00", "09:20"}; !reflect.DeepEqual(got, want) {
		t.Errorf("unknown booked label should be ignored: got %v, want %v", got, want)
	}

	got = Available(generated, nil)
	if !reflect.DeepEqual(got, generated) {
		t.Errorf("nothing booked: got %v, want %v", got, generated)
	}

	got = Available(generated, generated)
	if len(got) != 0 {
		t.Errorf("all booked: expected empty, got %v", got)
	}
}

func TestStats(t *testing.T) {
	s := Stats([]string{"09:00", "09:20", "09:40"}, []string{"09:20", "10:00"})
	if s.Total != 3 || s.Booked != 1 || s.Available != 2 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.BookedPercent != 33.3 {
		t.Errorf("expected 33.3%%, got %v", s.BookedPercent)
	}

	empty := Stats(nil, []string{"09:00"})
	if empty.Total != 0 || empty.BookedPercent != 0 {
		t.Errorf("expected zero summary, got %+v", empty)
	}

	sum := s.Add(Summary{Total: 1, Booked: 1})
	if sum.Total != 4 || sum.Booked != 2 || sum.BookedPercent != 50 {
		t.Errorf("unexpected sum %+v", sum)
	}
}

func TestWeekday(t *testing.T) {
	date := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)
	if got := WeekdayName(date); got != "Monday" {
		t.Errorf("expected Monday, got %s", got)
	}
	if got := WeekdayIndex("monday"); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := WeekdayIndex("Sunday"); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
	if got := WeekdayIndex("Funday"); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}

func TestWeeklyOccurrences(t *testing.T) {
	date := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)

	dates := WeeklyOccurrences(date, 3)
	if len(dates) != 3 {
		t.Fatalf("expected 3 dates, got %d", len(dates))
	}
	for i, d := range dates {
		if WeekdayName(d) != "Monday" {
			t.Errorf("occurrence %d falls on %s", i, WeekdayName(d))
		}
	}
	if got := dates[2].Format(DateLayout); got != "2024-04-01" {
		t.Errorf("expected 2024-04-01, got %s", got)
	}

	if WeeklyOccurrences(date, 0) != nil {
		t.Error("expected nil for zero weeks")
	}
}

func TestCapacity(t *testing.T) {
	if Capacity(false, 10) != 1 {
		t.Error("individual slot must hold one patient")
	}
	if Capacity(true, 4) != 4 {
		t.Error("group slot must hold maxPatients")
	}
	if Capacity(true, 0) != 1 {
		t.Error("group slot without capacity falls back to one")
	}
}
