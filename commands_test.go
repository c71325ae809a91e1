package main

import (
	"bytes"
	"strings"
	"testing"
)

func runSlots(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newSlotsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestSlotsCommand(t *testing.T) {
	out, err := runSlots(t, "09:00", "10:00", "20", "--booked", "09:20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, "метки:     09:00 09:20 09:40") {
		t.Errorf("labels missing in output:\n%s", out)
	}
	if !strings.Contains(out, "свободно:  09:00 09:40") {
		t.Errorf("available labels missing in output:\n%s", out)
	}
	if !strings.Contains(out, "всего 3, занято 1 (33.3%), свободно 2") {
		t.Errorf("summary missing in output:\n%s", out)
	}
}

func TestSlotsCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"not a number", []string{"09:00", "10:00", "half"}},
		{"zero duration", []string{"09:00", "10:00", "0"}},
		{"bad clock", []string{"9am", "10:00", "30"}},
		{"missing args", []string{"09:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runSlots(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
