package models

import (
	"math"
	"testing"
	"time"
)

func validEvent() *ScoredEvent {
	return &ScoredEvent{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		DeviceID:  "DEV-001",
		State:     StateRun,
		Score:     0.18,
		Families:  map[string]float64{"Voltage": 60, "Current": 40},
	}
}

func TestScoredEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScoredEvent)
		wantErr error
	}{
		{"valid", func(e *ScoredEvent) {}, nil},
		{"empty device", func(e *ScoredEvent) { e.DeviceID = "" }, ErrEmptyDeviceID},
		{"zero timestamp", func(e *ScoredEvent) { e.Timestamp = time.Time{} }, ErrZeroTimestamp},
		{"negative score", func(e *ScoredEvent) { e.Score = -0.1 }, ErrNegativeScore},
		{"bad state", func(e *ScoredEvent) { e.State = "OFF" }, ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(ev)
			if err := ev.Validate(); err != tt.wantErr {
				t.Errorf("Validate: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScoredEvent_Normalize(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	ev := &ScoredEvent{
		Timestamp: time.Date(2025, 6, 1, 15, 0, 0, 0, loc),
		DeviceID:  "  DEV-001 ",
		State:     " run ",
		Score:     math.NaN(),
		Tag:       " Bearing_Wear ",
	}

	ev.Normalize()

	if ev.DeviceID != "DEV-001" {
		t.Errorf("device: got %q", ev.DeviceID)
	}
	if ev.State != StateRun {
		t.Errorf("state: got %q", ev.State)
	}
	if ev.Tag != "Bearing_Wear" {
		t.Errorf("tag: got %q (case folding is the router's job)", ev.Tag)
	}
	if ev.Score != 0 {
		t.Errorf("NaN score: got %v, want 0", ev.Score)
	}
	if ev.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp not converted to UTC")
	}
	if ev.Timestamp.Hour() != 12 {
		t.Errorf("timestamp instant changed: got hour %d", ev.Timestamp.Hour())
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2025-06-01T12:00:00Z", false},
		{"2025-06-01T12:00:00.123456Z", false},
		{"2025-06-01 12:00:00", false},
		{" 2025-06-01T12:00:00Z ", false},
		{"not-a-timestamp", true},
		{"", true},
	}

	for _, tt := range tests {
		_, err := ParseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q): err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
	}
}

func TestSanitizePercent(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{50, 50},
		{0, 0},
		{100, 100},
		{-10, 0},
		{150, 100},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
	}

	for _, tt := range tests {
		if got := SanitizePercent(tt.in); got != tt.want {
			t.Errorf("SanitizePercent(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSortedFamilies(t *testing.T) {
	got := SortedFamilies(map[string]float64{
		"Current":     20,
		"Voltage":     47,
		"Temperature": 25,
		"RPM":         20,
	})

	want := []Share{
		{Name: "Voltage", Percent: 47},
		{Name: "Temperature", Percent: 25},
		{Name: "Current", Percent: 20}, // name breaks the tie with RPM
		{Name: "RPM", Percent: 20},
	}

	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d]: got %+v, want %+v", i, got[i], want[i])
		}
	}
}
