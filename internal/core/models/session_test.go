package models

import (
	"testing"
)

func TestSessionValidation(t *testing.T) {
	tests := []struct {
		name    string
		session SessionMeta
		wantErr bool
	}{
		{
			name: "valid session",
			session: SessionMeta{
				ID:            "abc-123",
				ProjectPath:   "/Users/neil/xuku/invoice",
				Summary:       "Test session",
				LastTimestamp: "2025-01-01T10:00:00Z",
			},
			wantErr: false,
		},
		{
			name: "missing session ID",
			session: SessionMeta{
				ProjectPath: "/Users/neil/xuku/invoice",
			},
			wantErr: true,
		},
		{
			name: "negative message count",
			session: SessionMeta{
				ID:           "abc-123",
				ProjectPath:  "/tmp",
				MessageCount: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLastActivity(t *testing.T) {
	s := SessionMeta{LastTimestamp: "2025-03-04T05:06:07.123Z"}
	if got := s.LastActivity(); got.Year() != 2025 || got.Nanosecond() == 0 {
		t.Errorf("LastActivity() = %v", got)
	}

	s.LastTimestamp = "not a time"
	if !s.LastActivity().IsZero() {
		t.Error("expected zero time for unparseable timestamp")
	}
}

func TestUtilizations(t *testing.T) {
	util := 42.0
	r := &UsageResponse{
		FiveHour:   &UsageWindow{Utilization: 10},
		SevenDay:   &UsageWindow{Utilization: 20},
		ExtraUsage: &ExtraUsage{IsEnabled: false, Utilization: &util},
	}

	got := r.Utilizations()
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %v", got)
	}

	r.ExtraUsage.IsEnabled = true
	if got := r.Utilizations(); got[WindowExtraUsage] != 42 {
		t.Errorf("extra usage = %v, want 42", got[WindowExtraUsage])
	}
}
