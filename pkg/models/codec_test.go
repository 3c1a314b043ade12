package models

import (
	"errors"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	in := &MapRecord{
		ID:         "m1",
		Title:      "Title",
		Mappers:    []string{"a"},
		Difficulty: DifficultyLogic,
		StarRating: 3.5,
		NoteCount:  2,
		Duration:   20,
		Notes:      []Note{{Time: 10}, {Time: 20, X: 1, Y: 1}},
	}
	data, err := EncodeRecord(in)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}
	out, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if out.ID != in.ID || out.Difficulty != in.Difficulty || out.Duration != 20 {
		t.Errorf("Decoded record mismatch: %+v", out)
	}
	if out.OnlineStatus != StatusUnranked {
		t.Errorf("Expected default status UNRANKED, got %q", out.OnlineStatus)
	}
}

func TestDecodeRecordRejectsBrokenInvariants(t *testing.T) {
	tests := map[string]string{
		"not json":       `{`,
		"missing id":     `{"title":"x","notes":[]}`,
		"count mismatch": `{"id":"a","note_count":2,"notes":[{"t":1}]}`,
		"duration":       `{"id":"a","note_count":1,"duration_ms":5,"notes":[{"t":1}]}`,
	}
	for name, data := range tests {
		if _, err := DecodeRecord([]byte(data)); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%s: expected ErrInvalidRecord, got %v", name, err)
		}
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in      string
		want    Difficulty
		wantErr bool
	}{
		{"HARD", DifficultyHard, false},
		{"tasukete", DifficultyTasukete, false},
		{"n/a", DifficultyNA, false},
		{"2", DifficultyMedium, false},
		{"9", DifficultyNA, true},
		{"brutal", DifficultyNA, true},
	}
	for _, tt := range tests {
		got, err := ParseDifficulty(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDifficulty(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDifficulty(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseOnlineStatus(t *testing.T) {
	if s, err := ParseOnlineStatus(""); err != nil || s != StatusUnranked {
		t.Errorf("empty status: got %q, %v", s, err)
	}
	if s, err := ParseOnlineStatus("ranked"); err != nil || s != StatusRanked {
		t.Errorf("ranked: got %q, %v", s, err)
	}
	if _, err := ParseOnlineStatus("loved"); err == nil {
		t.Error("expected error for unknown status")
	}
}
