package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Difficulty is the display tier of a map. Values outside 0..5 never leave the
// normalizer; they are clamped to DifficultyNA.
type Difficulty int

const (
	DifficultyNA Difficulty = iota
	DifficultyEasy
	DifficultyMedium
	DifficultyHard
	DifficultyLogic
	DifficultyTasukete
)

var difficultyNames = [...]string{"N/A", "Easy", "Medium", "Hard", "Logic", "Tasukete"}

func (d Difficulty) String() string {
	if d.Valid() {
		return difficultyNames[d]
	}
	return "Difficulty(" + strconv.Itoa(int(d)) + ")"
}

func (d Difficulty) Valid() bool {
	return d >= DifficultyNA && d <= DifficultyTasukete
}

// ParseDifficulty accepts a tier name (case-insensitive, "na" for N/A) or its number.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		d := Difficulty(n)
		if !d.Valid() {
			return DifficultyNA, fmt.Errorf("difficulty %d out of range", n)
		}
		return d, nil
	}
	switch strings.ToLower(s) {
	case "na", "n/a", "none":
		return DifficultyNA, nil
	}
	for i, name := range difficultyNames {
		if strings.EqualFold(name, s) {
			return Difficulty(i), nil
		}
	}
	return DifficultyNA, fmt.Errorf("unknown difficulty %q", s)
}

// OnlineStatus is the ranking status reported by the remote catalog.
type OnlineStatus string

const (
	StatusUnranked OnlineStatus = "UNRANKED"
	StatusRanked   OnlineStatus = "RANKED"
	StatusApproved OnlineStatus = "APPROVED"
)

func (s OnlineStatus) Valid() bool {
	switch s {
	case StatusUnranked, StatusRanked, StatusApproved:
		return true
	}
	return false
}

// ParseOnlineStatus is case-insensitive. The empty string yields StatusUnranked.
func ParseOnlineStatus(s string) (OnlineStatus, error) {
	if strings.TrimSpace(s) == "" {
		return StatusUnranked, nil
	}
	st := OnlineStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return StatusUnranked, fmt.Errorf("unknown online status %q", s)
	}
	return st, nil
}

// Note is a single hit object: when it must be hit and where on the grid.
type Note struct {
	Time int     `json:"t"` // milliseconds from the start of the track
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// MapRecord is the canonical, format-independent description of one beatmap.
// Records are immutable once built; re-ingesting an ID replaces the record.
type MapRecord struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	SongName     string       `json:"song_name,omitempty"`
	Mappers      []string     `json:"mappers"`
	Difficulty   Difficulty   `json:"difficulty"`
	StarRating   float64      `json:"star_rating"`
	OnlineStatus OnlineStatus `json:"online_status"`
	NoteCount    int          `json:"note_count"`
	Duration     int          `json:"duration_ms"` // time of the last note
	HasAudio     bool         `json:"has_audio"`
	HasCover     bool         `json:"has_cover"`
	Notes        []Note       `json:"notes"`
}

// DurationOf returns the time of the last note of an already sorted note list.
func DurationOf(notes []Note) int {
	if len(notes) == 0 {
		return 0
	}
	return notes[len(notes)-1].Time
}
