package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/himanishpuri/MapVault/pkg/models"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		raw     string
		filters []Filter
		text    string
	}{
		{"", nil, ""},
		{"   ", nil, ""},
		{"sample", nil, "sample"},
		{"STAR>2", []Filter{{Field: "star", Op: OpGreater, Value: "2"}}, ""},
		{"diff=HARD sample", []Filter{{Field: "diff", Op: OpEqual, Value: "HARD"}}, "sample"},
		{"some song author=Bob  star<5.5 ", []Filter{
			{Field: "author", Op: OpEqual, Value: "Bob"},
			{Field: "star", Op: OpLess, Value: "5.5"},
		}, "some song"},
		{"a=1 b=2", []Filter{{Field: "a", Op: OpEqual, Value: "1"}, {Field: "b", Op: OpEqual, Value: "2"}}, ""},
		// digits are not field letters, so this stays text
		{"x2=3", nil, "x2=3"},
		{"email@x=y", nil, "email@x=y"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q := ParseQuery(tt.raw)
			assert.Equal(t, tt.filters, q.Filters)
			assert.Equal(t, tt.text, q.Text)
		})
	}
}

func TestMatch(t *testing.T) {
	rec := &models.MapRecord{
		ID:           "m1",
		Title:        "Sample Song",
		Mappers:      []string{"Alice", "Bob"},
		Difficulty:   models.DifficultyHard,
		StarRating:   3.5,
		OnlineStatus: models.StatusRanked,
		NoteCount:    120,
		Duration:     90000,
	}
	tests := map[string]bool{
		"":                      true,
		"sample":                true,
		"SAMPLE":                true,
		"alic":                  true,
		"missing":               false,
		"star>2":                true,
		"STAR>4":                false,
		"star=3.5":              true,
		"starrating<3.5":        false,
		"diff=HARD":             true,
		"diff=hard":             true,
		"diff=3":                true,
		"diff=easy":             false,
		"difficulty>2":          true,
		"author=bob":            true,
		"mapper=bo":             false,
		"name=sample song":      false, // value stops at whitespace, "song" becomes text
		"name=Sample":           false,
		"title>1":               false, // NaN
		"status=ranked":         true,
		"onlinestatus=UNRANKED": false,
		"notes>100":             true,
		"length<60000":          false,
		"id=M1":                 true,
		"bogus=1":               false,
		"star>abc":              false,
		"diff=HARD sample":      true,
		"diff=HARD other":       false,
	}
	for raw, want := range tests {
		m := compile(ParseQuery(raw))
		assert.Equal(t, want, m.match(rec), raw)
	}
}

func TestToNumber(t *testing.T) {
	assert.Equal(t, 2.5, toNumber(" 2.5 "))
	assert.True(t, math.IsNaN(toNumber("x")))
	assert.Zero(t, toNumber(""))
}
