// Package format turns raw beatmap binaries into canonical map records.
//
// Two on-disk variants exist. The current one carries a string table, a marker
// definition table and typed markers; the legacy one stores header fields and a
// flat note list directly. Normalize tries the current variant first and falls
// back to the legacy one.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/himanishpuri/MapVault/pkg/models"
)

// ErrUnparseableFormat is returned when no variant accepts the binary.
var ErrUnparseableFormat = errors.New("unparseable map format")

var signature = []byte("SS+m")

const (
	VariantCurrent = "current"
	VariantLegacy  = "legacy"
)

// Map is a normalized binary: the canonical record plus embedded payloads,
// which are passed through untouched.
type Map struct {
	Record  *models.MapRecord
	Audio   []byte
	Cover   []byte
	Variant string
}

// Parser decodes one format variant.
type Parser struct {
	Name  string
	Parse func(data []byte) (*Map, error)
}

// DefaultParsers is the candidate order used by Normalize.
var DefaultParsers = []Parser{
	{Name: VariantCurrent, Parse: parseCurrent},
	{Name: VariantLegacy, Parse: parseLegacy},
}

// Normalize parses data with DefaultParsers.
func Normalize(data []byte) (*Map, error) {
	return NormalizeWith(data, DefaultParsers...)
}

// NormalizeWith returns the first successful parse. If every parser fails the
// error wraps ErrUnparseableFormat and each variant's cause.
func NormalizeWith(data []byte, parsers ...Parser) (*Map, error) {
	errs := []error{ErrUnparseableFormat}
	for _, p := range parsers {
		m, err := p.Parse(data)
		if err == nil {
			m.Variant = p.Name
			return m, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}
	return nil, errors.Join(errs...)
}

func checkHeader(r *reader, version uint16) error {
	magic := r.take(len(signature))
	if r.err != nil {
		return r.err
	}
	if !bytes.Equal(magic, signature) {
		return fmt.Errorf("bad signature %q", magic)
	}
	if v := r.u16(); r.err == nil && v != version {
		return fmt.Errorf("version %d, want %d", v, version)
	}
	return r.err
}

// sourceNote keeps the source order so ties stay stable after sorting.
type sourceNote struct {
	time uint32
	x, y float64
}

type recordFields struct {
	id         string
	title      string
	songName   string
	mappers    []string
	difficulty uint8
	starRating float64
	notes      []sourceNote
	audio      []byte
	cover      []byte
}

func buildMap(f recordFields) (*Map, error) {
	if f.id == "" {
		return nil, errors.New("empty map id")
	}
	if len(f.mappers) == 0 {
		return nil, errors.New("no mappers")
	}

	sort.SliceStable(f.notes, func(i, j int) bool {
		return f.notes[i].time < f.notes[j].time
	})

	notes := make([]models.Note, len(f.notes))
	for i, n := range f.notes {
		notes[i] = models.Note{Time: int(n.time), X: n.x, Y: n.y}
	}

	diff := models.Difficulty(f.difficulty)
	if !diff.Valid() {
		diff = models.DifficultyNA
	}

	rec := &models.MapRecord{
		ID:           f.id,
		Title:        f.title,
		SongName:     f.songName,
		Mappers:      f.mappers,
		Difficulty:   diff,
		StarRating:   f.starRating,
		OnlineStatus: models.StatusUnranked,
		NoteCount:    len(notes),
		Duration:     models.DurationOf(notes),
		HasAudio:     len(f.audio) > 0,
		HasCover:     len(f.cover) > 0,
		Notes:        notes,
	}
	return &Map{Record: rec, Audio: f.audio, Cover: f.cover}, nil
}
