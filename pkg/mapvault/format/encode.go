package format

import (
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/himanishpuri/MapVault/pkg/models"
)

// fixed part of a current-variant header, up to and including the section table
const currentHeaderSize = 4 + 2 + 4 + sha1.Size + 4 + 4 + 4 + 1 + 2 + 1 + 1 + 1 + 5*16

var le = binary.LittleEndian

// EncodeCurrent writes rec and its payloads in the current variant. Notes are
// stored as markers of a single "ssp_note" definition.
func EncodeCurrent(rec *models.MapRecord, audio, cover []byte) ([]byte, error) {
	if err := checkEncodable(rec); err != nil {
		return nil, err
	}

	var strs []byte
	var err error
	for _, s := range []string{rec.ID, rec.Title, rec.SongName} {
		if strs, err = appendStr16(strs, s); err != nil {
			return nil, err
		}
	}
	if len(rec.Mappers) > math.MaxUint16 {
		return nil, fmt.Errorf("too many mappers: %d", len(rec.Mappers))
	}
	strs = le.AppendUint16(strs, uint16(len(rec.Mappers)))
	for _, m := range rec.Mappers {
		if strs, err = appendStr16(strs, m); err != nil {
			return nil, err
		}
	}

	defs := []byte{1}
	defs, _ = appendStr16(defs, "ssp_note")
	defs = append(defs, 1, valuePosition, 0)

	var markers []byte
	for _, n := range rec.Notes {
		markers = le.AppendUint32(markers, uint32(n.Time))
		markers = append(markers, noteDefinition)
		if x, y, ok := gridPosition(n); ok {
			markers = append(markers, 0, x, y)
		} else {
			markers = append(markers, 1)
			markers = le.AppendUint32(markers, math.Float32bits(float32(n.X)))
			markers = le.AppendUint32(markers, math.Float32bits(float32(n.Y)))
		}
	}

	// custom data is always empty, so it sits where the payloads begin
	offset := uint64(currentHeaderSize + len(strs))
	var sections []section
	for _, block := range [][]byte{nil, audio, cover, defs, markers} {
		sections = append(sections, section{offset: offset, length: uint64(len(block))})
		offset += uint64(len(block))
	}

	hash := sha1.Sum(markers)
	out := make([]byte, 0, offset)
	out = append(out, signature...)
	out = le.AppendUint16(out, currentVersion)
	out = append(out, 0, 0, 0, 0)
	out = append(out, hash[:]...)
	out = le.AppendUint32(out, uint32(models.DurationOf(rec.Notes)))
	out = le.AppendUint32(out, uint32(len(rec.Notes)))
	out = le.AppendUint32(out, uint32(len(rec.Notes)))
	out = append(out, uint8(rec.Difficulty))
	out = le.AppendUint16(out, starHundredths(rec.StarRating))
	out = append(out, boolByte(len(audio) > 0), boolByte(len(cover) > 0), 0)
	for _, s := range sections {
		out = le.AppendUint64(out, s.offset)
		out = le.AppendUint64(out, s.length)
	}
	out = append(out, strs...)
	out = append(out, audio...)
	out = append(out, cover...)
	out = append(out, defs...)
	out = append(out, markers...)
	return out, nil
}

// EncodeLegacy writes rec in the legacy variant. Multiple mappers are joined
// into the single creator line.
func EncodeLegacy(rec *models.MapRecord, audio, cover []byte) ([]byte, error) {
	if err := checkEncodable(rec); err != nil {
		return nil, err
	}
	creator := strings.Join(rec.Mappers, ", ")
	for _, s := range []string{rec.ID, rec.Title, creator} {
		if strings.ContainsRune(s, '\n') {
			return nil, fmt.Errorf("legacy strings cannot contain newlines: %q", s)
		}
	}

	out := append([]byte{}, signature...)
	out = le.AppendUint16(out, legacyVersion)
	out = append(out, 0, 0)
	out = append(out, rec.ID+"\n"+rec.Title+"\n"+creator+"\n"...)
	out = le.AppendUint32(out, uint32(models.DurationOf(rec.Notes)))
	out = le.AppendUint32(out, uint32(len(rec.Notes)))
	out = append(out, uint8(rec.Difficulty))

	if len(cover) > 0 {
		out = append(out, 2)
		out = le.AppendUint64(out, uint64(len(cover)))
		out = append(out, cover...)
	} else {
		out = append(out, 0)
	}
	if len(audio) > 0 {
		out = append(out, 1)
		out = le.AppendUint64(out, uint64(len(audio)))
		out = append(out, audio...)
	} else {
		out = append(out, 0)
	}

	for _, n := range rec.Notes {
		out = le.AppendUint32(out, uint32(n.Time))
		if x, y, ok := gridPosition(n); ok {
			out = append(out, legacyPositionInt, x, y)
		} else {
			out = append(out, legacyPositionQuantum)
			out = le.AppendUint32(out, math.Float32bits(float32(n.X)))
			out = le.AppendUint32(out, math.Float32bits(float32(n.Y)))
		}
	}
	return out, nil
}

func checkEncodable(rec *models.MapRecord) error {
	if rec == nil {
		return errors.New("nil record")
	}
	if rec.ID == "" {
		return errors.New("empty map id")
	}
	if len(rec.Mappers) == 0 {
		return errors.New("no mappers")
	}
	for _, n := range rec.Notes {
		if n.Time < 0 || int64(n.Time) > math.MaxUint32 {
			return fmt.Errorf("note time %d out of range", n.Time)
		}
	}
	return nil
}

func appendStr16(b []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, fmt.Errorf("string of %d bytes too long", len(s))
	}
	b = le.AppendUint16(b, uint16(len(s)))
	return append(b, s...), nil
}

// gridPosition reports whether a note sits on the integer grid.
func gridPosition(n models.Note) (x, y uint8, ok bool) {
	onGrid := func(v float64) bool { return v >= 0 && v <= 255 && v == math.Trunc(v) }
	if !onGrid(n.X) || !onGrid(n.Y) {
		return 0, 0, false
	}
	return uint8(n.X), uint8(n.Y), true
}

func starHundredths(stars float64) uint16 {
	v := math.Round(stars * 100)
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
