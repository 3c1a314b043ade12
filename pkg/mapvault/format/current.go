package format

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
)

const (
	currentVersion = 2

	// index of the marker definition whose markers are notes
	noteDefinition = 0
)

// Marker value type tags.
const (
	valueU8         = 0x01
	valueU16        = 0x02
	valueU32        = 0x03
	valueU64        = 0x04
	valueF32        = 0x05
	valueF64        = 0x06
	valuePosition   = 0x07
	valueBuffer     = 0x08
	valueString     = 0x09
	valueLongBuffer = 0x0a
	valueLongString = 0x0b
)

type markerDefinition struct {
	name  string
	types []uint8
}

type section struct {
	offset, length uint64
}

func (s section) slice(data []byte) ([]byte, error) {
	end := s.offset + s.length
	if end < s.offset || end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: section %d+%d outside %d bytes", errTruncated, s.offset, s.length, len(data))
	}
	return data[s.offset:end], nil
}

func parseCurrent(data []byte) (*Map, error) {
	r := newReader(data)
	if err := checkHeader(r, currentVersion); err != nil {
		return nil, err
	}
	r.take(4) // reserved

	hash := r.take(sha1.Size)
	r.u32() // last marker time
	r.u32() // note count, recomputed from the markers
	markerCount := r.u32()
	difficulty := r.u8()
	stars := r.u16()
	hasAudio := r.u8() == 1
	hasCover := r.u8() == 1
	r.u8() // requires mod

	var custom, audioSec, coverSec, defsSec, markersSec section
	for _, s := range []*section{&custom, &audioSec, &coverSec, &defsSec, &markersSec} {
		s.offset = r.u64()
		s.length = r.u64()
	}

	id := r.str16()
	name := r.str16()
	song := r.str16()
	mapperCount := r.u16()
	mappers := make([]string, 0, mapperCount)
	for i := uint16(0); i < mapperCount && r.err == nil; i++ {
		mappers = append(mappers, r.str16())
	}
	if r.err != nil {
		return nil, fmt.Errorf("header: %w", r.err)
	}

	var audio, cover []byte
	var err error
	if hasAudio {
		if audio, err = audioSec.slice(data); err != nil {
			return nil, fmt.Errorf("audio: %w", err)
		}
	}
	if hasCover {
		if cover, err = coverSec.slice(data); err != nil {
			return nil, fmt.Errorf("cover: %w", err)
		}
	}

	defsBlock, err := defsSec.slice(data)
	if err != nil {
		return nil, fmt.Errorf("marker definitions: %w", err)
	}
	defs, err := parseDefinitions(defsBlock)
	if err != nil {
		return nil, fmt.Errorf("marker definitions: %w", err)
	}

	markerBlock, err := markersSec.slice(data)
	if err != nil {
		return nil, fmt.Errorf("markers: %w", err)
	}
	if sum := sha1.Sum(markerBlock); !bytes.Equal(sum[:], hash) {
		return nil, errors.New("marker block checksum mismatch")
	}

	notes, err := parseMarkers(markerBlock, markerCount, defs)
	if err != nil {
		return nil, err
	}

	return buildMap(recordFields{
		id:         id,
		title:      name,
		songName:   song,
		mappers:    mappers,
		difficulty: difficulty,
		starRating: float64(stars) / 100,
		notes:      notes,
		audio:      audio,
		cover:      cover,
	})
}

func parseDefinitions(block []byte) ([]markerDefinition, error) {
	r := newReader(block)
	count := r.u8()
	defs := make([]markerDefinition, 0, count)
	for i := uint8(0); i < count; i++ {
		def := markerDefinition{name: r.str16()}
		n := r.u8()
		def.types = make([]uint8, 0, n)
		for j := uint8(0); j < n; j++ {
			def.types = append(def.types, r.u8())
		}
		if end := r.u8(); r.err == nil && end != 0 {
			return nil, fmt.Errorf("definition %q: missing terminator", def.name)
		}
		if r.err != nil {
			return nil, r.err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, errors.New("no marker definitions")
	}
	return defs, nil
}

func parseMarkers(block []byte, count uint32, defs []markerDefinition) ([]sourceNote, error) {
	// a marker is at least its time and definition index
	if uint64(count)*5 > uint64(len(block)) {
		return nil, fmt.Errorf("%w: %d markers declared in %d bytes", errTruncated, count, len(block))
	}

	r := newReader(block)
	var notes []sourceNote
	for i := uint32(0); i < count; i++ {
		t := r.u32()
		idx := r.u8()
		if r.err != nil {
			return nil, fmt.Errorf("marker %d: %w", i, r.err)
		}
		if int(idx) >= len(defs) {
			return nil, fmt.Errorf("marker %d: undefined type %d", i, idx)
		}

		var pos *sourceNote
		for _, typ := range defs[idx].types {
			p, err := readValue(r, typ)
			if err != nil {
				return nil, fmt.Errorf("marker %d: %w", i, err)
			}
			if p != nil && pos == nil {
				pos = p
			}
		}
		if idx != noteDefinition {
			continue
		}
		if pos == nil {
			return nil, fmt.Errorf("marker %d: note without position", i)
		}
		pos.time = t
		notes = append(notes, *pos)
	}
	return notes, nil
}

// readValue consumes one marker value. Positions are returned, everything else
// is skipped.
func readValue(r *reader, typ uint8) (*sourceNote, error) {
	switch typ {
	case valueU8:
		r.take(1)
	case valueU16:
		r.take(2)
	case valueU32, valueF32:
		r.take(4)
	case valueU64, valueF64:
		r.take(8)
	case valuePosition:
		var p sourceNote
		if r.u8() == 0 {
			p.x = float64(r.u8())
			p.y = float64(r.u8())
		} else {
			p.x = float64(r.f32())
			p.y = float64(r.f32())
		}
		if r.err != nil {
			return nil, r.err
		}
		return &p, nil
	case valueBuffer, valueString:
		r.take(int(r.u16()))
	case valueLongBuffer, valueLongString:
		r.blob(uint64(r.u32()))
	default:
		return nil, fmt.Errorf("unknown value type 0x%02x", typ)
	}
	return nil, r.err
}
