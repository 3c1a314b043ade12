package format

import "fmt"

const (
	legacyVersion = 1

	legacyPositionInt     = 0
	legacyPositionQuantum = 1

	// smallest encoded note: time, kind, two byte coordinates
	legacyMinNoteSize = 4 + 1 + 2
)

func parseLegacy(data []byte) (*Map, error) {
	r := newReader(data)
	if err := checkHeader(r, legacyVersion); err != nil {
		return nil, err
	}
	r.take(2) // reserved

	id := r.line()
	name := r.line()
	creator := r.line()
	r.u32() // last note time, recomputed from the notes
	count := r.u32()
	difficulty := r.u8()

	var cover, audio []byte
	switch coverType := r.u8(); coverType {
	case 0:
	case 1, 2:
		cover = r.blob(r.u64())
	default:
		if r.err == nil {
			return nil, fmt.Errorf("unknown cover type %d", coverType)
		}
	}
	switch audioType := r.u8(); audioType {
	case 0:
	case 1:
		audio = r.blob(r.u64())
	default:
		if r.err == nil {
			return nil, fmt.Errorf("unknown audio type %d", audioType)
		}
	}
	if r.err != nil {
		return nil, r.err
	}

	if uint64(count)*legacyMinNoteSize > uint64(r.remaining()) {
		return nil, fmt.Errorf("%w: %d notes declared, %d bytes left", errTruncated, count, r.remaining())
	}

	notes := make([]sourceNote, 0, count)
	for i := uint32(0); i < count; i++ {
		n := sourceNote{time: r.u32()}
		switch kind := r.u8(); kind {
		case legacyPositionInt:
			n.x = float64(r.u8())
			n.y = float64(r.u8())
		case legacyPositionQuantum:
			n.x = float64(r.f32())
			n.y = float64(r.f32())
		default:
			if r.err == nil {
				return nil, fmt.Errorf("note %d: unknown position kind %d", i, kind)
			}
		}
		if r.err != nil {
			return nil, fmt.Errorf("note %d: %w", i, r.err)
		}
		notes = append(notes, n)
	}

	return buildMap(recordFields{
		id:         id,
		title:      name,
		mappers:    []string{creator},
		difficulty: difficulty,
		notes:      notes,
		audio:      audio,
		cover:      cover,
	})
}
