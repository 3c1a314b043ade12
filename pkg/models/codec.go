package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidRecord = errors.New("invalid map record")

// EncodeRecord serializes a record for the metadata store.
func EncodeRecord(r *MapRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	return json.Marshal(r)
}

// DecodeRecord parses metadata-store bytes and checks the record invariants.
func DecodeRecord(data []byte) (*MapRecord, error) {
	var r MapRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if r.NoteCount != len(r.Notes) {
		return nil, fmt.Errorf("%w: note count %d does not match %d notes", ErrInvalidRecord, r.NoteCount, len(r.Notes))
	}
	if r.Duration != DurationOf(r.Notes) {
		return nil, fmt.Errorf("%w: duration %d does not match last note", ErrInvalidRecord, r.Duration)
	}
	if r.OnlineStatus == "" {
		r.OnlineStatus = StatusUnranked
	}
	return &r, nil
}
