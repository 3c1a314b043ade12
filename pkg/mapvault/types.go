package mapvault

import (
	"errors"
	"time"

	"github.com/himanishpuri/MapVault/pkg/models"
)

// ErrMapNotFound means the metadata store has no record for the id.
var ErrMapNotFound = errors.New("map not found")

// ErrNoCatalog is returned by ImportFromCatalog when no catalog client is set.
var ErrNoCatalog = errors.New("no catalog configured")

// Selection is everything a player needs to start a map.
type Selection struct {
	Record    *models.MapRecord
	Audio     []byte     // nil when the map has no audio
	AudioInfo *AudioInfo // nil unless Audio is a WAV file
	Cover     []byte
}

// AudioInfo describes WAV audio.
type AudioInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}
