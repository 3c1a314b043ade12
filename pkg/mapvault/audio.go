package mapvault

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

// probeAudio reads the header of WAV audio. Other formats return nil, nil.
func probeAudio(data []byte) (*AudioInfo, error) {
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, nil
	}

	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV audio")
	}
	duration, err := decoder.Duration()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV duration: %w", err)
	}
	return &AudioInfo{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		Duration:   duration,
	}, nil
}
