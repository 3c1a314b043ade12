package main

import (
	"github.com/himanishpuri/MapVault/pkg/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MapDTO is a map record without its note list
type MapDTO struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	SongName     string   `json:"song_name,omitempty"`
	Mappers      []string `json:"mappers"`
	Difficulty   string   `json:"difficulty"`
	StarRating   float64  `json:"star_rating"`
	OnlineStatus string   `json:"online_status"`
	NoteCount    int      `json:"note_count"`
	DurationMs   int      `json:"duration_ms"`
	HasAudio     bool     `json:"has_audio"`
	HasCover     bool     `json:"has_cover"`
	Unavailable  bool     `json:"unavailable,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func toMapDTO(r *models.MapRecord) MapDTO {
	return MapDTO{
		ID:           r.ID,
		Title:        r.Title,
		SongName:     r.SongName,
		Mappers:      r.Mappers,
		Difficulty:   r.Difficulty.String(),
		StarRating:   r.StarRating,
		OnlineStatus: string(r.OnlineStatus),
		NoteCount:    r.NoteCount,
		DurationMs:   r.Duration,
		HasAudio:     r.HasAudio,
		HasCover:     r.HasCover,
	}
}

// unavailableMapDTO is the placeholder row for a record that cannot be read
func unavailableMapDTO(id string, err error) MapDTO {
	return MapDTO{
		ID:           id,
		Mappers:      []string{},
		Difficulty:   models.DifficultyNA.String(),
		OnlineStatus: string(models.StatusUnranked),
		Unavailable:  true,
		Error:        err.Error(),
	}
}

// ListMapsResponse is the response for GET /api/maps
type ListMapsResponse struct {
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	Maps   []MapDTO `json:"maps"`
}

// IngestResponse is the response for POST /api/maps
type IngestResponse struct {
	Message string `json:"message"`
	Map     MapDTO `json:"map"`
}

// SearchResponse is the response for GET /api/search
type SearchResponse struct {
	Query string   `json:"query"`
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// VisibleRequest is the request body for POST /api/visible
type VisibleRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// StateResponse reports where an id sits in both loader queues
type StateResponse struct {
	ID            string `json:"id"`
	Record        string `json:"record"`
	RecordError   string `json:"record_error,omitempty"`
	Cover         string `json:"cover"`
	CoverError    string `json:"cover_error,omitempty"`
	CoverURL      string `json:"cover_url,omitempty"`
	CoverFormat   string `json:"cover_format,omitempty"`
	CoverWidth    int    `json:"cover_width,omitempty"`
	CoverHeight   int    `json:"cover_height,omitempty"`
	RecordRetries int    `json:"record_retries"`
}

// ImportResponse is the response for POST /api/catalog/import
type ImportResponse struct {
	Imported []string          `json:"imported"`
	Failed   map[string]string `json:"failed"`
}
