package publisher

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"sjsage522/cinemagoworker/internal/models"
)

// ShowtimeKey is the message key of stored showtime events
const ShowtimeKey = "b64_seanses"

// ShowtimeEvent announces a newly stored showtime
type ShowtimeEvent struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	ShowtimeID  int64     `json:"showtime_id"`
	FilmID      int64     `json:"film_id"`
	FilmName    string    `json:"film_name"`
	Genres      []string  `json:"genres"`
	Cinema      string    `json:"cinema,omitempty"`
	BeginningAt time.Time `json:"beginning_at"`
	FinishingAt time.Time `json:"finishing_at"`
	SourceURL   string    `json:"source_url"`
	StoredAt    time.Time `json:"stored_at"`
}

// NewShowtimeEvent builds the event of a record that went through the whole
// pipeline. ok is false when the record has no stored showtime.
func NewShowtimeEvent(runID string, record *models.Record) (ShowtimeEvent, bool) {
	if record == nil || record.Film == nil || record.Showtime == nil {
		return ShowtimeEvent{}, false
	}

	genres := make([]string, 0, len(record.Film.Genres))
	for _, g := range record.Film.Genres {
		genres = append(genres, g.Name)
	}

	event := ShowtimeEvent{
		ID:          uuid.NewString(),
		RunID:       runID,
		ShowtimeID:  record.Showtime.ID,
		FilmID:      record.Film.ID,
		FilmName:    record.Film.Name,
		Genres:      genres,
		BeginningAt: record.Showtime.BeginningAt,
		FinishingAt: record.Showtime.FinishingAt,
		SourceURL:   record.SourceURL,
		StoredAt:    time.Now().UTC(),
	}
	if record.Showtime.Cinema != nil {
		event.Cinema = *record.Showtime.Cinema
	}
	return event, true
}

// Marshal encodes the event as JSON
func (e ShowtimeEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
