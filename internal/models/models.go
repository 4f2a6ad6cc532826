// Package models holds the rows written by the ingestion pipeline and the
// record that flows through it.
package models

import "time"

// Genre is a film genre; Name is its natural key.
type Genre struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Film is a film listing; Name is its natural key.
type Film struct {
	ID          int64    `db:"id"`
	Name        string   `db:"name" validate:"required"`
	Description *string  `db:"description"`
	CoverURL    *string  `db:"cover_url"`
	KpRate      *float64 `db:"kp_rate" validate:"omitempty,gte=0,lte=10"`
	ImdbRate    *float64 `db:"imdb_rate" validate:"omitempty,gte=0,lte=10"`
	Duration    *int     `db:"duration" validate:"omitempty,gte=0"`
	Country     *string  `db:"country"`
	Year        *int     `db:"year"`
	Genres      []Genre  `db:"-"`
}

// Showtime is one screening of a film at a cinema. The tuple
// (BeginningAt, FinishingAt, FilmID, Cinema) is unique.
type Showtime struct {
	ID          int64     `db:"id"`
	BeginningAt time.Time `db:"beginning_at"`
	FinishingAt time.Time `db:"finishing_at"`
	FilmID      int64     `db:"film_id"`
	Cinema      *string   `db:"cinema"`
}
