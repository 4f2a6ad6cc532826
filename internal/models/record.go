package models

import "time"

// Record is one showtime entry found on a film page. The crawler fills the
// raw fields; pipeline stages fill the parsed and resolved ones.
type Record struct {
	SourceURL string

	// Raw film fields
	FilmName     *string
	Description  *string
	CoverURL     *string
	ImdbRateText *string
	KpRateText   *string
	DurationText *string
	Country      *string
	Year         *string
	Director     *string
	GenreNames   []string

	// Raw showtime fields
	Date          *string
	Cinema        *string
	BeginningText *string

	// Parsed by the normalization stages
	Duration    *int
	ImdbRate    *float64
	KpRate      *float64
	BeginningAt *time.Time
	FinishingAt *time.Time

	// Resolved by the persistence stages
	Genres   []Genre
	Film     *Film
	Showtime *Showtime
}

// Clone returns a copy of r whose slices are not shared with r.
func (r *Record) Clone() *Record {
	c := *r
	c.GenreNames = append([]string(nil), r.GenreNames...)
	c.Genres = append([]Genre(nil), r.Genres...)
	return &c
}

// Name returns the film name or an empty string
func (r *Record) Name() string {
	if r.FilmName == nil {
		return ""
	}
	return *r.FilmName
}
