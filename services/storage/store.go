package storage

import (
	"context"

	"sjsage522/cinemagoworker/internal/models"
)

// Store hands out short-lived sessions against the listings database
type Store interface {
	// Session opens a transaction, runs fn inside it and commits when fn
	// returns nil. Any error from fn rolls the transaction back.
	Session(ctx context.Context, fn func(Session) error) error

	// EnsureSchema creates the films, genres, film_genre and seanses tables
	// when they do not exist yet.
	EnsureSchema(ctx context.Context) error

	// Stats counts the rows of every listings table
	Stats(ctx context.Context) (TableStats, error)

	// Close releases the underlying connections
	Close() error
}

// TableStats holds row counts per table
type TableStats struct {
	Films     int64 `json:"films"`
	Genres    int64 `json:"genres"`
	FilmGenre int64 `json:"film_genre"`
	Showtimes int64 `json:"seanses"`
}

// Session is the set of operations available inside one transaction
type Session interface {
	// FindGenreByName returns nil, nil when no genre has that name
	FindGenreByName(ctx context.Context, name string) (*models.Genre, error)
	CreateGenre(ctx context.Context, genre *models.Genre) error

	// FindFilmByName returns nil, nil when no film has that name
	FindFilmByName(ctx context.Context, name string) (*models.Film, error)
	// CreateFilm inserts the film and one film_genre row per film.Genres entry
	CreateFilm(ctx context.Context, film *models.Film) error
	FindGenresByFilmID(ctx context.Context, filmID int64) ([]models.Genre, error)

	ShowtimeExists(ctx context.Context, showtime *models.Showtime) (bool, error)
	// CreateShowtime returns a conflict error when the natural key is taken
	CreateShowtime(ctx context.Context, showtime *models.Showtime) error
}
