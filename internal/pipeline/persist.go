package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"sjsage522/cinemagoworker/internal/models"
	"sjsage522/cinemagoworker/logger"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
	"sjsage522/cinemagoworker/services/storage"
)

var validate = validator.New()

// GenreStage resolves the record's genre names to stored genres, creating
// the missing ones. Each new genre is committed before the next name is
// looked up.
type GenreStage struct {
	store storage.Store
	log   *logger.Logger
}

// NewGenreStage creates the stage
func NewGenreStage(store storage.Store) *GenreStage {
	return &GenreStage{store: store, log: logger.ForPipeline(StageGenre)}
}

// Name implements Stage
func (s *GenreStage) Name() string { return StageGenre }

// Process implements Stage
func (s *GenreStage) Process(ctx context.Context, record *models.Record, report *Report) (*models.Record, error) {
	// the film stage drops a nameless record; its genres are not stored
	if record.FilmName == nil || strings.TrimSpace(*record.FilmName) == "" {
		return record, nil
	}

	seen := make(map[int64]bool)
	genres := make([]models.Genre, 0, len(record.GenreNames))

	for _, name := range record.GenreNames {
		if strings.TrimSpace(name) == "" {
			continue
		}

		var genre *models.Genre
		created := false
		err := s.store.Session(ctx, func(tx storage.Session) error {
			found, err := tx.FindGenreByName(ctx, name)
			if err != nil {
				return err
			}
			if found != nil {
				genre = found
				return nil
			}

			genre = &models.Genre{Name: name}
			created = true
			return tx.CreateGenre(ctx, genre)
		})
		if err != nil {
			return nil, err
		}

		if created {
			report.GenresCreated++
			s.log.Info().Str("genre", name).Int64("id", genre.ID).Msg("Genre created")
		}
		if !seen[genre.ID] {
			seen[genre.ID] = true
			genres = append(genres, *genre)
		}
	}

	record.Genres = genres
	return record, nil
}

// FilmStage resolves the record's film by name. An existing film is reused
// as stored; otherwise the film is created from the record with its genres.
type FilmStage struct {
	store storage.Store
	log   *logger.Logger
}

// NewFilmStage creates the stage
func NewFilmStage(store storage.Store) *FilmStage {
	return &FilmStage{store: store, log: logger.ForPipeline(StageFilm)}
}

// Name implements Stage
func (s *FilmStage) Name() string { return StageFilm }

// Process implements Stage. Records without a film name are dropped.
func (s *FilmStage) Process(ctx context.Context, record *models.Record, report *Report) (*models.Record, error) {
	if record.FilmName == nil || *record.FilmName == "" {
		return nil, apperrors.NewDrop(StageFilm, "missing film name")
	}

	film, err := s.find(ctx, *record.FilmName)
	if err != nil {
		return nil, err
	}
	if film != nil {
		record.Film = film
		return record, nil
	}

	film = s.build(record, report)
	if err := validate.Struct(film); err != nil {
		return nil, apperrors.NewValidation(StageFilm, fmt.Sprintf("film %q: %v", film.Name, err))
	}

	err = s.store.Session(ctx, func(tx storage.Session) error {
		return tx.CreateFilm(ctx, film)
	})
	if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
		// created by someone else since the lookup
		film, err = s.find(ctx, *record.FilmName)
		if err == nil && film == nil {
			err = apperrors.NewStorage(StageFilm, "film vanished after conflict: "+*record.FilmName, nil)
		}
		if err != nil {
			return nil, err
		}
		record.Film = film
		return record, nil
	}
	if err != nil {
		return nil, err
	}

	report.FilmsCreated++
	s.log.Info().
		Str("film", film.Name).
		Int64("id", film.ID).
		Int("genres", len(film.Genres)).
		Msg("Film created")

	record.Film = film
	return record, nil
}

// find looks the film up with its genres; nil when it does not exist
func (s *FilmStage) find(ctx context.Context, name string) (*models.Film, error) {
	var film *models.Film
	err := s.store.Session(ctx, func(tx storage.Session) error {
		found, err := tx.FindFilmByName(ctx, name)
		if err != nil || found == nil {
			return err
		}
		found.Genres, err = tx.FindGenresByFilmID(ctx, found.ID)
		if err != nil {
			return err
		}
		film = found
		return nil
	})
	return film, err
}

func (s *FilmStage) build(record *models.Record, report *Report) *models.Film {
	film := &models.Film{
		Name:        *record.FilmName,
		Description: record.Description,
		CoverURL:    record.CoverURL,
		KpRate:      record.KpRate,
		ImdbRate:    record.ImdbRate,
		Duration:    record.Duration,
		Country:     record.Country,
		Genres:      record.Genres,
	}

	if record.Year != nil {
		text := strings.TrimSpace(*record.Year)
		if year, err := strconv.Atoi(text); err == nil {
			film.Year = &year
		} else if text != "" {
			report.note(StageFilm, record, "unparsable year: "+*record.Year)
		}
	}
	return film
}

// ShowtimeStage stores the showtime of a record. A showtime identical to a
// stored one is reported as a conflict and not written again.
type ShowtimeStage struct {
	store storage.Store
	log   *logger.Logger
}

// NewShowtimeStage creates the stage
func NewShowtimeStage(store storage.Store) *ShowtimeStage {
	return &ShowtimeStage{store: store, log: logger.ForPipeline(StageShowtime)}
}

// Name implements Stage
func (s *ShowtimeStage) Name() string { return StageShowtime }

// Process implements Stage
func (s *ShowtimeStage) Process(ctx context.Context, record *models.Record, _ *Report) (*models.Record, error) {
	if record.Film == nil || record.BeginningAt == nil || record.FinishingAt == nil {
		return nil, apperrors.NewDrop(StageShowtime, "missing film or timestamps")
	}

	showtime := &models.Showtime{
		BeginningAt: *record.BeginningAt,
		FinishingAt: *record.FinishingAt,
		FilmID:      record.Film.ID,
		Cinema:      record.Cinema,
	}

	err := s.store.Session(ctx, func(tx storage.Session) error {
		exists, err := tx.ShowtimeExists(ctx, showtime)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.NewConflict(StageShowtime, "showtime already stored", nil)
		}
		return tx.CreateShowtime(ctx, showtime)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("film", record.Film.Name).
		Time("beginning_at", showtime.BeginningAt).
		Int64("id", showtime.ID).
		Msg("Showtime created")

	record.Showtime = showtime
	return record, nil
}
