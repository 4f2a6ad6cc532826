package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sjsage522/cinemagoworker/internal/models"
	"sjsage522/cinemagoworker/logger"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
)

// Options tunes the connection pool and session retry
type Options struct {
	MaxConns      int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// SQLStore implements Store on database/sql
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	retry   retryPolicy
	log     *logger.Logger
}

// Open connects to the database named by uri and verifies the connection.
func Open(ctx context.Context, uri string, opts Options) (*SQLStore, error) {
	d, err := parseDatabaseURI(uri)
	if err != nil {
		return nil, apperrors.NewConfiguration("invalid DATABASE_URI", err)
	}

	db, err := sql.Open(d.driver, d.dsn)
	if err != nil {
		return nil, apperrors.NewStorage(d.name, "open database", err)
	}

	// Pool settings
	maxConns := opts.MaxConns
	if d.name == "sqlite" || maxConns < 1 {
		// every sqlite connection to :memory: is a separate database
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLStore{
		db:      db,
		dialect: d,
		retry:   newRetryPolicy(opts.RetryAttempts, opts.RetryBackoff),
		log:     logger.ForStorage().WithField("dialect", d.name),
	}

	// Ping with timeout
	err = s.retry.do(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, apperrors.NewStorage(d.name, "ping database failed", err)
	}

	return s, nil
}

// Dialect returns the name of the SQL dialect in use
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// EnsureSchema implements Store
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.log.Error().Err(err).Msg("Failed to apply schema")
			return apperrors.NewStorage(s.dialect.name, "apply schema", err)
		}
	}
	return nil
}

// Session implements Store
func (s *SQLStore) Session(ctx context.Context, fn func(Session) error) (err error) {
	var tx *sql.Tx
	err = s.retry.do(ctx, func() error {
		var beginErr error
		tx, beginErr = s.db.BeginTx(ctx, nil)
		return beginErr
	})
	if err != nil {
		return apperrors.NewStorage(s.dialect.name, "begin session", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Warn().Err(rbErr).Msg("Failed to roll back session")
			}
		}
	}()

	if err = fn(&sqlSession{tx: tx, dialect: s.dialect, log: s.log}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		if s.dialect.isUniqueViolation(err) {
			return apperrors.NewConflict(s.dialect.name, "commit session", err)
		}
		return apperrors.NewStorage(s.dialect.name, "commit session", err)
	}
	return nil
}

// Stats implements Store
func (s *SQLStore) Stats(ctx context.Context) (TableStats, error) {
	var stats TableStats
	counts := []struct {
		table string
		dest  *int64
	}{
		{"films", &stats.Films},
		{"genres", &stats.Genres},
		{"film_genre", &stats.FilmGenre},
		{"seanses", &stats.Showtimes},
	}

	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return TableStats{}, apperrors.NewStorage(s.dialect.name, "count "+c.table, err)
		}
	}
	return stats, nil
}

// Close implements Store
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlSession struct {
	tx      *sql.Tx
	dialect dialect
	log     *logger.Logger
}

func (s *sqlSession) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *sqlSession) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, s.dialect.rebind(query), args...)
}

// insert runs an INSERT and returns the generated id
func (s *sqlSession) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect.returningID {
		var id int64
		err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqlSession) FindGenreByName(ctx context.Context, name string) (*models.Genre, error) {
	query := `SELECT id, name FROM genres WHERE name = ? ORDER BY id LIMIT 1`

	var genre models.Genre
	err := s.queryRow(ctx, query, name).Scan(&genre.ID, &genre.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("genre", name).Msg("Failed to find genre by name")
		return nil, apperrors.NewStorage(s.dialect.name, "find genre by name", err)
	}

	return &genre, nil
}

func (s *sqlSession) CreateGenre(ctx context.Context, genre *models.Genre) error {
	query := `INSERT INTO genres (name) VALUES (?)`

	id, err := s.insert(ctx, query, genre.Name)
	if err != nil {
		s.log.Error().Err(err).Str("genre", genre.Name).Msg("Failed to create genre")
		return apperrors.NewStorage(s.dialect.name, "create genre", err)
	}

	genre.ID = id
	return nil
}

func (s *sqlSession) FindFilmByName(ctx context.Context, name string) (*models.Film, error) {
	query := `
		SELECT id, name, description, cover_url, kp_rate, imdb_rate,
		       duration, country, year
		FROM films
		WHERE name = ?
	`

	var (
		film                        models.Film
		description, cover, country sql.NullString
		kpRate, imdbRate            sql.NullFloat64
		duration, year              sql.NullInt64
	)
	err := s.queryRow(ctx, query, name).Scan(
		&film.ID,
		&film.Name,
		&description,
		&cover,
		&kpRate,
		&imdbRate,
		&duration,
		&country,
		&year,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("film", name).Msg("Failed to find film by name")
		return nil, apperrors.NewStorage(s.dialect.name, "find film by name", err)
	}

	film.Description = nullString(description)
	film.CoverURL = nullString(cover)
	film.Country = nullString(country)
	film.KpRate = nullFloat(kpRate)
	film.ImdbRate = nullFloat(imdbRate)
	film.Duration = nullInt(duration)
	film.Year = nullInt(year)
	return &film, nil
}

func (s *sqlSession) CreateFilm(ctx context.Context, film *models.Film) error {
	query := `
		INSERT INTO films (name, description, cover_url, kp_rate, imdb_rate,
		                   duration, country, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := s.insert(ctx, query,
		film.Name,
		film.Description,
		film.CoverURL,
		film.KpRate,
		film.ImdbRate,
		film.Duration,
		film.Country,
		film.Year,
	)
	if err != nil {
		s.log.Error().Err(err).Str("film", film.Name).Msg("Failed to create film")
		if s.dialect.isUniqueViolation(err) {
			return apperrors.NewConflict(s.dialect.name, "film "+film.Name+" already exists", err)
		}
		return apperrors.NewStorage(s.dialect.name, "create film", err)
	}
	film.ID = id

	for _, genre := range film.Genres {
		_, err := s.exec(ctx, `INSERT INTO film_genre (film_id, genre_id) VALUES (?, ?)`, film.ID, genre.ID)
		if err != nil {
			s.log.Error().Err(err).
				Int64("film_id", film.ID).
				Int64("genre_id", genre.ID).
				Msg("Failed to link film to genre")
			return apperrors.NewStorage(s.dialect.name, "link film genre", err)
		}
	}

	return nil
}

func (s *sqlSession) FindGenresByFilmID(ctx context.Context, filmID int64) ([]models.Genre, error) {
	query := `
		SELECT g.id, g.name
		FROM genres g
		INNER JOIN film_genre fg ON g.id = fg.genre_id
		WHERE fg.film_id = ?
		ORDER BY g.id
	`

	rows, err := s.tx.QueryContext(ctx, s.dialect.rebind(query), filmID)
	if err != nil {
		s.log.Error().Err(err).Int64("film_id", filmID).Msg("Failed to find genres by film ID")
		return nil, apperrors.NewStorage(s.dialect.name, "find genres by film id", err)
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var genre models.Genre
		if err := rows.Scan(&genre.ID, &genre.Name); err != nil {
			return nil, apperrors.NewStorage(s.dialect.name, "scan genre row", err)
		}
		genres = append(genres, genre)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorage(s.dialect.name, "iterate genre rows", err)
	}

	return genres, nil
}

func (s *sqlSession) ShowtimeExists(ctx context.Context, showtime *models.Showtime) (bool, error) {
	query := `
		SELECT COUNT(*) FROM seanses
		WHERE beginning_at = ? AND finishing_at = ? AND film_id = ? AND cinema = ?`
	args := []any{showtime.BeginningAt, showtime.FinishingAt, showtime.FilmID, showtime.Cinema}
	if showtime.Cinema == nil {
		query = `
		SELECT COUNT(*) FROM seanses
		WHERE beginning_at = ? AND finishing_at = ? AND film_id = ? AND cinema IS NULL`
		args = args[:3]
	}

	var count int64
	if err := s.queryRow(ctx, query, args...).Scan(&count); err != nil {
		s.log.Error().Err(err).Int64("film_id", showtime.FilmID).Msg("Failed to look up showtime")
		return false, apperrors.NewStorage(s.dialect.name, "find showtime", err)
	}
	return count > 0, nil
}

func (s *sqlSession) CreateShowtime(ctx context.Context, showtime *models.Showtime) error {
	query := `
		INSERT INTO seanses (beginning_at, finishing_at, film_id, cinema)
		VALUES (?, ?, ?, ?)`

	id, err := s.insert(ctx, query,
		showtime.BeginningAt,
		showtime.FinishingAt,
		showtime.FilmID,
		showtime.Cinema,
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return apperrors.NewConflict(s.dialect.name,
				fmt.Sprintf("showtime of film %d at %s already exists", showtime.FilmID, showtime.BeginningAt.Format(time.RFC3339)), err)
		}
		s.log.Error().Err(err).Int64("film_id", showtime.FilmID).Msg("Failed to create showtime")
		return apperrors.NewStorage(s.dialect.name, "create showtime", err)
	}

	showtime.ID = id
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
