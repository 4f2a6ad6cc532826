package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/cinemagoworker/helpers"
	"sjsage522/cinemagoworker/internal/models"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
	"sjsage522/cinemagoworker/services/storage"
)

func newTestStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, "sqlite://:memory:", storage.Options{RetryAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

// normalized runs the normalization stages on a fresh record
func normalized(t *testing.T) *models.Record {
	t.Helper()
	ctx := context.Background()

	record := newRecord()
	var err error
	for _, stage := range []Stage{NewDateTimeStage(time.UTC, fixedClock), NewRatesStage(), NewWhitespaceStage()} {
		record, err = stage.Process(ctx, record, NewReport())
		require.NoError(t, err)
	}
	return record
}

func TestGenreStageFindOrCreate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	stage := NewGenreStage(store)
	report := NewReport()

	record := normalized(t)
	record.GenreNames = []string{"драма", "", "комедия", "драма"}

	out, err := stage.Process(ctx, record, report)
	require.NoError(t, err)
	require.Len(t, out.Genres, 2)
	assert.Equal(t, "драма", out.Genres[0].Name)
	assert.Equal(t, "комедия", out.Genres[1].Name)
	assert.Equal(t, 2, report.GenresCreated)

	// a second record reuses the stored genres
	again, err := stage.Process(ctx, normalized(t), report)
	require.NoError(t, err)
	assert.Equal(t, 3, report.GenresCreated)
	assert.Equal(t, out.Genres[0].ID, again.Genres[1].ID)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Genres)
}

func TestGenreStageWithoutGenres(t *testing.T) {
	stage := NewGenreStage(newTestStore(t))
	record := normalized(t)
	record.GenreNames = nil

	out, err := stage.Process(context.Background(), record, NewReport())
	require.NoError(t, err)
	assert.Empty(t, out.Genres)
}

func TestGenreStageSkipsNamelessRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	report := NewReport()

	record := normalized(t)
	record.FilmName = helpers.StringPtr("")

	out, err := NewGenreStage(store).Process(ctx, record, report)
	require.NoError(t, err)
	assert.Empty(t, out.Genres)
	assert.Zero(t, report.GenresCreated)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Genres)
}

func TestFilmStageCreatesOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	genres := NewGenreStage(store)
	films := NewFilmStage(store)
	report := NewReport()

	record, err := genres.Process(ctx, normalized(t), report)
	require.NoError(t, err)
	record, err = films.Process(ctx, record, report)
	require.NoError(t, err)

	film := record.Film
	require.NotNil(t, film)
	assert.NotZero(t, film.ID)
	assert.Equal(t, "Дюна", film.Name)
	assert.Equal(t, 2021, *film.Year)
	assert.Equal(t, 96, *film.Duration)
	assert.Equal(t, 1, report.FilmsCreated)

	// later records keep the first stored data
	second := normalized(t)
	second.Description = helpers.StringPtr("другое описание")
	second.GenreNames = []string{"боевик"}
	second, err = genres.Process(ctx, second, report)
	require.NoError(t, err)
	second, err = films.Process(ctx, second, report)
	require.NoError(t, err)

	assert.Equal(t, film.ID, second.Film.ID)
	assert.Equal(t, "<div class=\"post\">Пустыня</div>", *second.Film.Description)
	require.Len(t, second.Film.Genres, 2)
	assert.Equal(t, "фантастика", second.Film.Genres[0].Name)
	assert.Equal(t, 1, report.FilmsCreated)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Films)
	assert.Equal(t, int64(2), stats.FilmGenre)
}

func TestFilmStageDropsNamelessRecord(t *testing.T) {
	stage := NewFilmStage(newTestStore(t))
	record := normalized(t)
	record.FilmName = helpers.StringPtr("")

	_, err := stage.Process(context.Background(), record, NewReport())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDrop))
}

func TestFilmStageRejectsInvalidFilm(t *testing.T) {
	stage := NewFilmStage(newTestStore(t))
	record := normalized(t)
	rate := 75.0
	record.KpRate = &rate

	_, err := stage.Process(context.Background(), record, NewReport())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestFilmStageBlankYear(t *testing.T) {
	stage := NewFilmStage(newTestStore(t))
	report := NewReport()
	record := normalized(t)
	record.Year = helpers.StringPtr("  ")

	out, err := stage.Process(context.Background(), record, report)
	require.NoError(t, err)
	assert.Nil(t, out.Film.Year)
	assert.Empty(t, report.Diagnostics)
}

func TestShowtimeStage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	films := NewFilmStage(store)
	showtimes := NewShowtimeStage(store)

	record, err := films.Process(ctx, normalized(t), NewReport())
	require.NoError(t, err)

	out, err := showtimes.Process(ctx, record, NewReport())
	require.NoError(t, err)
	require.NotNil(t, out.Showtime)
	assert.NotZero(t, out.Showtime.ID)
	assert.Equal(t, record.Film.ID, out.Showtime.FilmID)
	assert.Equal(t, "Беларусь", *out.Showtime.Cinema)
	assert.Equal(t, out.Showtime.BeginningAt.Add(96*time.Minute), out.Showtime.FinishingAt)

	// the same showtime is not stored twice
	dup, err := films.Process(ctx, normalized(t), NewReport())
	require.NoError(t, err)
	_, err = showtimes.Process(ctx, dup, NewReport())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Showtimes)
	assert.Equal(t, int64(1), stats.Films)
}

func TestShowtimeStageNeedsFilm(t *testing.T) {
	stage := NewShowtimeStage(newTestStore(t))

	_, err := stage.Process(context.Background(), normalized(t), NewReport())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDrop))
}

// brokenStore fails every session as an unreachable database would
type brokenStore struct{}

func (brokenStore) Session(ctx context.Context, fn func(storage.Session) error) error {
	return apperrors.NewStorage("test", "begin session", errors.New("connection refused"))
}

func (brokenStore) EnsureSchema(ctx context.Context) error { return nil }

func (brokenStore) Stats(ctx context.Context) (storage.TableStats, error) {
	return storage.TableStats{}, nil
}

func (brokenStore) Close() error { return nil }

func TestPersistenceStorageFailure(t *testing.T) {
	ctx := context.Background()
	store := brokenStore{}

	_, err := NewGenreStage(store).Process(ctx, normalized(t), NewReport())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage))

	_, err = NewFilmStage(store).Process(ctx, normalized(t), NewReport())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage))
	assert.False(t, IsSkippable(err))
}
