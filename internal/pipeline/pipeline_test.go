package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/cinemagoworker/helpers"
	"sjsage522/cinemagoworker/internal/models"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
	"sjsage522/cinemagoworker/services/storage"
)

func TestStandardStageOrder(t *testing.T) {
	p := Standard(newTestStore(t), time.UTC, fixedClock)
	assert.Equal(t, []string{
		StageDateTime, StageRates, StageWhitespace,
		StageGenre, StageFilm, StageShowtime,
	}, p.Stages())
}

func TestRunStoresRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := Standard(store, time.UTC, fixedClock)
	report := NewReport()

	out, err := p.Run(ctx, newRecord(), report)
	require.NoError(t, err)
	require.NotNil(t, out.Showtime)

	begin := time.Date(2026, time.March, 15, 19, 30, 0, 0, time.UTC)
	assert.Equal(t, begin, out.Showtime.BeginningAt)
	assert.Equal(t, begin.Add(96*time.Minute), out.Showtime.FinishingAt)
	assert.Equal(t, 8.1, *out.Film.ImdbRate)
	assert.Equal(t, 7.5, *out.Film.KpRate)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 1, report.FilmsCreated)
	assert.Equal(t, 2, report.GenresCreated)
}

func TestRunIsIdempotentForGenresAndFilms(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := Standard(store, time.UTC, fixedClock)
	report := NewReport()

	for i := 0; i < 2; i++ {
		for _, clock := range []string{"19:30", "22:00"} {
			record := newRecord()
			record.BeginningText = helpers.StringPtr(clock)
			_, err := p.Run(ctx, record, report)
			if err != nil {
				assert.True(t, IsSkippable(err), err.Error())
			}
		}
	}

	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 2, report.Duplicates)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Films)
	assert.Equal(t, int64(2), stats.Genres)
	assert.Equal(t, int64(2), stats.FilmGenre)
	assert.Equal(t, int64(2), stats.Showtimes)
}

func TestRunDropsIncompleteRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := Standard(store, time.UTC, fixedClock)
	report := NewReport()

	record := newRecord()
	record.BeginningText = nil

	out, err := p.Run(ctx, record, report)
	assert.Nil(t, out)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDrop))
	assert.True(t, IsSkippable(err))
	assert.Equal(t, 1, report.Dropped[StageDateTime])
	assert.Equal(t, 1, report.TotalDropped())
	assert.Equal(t, 0, report.Stored)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "http://afisha.tut.by/film/dune/", report.Diagnostics[0].SourceURL)

	// nothing reached storage
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Genres)
	assert.Zero(t, stats.Films)
	assert.Zero(t, stats.Showtimes)
}

func TestRunBlankFilmNameStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := Standard(store, time.UTC, fixedClock)
	report := NewReport()

	record := newRecord()
	record.FilmName = helpers.StringPtr("   ")

	_, err := p.Run(ctx, record, report)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDrop))
	assert.Equal(t, 1, report.Dropped[StageFilm])
	assert.Zero(t, report.GenresCreated)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.TableStats{}, stats)
}

func TestRunStopsOnStorageFailure(t *testing.T) {
	p := Standard(brokenStore{}, time.UTC, fixedClock)
	report := NewReport()

	_, err := p.Run(context.Background(), newRecord(), report)
	require.Error(t, err)
	assert.False(t, IsSkippable(err))
	assert.Equal(t, 1, report.Failed)
}

// stageFunc adapts a function to Stage
type stageFunc struct {
	name string
	fn   func(*models.Record) (*models.Record, error)
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Process(_ context.Context, record *models.Record, _ *Report) (*models.Record, error) {
	return s.fn(record)
}

func TestRunStopsAtFirstFailingStage(t *testing.T) {
	var calls []string
	stage := func(name string, err error) Stage {
		return stageFunc{name: name, fn: func(r *models.Record) (*models.Record, error) {
			calls = append(calls, name)
			if err != nil {
				return nil, err
			}
			return r, nil
		}}
	}

	p := New(
		stage("a", nil),
		stage("b", apperrors.NewDrop("b", "nope")),
		stage("c", nil),
	)
	report := &Report{}

	_, err := p.Run(context.Background(), newRecord(), report)
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 1, report.Dropped["b"])
}

func TestNewReport(t *testing.T) {
	report := NewReport()
	_, err := uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.False(t, report.StartedAt.IsZero())
	assert.True(t, report.FinishedAt.IsZero())

	report.Finish()
	assert.False(t, report.FinishedAt.IsZero())
	assert.NotEqual(t, NewReport().RunID, report.RunID)
}
