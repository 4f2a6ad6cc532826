// Package pipeline turns raw listing records into stored films, genres and
// showtimes. Stages run in order on one record at a time; a stage either
// passes the record on or stops it with a typed error.
package pipeline

import (
	"context"
	"time"

	"sjsage522/cinemagoworker/internal/models"
	"sjsage522/cinemagoworker/logger"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
	"sjsage522/cinemagoworker/services/storage"
)

// Stage is one step of the pipeline
type Stage interface {
	// Name identifies the stage in logs and reports
	Name() string

	// Process transforms record or stops it by returning an error
	Process(ctx context.Context, record *models.Record, report *Report) (*models.Record, error)
}

// Pipeline runs records through an ordered list of stages
type Pipeline struct {
	stages []Stage
	log    *logger.Logger
}

// New creates a pipeline running stages in the given order
func New(stages ...Stage) *Pipeline {
	return &Pipeline{
		stages: stages,
		log:    logger.ForPipeline("pipeline"),
	}
}

// Standard builds the listing pipeline: date/time, rates and whitespace
// normalization followed by genre, film and showtime persistence. now may be
// nil to use the wall clock.
func Standard(store storage.Store, loc *time.Location, now func() time.Time) *Pipeline {
	return New(
		NewDateTimeStage(loc, now),
		NewRatesStage(),
		NewWhitespaceStage(),
		NewGenreStage(store),
		NewFilmStage(store),
		NewShowtimeStage(store),
	)
}

// Stages returns the stage names in order
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run passes record through every stage. The report is updated with the
// outcome. Use IsSkippable to tell record-level failures from failures that
// should end the run.
func (p *Pipeline) Run(ctx context.Context, record *models.Record, report *Report) (*models.Record, error) {
	report.Processed++

	current := record
	for _, stage := range p.stages {
		next, err := stage.Process(ctx, current, report)
		if err != nil {
			p.fail(stage.Name(), current, report, err)
			return nil, err
		}
		current = next
	}

	report.Stored++
	return current, nil
}

func (p *Pipeline) fail(stage string, record *models.Record, report *Report, err error) {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeDrop):
		if report.Dropped == nil {
			report.Dropped = make(map[string]int)
		}
		report.Dropped[stage]++
		p.log.Debug().Str("stage", stage).Str("film", record.Name()).Err(err).Msg("Record dropped")
	case apperrors.IsType(err, apperrors.ErrorTypeConflict):
		report.Duplicates++
		p.log.Info().Str("stage", stage).Str("film", record.Name()).Err(err).Msg("Duplicate record skipped")
	case apperrors.IsType(err, apperrors.ErrorTypeValidation):
		report.Invalid++
		p.log.Warn().Str("stage", stage).Str("film", record.Name()).Err(err).Msg("Invalid record skipped")
	default:
		report.Failed++
		p.log.Error().Str("stage", stage).Str("film", record.Name()).Err(err).Msg("Record failed")
	}
	report.note(stage, record, err.Error())
}

// IsSkippable reports whether err only concerns the record it was raised
// for, so the run can go on with the next one.
func IsSkippable(err error) bool {
	return apperrors.IsType(err, apperrors.ErrorTypeDrop) ||
		apperrors.IsType(err, apperrors.ErrorTypeConflict) ||
		apperrors.IsType(err, apperrors.ErrorTypeValidation)
}
