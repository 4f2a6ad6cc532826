package worker

import (
	"context"
	"time"

	"sjsage522/cinemagoworker/internal/crawler"
	"sjsage522/cinemagoworker/internal/models"
	"sjsage522/cinemagoworker/internal/pipeline"
	"sjsage522/cinemagoworker/logger"
	"sjsage522/cinemagoworker/services/publisher"
	"sjsage522/cinemagoworker/services/storage"
)

// Worker handles one crawl of the listing site: every record the crawler
// finds is run through the pipeline, and stored showtimes are published.
type Worker struct {
	crawler   crawler.Crawler
	pipeline  *pipeline.Pipeline
	store     storage.Store
	publisher publisher.Publisher
	log       *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(
	c crawler.Crawler,
	p *pipeline.Pipeline,
	store storage.Store,
	pub publisher.Publisher,
) *Worker {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	return &Worker{
		crawler:   c,
		pipeline:  p,
		store:     store,
		publisher: pub,
		log:       logger.ForWorker(),
	}
}

// Run performs one crawl. Records reach the pipeline one at a time, each
// fully stored before the next starts. Record-level failures are counted in
// the report; a storage failure ends the run with an error.
//
// Cancelling ctx stops new page fetches. Records of pages already fetched
// are still stored.
func (w *Worker) Run(ctx context.Context) (*pipeline.Report, error) {
	report := pipeline.NewReport()
	log := w.log.WithFields(logger.Fields{
		"run_id":  report.RunID,
		"crawler": w.crawler.GetName(),
	})
	storeCtx := context.WithoutCancel(ctx)

	log.Info().
		Strs("stages", w.pipeline.Stages()).
		Msg("Run started")

	published := 0
	crawlStats, err := w.crawler.Crawl(ctx, func(record *models.Record) error {
		out, err := w.pipeline.Run(storeCtx, record, report)
		if err != nil {
			if pipeline.IsSkippable(err) {
				return nil
			}
			return err
		}

		if w.publish(storeCtx, report.RunID, out) {
			published++
		}
		return nil
	})
	report.Finish()

	// Trim all streams after crawling
	if trimErr := w.publisher.TrimStreams(storeCtx); trimErr != nil {
		log.Warn().Err(trimErr).Msg("Failed to trim streams")
	}

	if err != nil {
		log.Error().Err(err).
			Int("processed", report.Processed).
			Int("stored", report.Stored).
			Msg("Run failed")
		return report, err
	}

	if ctx.Err() != nil {
		log.Warn().Msg("Run interrupted, pages not yet requested were skipped")
	}

	event := log.Info().
		Int("pages", crawlStats.Pages).
		Int("pages_failed", crawlStats.PagesFailed).
		Int("pages_abandoned", crawlStats.PagesAbandoned).
		Int("processed", report.Processed).
		Int("stored", report.Stored).
		Int("dropped", report.TotalDropped()).
		Int("duplicates", report.Duplicates).
		Int("invalid", report.Invalid).
		Int("genres_created", report.GenresCreated).
		Int("films_created", report.FilmsCreated).
		Int("published", published).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt))

	if stats, statsErr := w.store.Stats(storeCtx); statsErr == nil {
		event = event.Interface("tables", stats)
	} else {
		log.Warn().Err(statsErr).Msg("Failed to read table stats")
	}
	event.Msg("Run finished")

	return report, nil
}

// publish sends the event of a stored record; failures are logged only
func (w *Worker) publish(ctx context.Context, runID string, record *models.Record) bool {
	event, ok := publisher.NewShowtimeEvent(runID, record)
	if !ok {
		return false
	}

	data, err := event.Marshal()
	if err != nil {
		w.log.Error().Err(err).Str("film", record.Name()).Msg("Failed to encode showtime event")
		return false
	}

	if err := w.publisher.Publish(ctx, publisher.ShowtimeKey, data); err != nil {
		w.log.Warn().Err(err).Str("film", record.Name()).Msg("Failed to publish showtime event")
		return false
	}

	if logger.IsDebugEnabled() {
		w.log.Debug().
			Str("film", event.FilmName).
			Str("cinema", event.Cinema).
			Str("beginning_at", event.BeginningAt.Format(time.RFC3339)).
			Msg("Showtime published")
	}
	return true
}
