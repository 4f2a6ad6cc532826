package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/cinemagoworker/config"
	"sjsage522/cinemagoworker/internal/crawler"
	"sjsage522/cinemagoworker/internal/models"
	"sjsage522/cinemagoworker/internal/pipeline"
	"sjsage522/cinemagoworker/services/cache"
	"sjsage522/cinemagoworker/services/publisher"
	"sjsage522/cinemagoworker/services/storage"
	"sjsage522/cinemagoworker/services/worker"
)

// newListingSite serves the crawler fixtures as a listing site
func newListingSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/film/":         "index.html",
		"/film/dune/":    "film_dune.html",
		"/film/nocover/": "film_nocover.html",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		body, err := os.ReadFile(filepath.Join("internal", "crawler", "testdata", name))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestIntegrationCrawlToStorage(t *testing.T) {
	ctx := context.Background()
	server := newListingSite(t)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	cfg := config.LoadConfig()
	cfg.DatabaseURI = "sqlite://:memory:"
	cfg.SiteURL = server.URL + "/film/"
	cfg.SiteAllowedHost = u.Host
	cfg.SiteTimezone = "UTC"
	cfg.FetchTimeout = 5 * time.Second
	cfg.SpiderConcurrency = 2
	cfg.Publisher = "none"
	require.NoError(t, cfg.Validate())

	store, err := storage.Open(ctx, cfg.DatabaseURI, storage.Options{RetryAttempts: 1})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	pub, err := publisher.New(&cfg)
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC) }
	w := worker.NewWorker(
		crawler.CreateCrawler(&cfg, cache.NewMemoryCache()),
		pipeline.Standard(store, time.UTC, now),
		store,
		pub,
	)

	report, err := w.Run(ctx)
	require.NoError(t, err)

	// Дюна has three timed slots and one slot without a time; the page
	// without a cover yields nothing
	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 3, report.Stored)
	assert.Equal(t, 1, report.Dropped[pipeline.StageDateTime])
	assert.Equal(t, 1, report.FilmsCreated)
	assert.Equal(t, 2, report.GenresCreated)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.TableStats{Films: 1, Genres: 2, FilmGenre: 2, Showtimes: 3}, stats)

	err = store.Session(ctx, func(s storage.Session) error {
		film, err := s.FindFilmByName(ctx, "Дюна")
		require.NoError(t, err)
		require.NotNil(t, film)
		assert.Equal(t, 8.1, *film.ImdbRate)
		assert.Equal(t, 7.5, *film.KpRate)
		assert.Equal(t, 96, *film.Duration)
		assert.Equal(t, "США", *film.Country)
		assert.Equal(t, 2021, *film.Year)

		begin := time.Date(2026, time.March, 15, 19, 30, 0, 0, time.UTC)
		cinema := "Беларусь"
		exists, err := s.ShowtimeExists(ctx, &models.Showtime{
			BeginningAt: begin,
			FinishingAt: begin.Add(96 * time.Minute),
			FilmID:      film.ID,
			Cinema:      &cinema,
		})
		require.NoError(t, err)
		assert.True(t, exists)
		return nil
	})
	require.NoError(t, err)

	// a second run over the unchanged site creates nothing new
	again, err := w.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Stored)
	assert.Equal(t, 3, again.Duplicates)
	assert.Equal(t, 0, again.FilmsCreated)
	assert.Equal(t, 0, again.GenresCreated)

	after, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats, after)
}
