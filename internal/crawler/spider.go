package crawler

import (
	"context"
	"sync"

	"sjsage522/cinemagoworker/internal/models"
	"sjsage522/cinemagoworker/logger"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
)

// Spider walks the listing site: the index page, then every film page it
// links to. Film pages are fetched concurrently; records are handed to the
// caller from a single goroutine.
type Spider struct {
	BaseCrawler
	allowedHost string
	concurrency int
	selectors   Selectors
	log         *logger.Logger
}

type pageResult struct {
	url     string
	records []*models.Record
	err     error
}

// NewSpider creates a spider from config
func NewSpider(cfg CrawlerConfig, base BaseCrawler) *Spider {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	base.URL = cfg.URL
	base.CacheKey = cfg.CacheKey
	base.Provider = cfg.Provider

	s := &Spider{
		BaseCrawler: base,
		allowedHost: cfg.AllowedHost,
		concurrency: concurrency,
		selectors:   cfg.Selectors,
	}
	s.log = logger.ForCrawler(s.GetName())
	return s
}

// Crawl implements Crawler. A failing index page fails the crawl; failing
// film pages are counted and skipped. Once ctx is done no new film page is
// requested, and records of pages already fetched are still yielded.
func (c *Spider) Crawl(ctx context.Context, yield func(*models.Record) error) (CrawlStats, error) {
	var stats CrawlStats

	doc, err := c.fetchDocument(ctx, c.URL)
	if err != nil {
		c.log.Error().Err(err).Str("url", c.URL).Msg("Failed to fetch index page")
		return stats, err
	}

	links := c.parseIndex(doc, c.URL)
	c.log.Info().Int("films", len(links)).Str("url", c.URL).Msg("Index page parsed")

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan pageResult)
	go c.fetchPages(fetchCtx, links, results)

	var yieldErr error
	for res := range results {
		stats.Pages++

		switch {
		case apperrors.IsType(res.err, apperrors.ErrorTypeExtraction):
			stats.PagesAbandoned++
			c.log.Info().Err(res.err).Str("url", res.url).Msg("Film page skipped")
			continue
		case res.err != nil:
			stats.PagesFailed++
			c.log.Warn().Err(res.err).Str("url", res.url).Msg("Failed to fetch film page")
			continue
		}

		// keep draining so page goroutines can exit
		if yieldErr != nil {
			continue
		}

		for _, record := range res.records {
			if err := yield(record); err != nil {
				yieldErr = err
				cancel()
				break
			}
			stats.Records++
		}
	}

	c.log.Info().
		Int("pages", stats.Pages).
		Int("failed", stats.PagesFailed).
		Int("abandoned", stats.PagesAbandoned).
		Int("records", stats.Records).
		Msg("Crawl finished")

	return stats, yieldErr
}

// fetchPages fetches film pages with at most c.concurrency requests in
// flight and closes results when all of them are done.
func (c *Spider) fetchPages(ctx context.Context, links []string, results chan<- pageResult) {
	defer close(results)

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			if ctx.Err() != nil {
				<-sem
				break
			}
			wg.Add(1)
			go func(link string) {
				defer wg.Done()
				defer func() { <-sem }()
				results <- c.fetchFilm(ctx, link)
			}(link)
		}
	}

	if ctx.Err() != nil {
		c.log.Info().Msg("Crawl cancelled, no new film pages will be requested")
	}
	wg.Wait()
}

// fetchFilm fetches and parses one film page. A request already started is
// not aborted by cancellation; it is bounded by the client timeout. A
// retryable fetch failure is tried once more unless ctx is done.
func (c *Spider) fetchFilm(ctx context.Context, link string) pageResult {
	reqCtx := context.WithoutCancel(ctx)

	doc, err := c.fetchDocument(reqCtx, link)
	if err != nil && apperrors.IsRetryable(err) && ctx.Err() == nil {
		c.log.Debug().Err(err).Str("url", link).Msg("Retrying film page")
		doc, err = c.fetchDocument(reqCtx, link)
	}
	if err != nil {
		return pageResult{url: link, err: err}
	}

	records, err := c.parseFilm(doc, link)
	return pageResult{url: link, records: records, err: err}
}
