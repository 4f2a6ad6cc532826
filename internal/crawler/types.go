package crawler

import (
	"context"

	"sjsage522/cinemagoworker/internal/models"
)

// Crawler interface defines the contract for all listing crawlers
type Crawler interface {
	// Crawl walks the site and calls yield once per showtime record, in the
	// order pages complete. A non-nil error from yield stops the crawl.
	Crawl(ctx context.Context, yield func(*models.Record) error) (CrawlStats, error)

	// GetName returns the crawler's name for logging and identification
	GetName() string

	// GetProvider returns the provider name for the crawler
	GetProvider() string
}

// CrawlStats summarizes one crawl
type CrawlStats struct {
	Pages          int `json:"pages"`
	PagesFailed    int `json:"pages_failed"`
	PagesAbandoned int `json:"pages_abandoned"`
	Records        int `json:"records"`
}

// Selectors contains CSS selectors for the index and film pages.
//
// ImdbRate and KpRate are positional: the site renders both ratings as
// unlabeled <b> elements inside one block.
type Selectors struct {
	// Index page
	FilmList string
	FilmLink string

	// Film page, required
	Title       string
	Description string
	Cover       string
	ImdbRate    string
	KpRate      string
	Duration    string
	Country     string
	Year        string

	// Film page, optional
	Director string
	Genre    string

	// Schedule blocks: date -> cinema -> time slot
	Schedule     string
	ScheduleDate string
	CinemaList   string
	CinemaName   string
	SlotList     string
	SlotTime     string
}

// CrawlerConfig contains configuration for a crawler
type CrawlerConfig struct {
	URL         string
	AllowedHost string
	CacheKey    string
	Provider    string
	Concurrency int
	Selectors   Selectors
}
