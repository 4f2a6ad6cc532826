package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/cinemagoworker/helpers"
	"sjsage522/cinemagoworker/logger"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
	"sjsage522/cinemagoworker/services/cache"
)

// BaseCrawler provides common functionality for all crawlers
type BaseCrawler struct {
	URL       string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	Provider  string
	Client    *http.Client
}

// fetchWithCache fetches a URL unless the site is marked rate limited, and
// marks it when the site answers with a rate limit status.
func (c *BaseCrawler) fetchWithCache(ctx context.Context, target string) (io.Reader, error) {
	// Check if the crawler is rate limited
	if c.CacheSvc != nil && c.CacheKey != "" {
		if _, err := c.CacheSvc.Get(c.CacheKey); err == nil {
			return nil, apperrors.NewRateLimit(c.Provider, c.BlockTime)
		}
	}

	client := c.Client
	if client == nil {
		client = helpers.NewHTTPClient(10 * time.Second)
	}

	utf8Body, err := helpers.FetchWithRandomHeaders(ctx, client, target)
	if err != nil {
		if c.CacheSvc != nil && c.CacheKey != "" && apperrors.IsType(err, apperrors.ErrorTypeRateLimit) {
			value := []byte(strconv.Itoa(int(c.BlockTime / time.Second)))
			if cacheErr := c.CacheSvc.Set(c.CacheKey, value, c.BlockTime); cacheErr != nil {
				logger.ForCrawler(c.GetName()).Warn().
					Err(cacheErr).
					Str("key", c.CacheKey).
					Msg("Failed to mark rate limit")
			}
		}
		return nil, err
	}

	return utf8Body, nil
}

// createDocument creates a goquery document from a reader
func (c *BaseCrawler) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, apperrors.NewParsing(c.Provider, "HTML parse error", err)
	}
	return doc, nil
}

// fetchDocument fetches and parses one page
func (c *BaseCrawler) fetchDocument(ctx context.Context, target string) (*goquery.Document, error) {
	body, err := c.fetchWithCache(ctx, target)
	if err != nil {
		return nil, err
	}
	return c.createDocument(body)
}

// ResolveURL resolves href against base. Empty hrefs stay empty.
func (c *BaseCrawler) ResolveURL(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// GetName returns the crawler's name for logging
func (c *BaseCrawler) GetName() string {
	return c.Provider + "Crawler"
}

// GetProvider returns the provider name
func (c *BaseCrawler) GetProvider() string {
	return c.Provider
}
