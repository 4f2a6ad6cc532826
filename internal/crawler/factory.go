package crawler

import (
	"sjsage522/cinemagoworker/config"
	"sjsage522/cinemagoworker/helpers"
	"sjsage522/cinemagoworker/services/cache"
)

// TutBySelectors returns the selectors of the afisha.tut.by film listing.
//
// The two ratings share one block; the first <b> holds the IMDb rating and
// the last one the KinoPoisk rating.
func TutBySelectors() Selectors {
	return Selectors{
		FilmList: "ul.list_afisha.col-5 .lists__li",
		FilmLink: "a.name",

		Title:       ".post .title",
		Description: ".col-i .post",
		Cover:       ".post_wrapper .image_wrapper img",
		ImdbRate:    ".post .movie_rating .IMDb b:first-of-type",
		KpRate:      ".post .movie_rating .IMDb b:last-of-type",
		Duration:    ".post .movie_info .duration",
		Country:     ".post .movie_info .author",
		Year:        ".post .movie_info .year",

		Director: ".post .persone",
		Genre:    "td.genre p",

		Schedule:     ".b-film-info",
		ScheduleDate: ".name a",
		CinemaList:   ".b-film-list__li",
		CinemaName:   ".film-name a",
		SlotList:     ".b-shedule-list .lists__li",
		SlotTime:     ".ticket",
	}
}

// CreateCrawler creates the listing spider based on the configuration
func CreateCrawler(cfg *config.Config, cacheSvc cache.CacheService) Crawler {
	crawlerCfg := CrawlerConfig{
		URL:         cfg.SiteURL,
		AllowedHost: cfg.SiteAllowedHost,
		CacheKey:    "tutby_rate_limited",
		Provider:    "TutBy",
		Concurrency: cfg.SpiderConcurrency,
		Selectors:   TutBySelectors(),
	}

	spider := NewSpider(crawlerCfg, BaseCrawler{
		CacheSvc:  cacheSvc,
		BlockTime: cfg.RateLimitBlock,
		Client:    helpers.NewHTTPClient(cfg.FetchTimeout),
	})

	spider.log.Info().
		Str("url", spider.URL).
		Str("allowed_host", crawlerCfg.AllowedHost).
		Int("concurrency", spider.concurrency).
		Msg("Crawler created")

	return spider
}
