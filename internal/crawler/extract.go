package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sjsage522/cinemagoworker/internal/models"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
)

// firstText returns the first text node that is a direct child of any node
// in sel, in document order. Text nested deeper is ignored, so
// "<b>7,5 <i>x</i></b>" yields "7,5 ".
func firstText(sel *goquery.Selection) (string, bool) {
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				return c.Data, true
			}
		}
	}
	return "", false
}

// firstAttr returns attr of the first node in sel that carries it
func firstAttr(sel *goquery.Selection, attr string) (string, bool) {
	for i := range sel.Nodes {
		if v, ok := sel.Eq(i).Attr(attr); ok {
			return v, true
		}
	}
	return "", false
}

// allTexts returns the first text child of every node in sel, skipping nodes
// without one.
func allTexts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text, ok := firstText(s); ok {
			out = append(out, text)
		}
	})
	return out
}

func optional(text string, ok bool) *string {
	if !ok {
		return nil
	}
	return &text
}

// parseIndex collects film page links from the index page. Links are
// resolved against pageURL, links off allowedHost are skipped, and each
// page is returned once in first-seen order.
func (c *Spider) parseIndex(doc *goquery.Document, pageURL string) []string {
	sel := c.selectors
	seen := make(map[string]bool)
	var links []string

	doc.Find(sel.FilmList).Each(func(_ int, item *goquery.Selection) {
		href, ok := firstAttr(item.Find(sel.FilmLink), "href")
		if !ok {
			return
		}

		link, err := c.ResolveURL(pageURL, href)
		if err != nil || link == "" {
			c.log.Debug().Str("href", href).Msg("Skipping unresolvable film link")
			return
		}
		if !c.allowed(link) {
			c.log.Debug().Str("link", link).Msg("Skipping film link outside allowed host")
			return
		}
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links
}

// allowed reports whether link points at the allowed host. An empty allowed
// host accepts everything.
func (c *Spider) allowed(link string) bool {
	if c.allowedHost == "" {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, c.allowedHost) || strings.EqualFold(u.Hostname(), c.allowedHost)
}

// parseFilm extracts one record per showtime slot on a film page. When a
// required film field is missing, no records are returned and the error is
// an extraction error.
func (c *Spider) parseFilm(doc *goquery.Document, pageURL string) ([]*models.Record, error) {
	sel := c.selectors

	var missing []string
	need := func(field string) func(string, bool) *string {
		return func(text string, ok bool) *string {
			if !ok {
				missing = append(missing, field)
				return nil
			}
			return &text
		}
	}

	base := &models.Record{SourceURL: pageURL}
	base.FilmName = need("film_name")(firstText(doc.Find(sel.Title)))
	base.Description = need("description")(outerHTML(doc.Find(sel.Description)))
	base.CoverURL = need("cover_url")(firstAttr(doc.Find(sel.Cover), "src"))
	base.ImdbRateText = need("imdb_rate")(firstText(doc.Find(sel.ImdbRate)))
	base.KpRateText = need("kp_rate")(firstText(doc.Find(sel.KpRate)))
	base.DurationText = need("duration")(firstText(doc.Find(sel.Duration)))
	base.Country = need("country")(firstText(doc.Find(sel.Country)))
	base.Year = need("year")(firstText(doc.Find(sel.Year)))

	if len(missing) > 0 {
		return nil, apperrors.NewExtraction(c.Provider,
			"missing "+strings.Join(missing, ", ")+" on "+pageURL)
	}

	base.Director = optional(firstText(doc.Find(sel.Director)))
	base.GenreNames = allTexts(doc.Find(sel.Genre))

	var records []*models.Record
	doc.Find(sel.Schedule).Each(func(_ int, block *goquery.Selection) {
		date := optional(firstText(block.Find(sel.ScheduleDate)))

		block.Find(sel.CinemaList).Each(func(_ int, cinema *goquery.Selection) {
			name := optional(firstText(cinema.Find(sel.CinemaName)))

			cinema.Find(sel.SlotList).Each(func(_ int, slot *goquery.Selection) {
				record := base.Clone()
				record.Date = date
				record.Cinema = name
				record.BeginningText = optional(firstText(slot.Find(sel.SlotTime)))
				records = append(records, record)
			})
		})
	})

	return records, nil
}

// outerHTML renders the first node of sel including its own tag
func outerHTML(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	h, err := goquery.OuterHtml(sel.First())
	if err != nil {
		return "", false
	}
	return h, true
}
