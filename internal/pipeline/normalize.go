package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"sjsage522/cinemagoworker/helpers"
	"sjsage522/cinemagoworker/internal/models"
	apperrors "sjsage522/cinemagoworker/pkg/errors"
)

// Stage names
const (
	StageDateTime   = "datetime"
	StageRates      = "rates"
	StageWhitespace = "whitespace"
	StageGenre      = "genre"
	StageFilm       = "film"
	StageShowtime   = "showtime"
)

// months maps the first three letters of a Russian month name to the month
var months = map[string]time.Month{
	"янв": time.January,
	"фев": time.February,
	"мар": time.March,
	"апр": time.April,
	"май": time.May,
	"мая": time.May,
	"июн": time.June,
	"июл": time.July,
	"авг": time.August,
	"сен": time.September,
	"окт": time.October,
	"ноя": time.November,
	"дек": time.December,
}

// DateTimeStage composes the beginning and finishing timestamps of a
// showtime from its date label ("15 мар"), begin time ("19:30") and the
// film duration ("96 min"). The year is the current year.
type DateTimeStage struct {
	loc *time.Location
	now func() time.Time
}

// NewDateTimeStage creates the stage. A nil loc means time.Local and a nil
// now means time.Now.
func NewDateTimeStage(loc *time.Location, now func() time.Time) *DateTimeStage {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &DateTimeStage{loc: loc, now: now}
}

// Name implements Stage
func (s *DateTimeStage) Name() string { return StageDateTime }

// Process implements Stage. Records missing any of the three inputs, or
// carrying one that cannot be parsed, are dropped.
func (s *DateTimeStage) Process(_ context.Context, record *models.Record, _ *Report) (*models.Record, error) {
	if record.DurationText == nil || record.Date == nil || record.BeginningText == nil {
		return nil, apperrors.NewDrop(StageDateTime, "missing duration, date or begin time")
	}

	duration, err := parseDuration(*record.DurationText)
	if err != nil {
		return nil, apperrors.NewDrop(StageDateTime, err.Error())
	}

	day, month, err := parseDate(*record.Date)
	if err != nil {
		return nil, apperrors.NewDrop(StageDateTime, err.Error())
	}

	hour, minute, err := parseClock(*record.BeginningText)
	if err != nil {
		return nil, apperrors.NewDrop(StageDateTime, err.Error())
	}

	year := s.now().In(s.loc).Year()
	beginning := time.Date(year, month, day, hour, minute, 0, 0, s.loc)
	if beginning.Day() != day {
		return nil, apperrors.NewDrop(StageDateTime, "no such day: "+*record.Date)
	}
	finishing := beginning.Add(time.Duration(duration) * time.Minute)

	record.Duration = &duration
	record.BeginningAt = &beginning
	record.FinishingAt = &finishing
	return record, nil
}

// parseDuration reads the leading minute count of "96 min"
func parseDuration(text string) (int, error) {
	part, err := helpers.GetSplitPart(text, " ", 0)
	if err != nil {
		return 0, errors.New("empty duration")
	}
	minutes, err := strconv.Atoi(part)
	if err != nil || minutes < 0 {
		return 0, errors.New("bad duration: " + text)
	}
	return minutes, nil
}

// parseDate reads "15 мар" into day and month
func parseDate(text string) (int, time.Month, error) {
	dayPart, err := helpers.GetSplitPart(text, " ", 0)
	if err != nil {
		return 0, 0, errors.New("empty date")
	}
	monthPart, err := helpers.GetSplitPart(text, " ", 1)
	if err != nil {
		return 0, 0, errors.New("no month in date: " + text)
	}

	day, err := strconv.Atoi(dayPart)
	if err != nil || day < 1 || day > 31 {
		return 0, 0, errors.New("bad day in date: " + text)
	}

	month, ok := months[helpers.FirstRunes(strings.ToLower(monthPart), 3)]
	if !ok {
		return 0, 0, errors.New("unknown month in date: " + text)
	}
	return day, month, nil
}

// parseClock reads "19:30" into hour and minute
func parseClock(text string) (int, int, error) {
	text = strings.TrimSpace(text)
	hourPart, err := helpers.GetSplitPart(text, ":", 0)
	if err != nil {
		return 0, 0, errors.New("empty begin time")
	}
	minutePart, err := helpers.GetSplitPart(text, ":", 1)
	if err != nil {
		return 0, 0, errors.New("bad begin time: " + text)
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.New("bad begin time: " + text)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.New("bad begin time: " + text)
	}
	return hour, minute, nil
}

// RatesStage parses the rating texts, which use a decimal comma ("7,5").
// Absent ratings stay absent.
type RatesStage struct{}

// NewRatesStage creates the stage
func NewRatesStage() *RatesStage { return &RatesStage{} }

// Name implements Stage
func (s *RatesStage) Name() string { return StageRates }

// Process implements Stage. A rating that does not parse is left empty and
// noted in the report.
func (s *RatesStage) Process(_ context.Context, record *models.Record, report *Report) (*models.Record, error) {
	record.ImdbRate = s.parse(record, record.ImdbRateText, "imdb", report)
	record.KpRate = s.parse(record, record.KpRateText, "kp", report)
	return record, nil
}

func (s *RatesStage) parse(record *models.Record, text *string, label string, report *Report) *float64 {
	if text == nil || strings.TrimSpace(*text) == "" {
		return nil
	}
	normalized := strings.ReplaceAll(strings.TrimSpace(*text), ",", ".")
	rate, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		report.note(StageRates, record, "unparsable "+label+" rate: "+*text)
		return nil
	}
	return &rate
}

// WhitespaceStage trims the free text fields: cinema, film name, country,
// description and director.
type WhitespaceStage struct{}

// NewWhitespaceStage creates the stage
func NewWhitespaceStage() *WhitespaceStage { return &WhitespaceStage{} }

// Name implements Stage
func (s *WhitespaceStage) Name() string { return StageWhitespace }

// Process implements Stage
func (s *WhitespaceStage) Process(_ context.Context, record *models.Record, _ *Report) (*models.Record, error) {
	// records of one page share these pointers, so never trim in place
	record.Cinema = trimmed(record.Cinema)
	record.FilmName = trimmed(record.FilmName)
	record.Country = trimmed(record.Country)
	record.Description = trimmed(record.Description)
	record.Director = trimmed(record.Director)
	return record, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
