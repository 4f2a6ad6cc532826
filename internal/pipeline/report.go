package pipeline

import (
	"time"

	"github.com/google/uuid"

	"sjsage522/cinemagoworker/internal/models"
)

// Report collects the outcome of one run. It is owned by the caller and
// passed to every stage; it is not safe for concurrent use.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	Processed     int            `json:"processed"`
	Stored        int            `json:"stored"`
	Dropped       map[string]int `json:"dropped"`
	Duplicates    int            `json:"duplicates"`
	Invalid       int            `json:"invalid"`
	Failed        int            `json:"failed"`
	GenresCreated int            `json:"genres_created"`
	FilmsCreated  int            `json:"films_created"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Diagnostic is a note a stage left about one record
type Diagnostic struct {
	Stage     string    `json:"stage"`
	Film      string    `json:"film,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// NewReport starts a report with a fresh run id
func NewReport() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Dropped:   make(map[string]int),
	}
}

// Finish stamps the end of the run
func (r *Report) Finish() {
	r.FinishedAt = time.Now()
}

// TotalDropped sums drops over all stages
func (r *Report) TotalDropped() int {
	total := 0
	for _, n := range r.Dropped {
		total += n
	}
	return total
}

func (r *Report) note(stage string, record *models.Record, message string) {
	d := Diagnostic{
		Stage:   stage,
		Message: message,
		Time:    time.Now(),
	}
	if record != nil {
		d.Film = record.Name()
		d.SourceURL = record.SourceURL
	}
	r.Diagnostics = append(r.Diagnostics, d)
}
