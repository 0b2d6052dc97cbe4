// Package history archives finished scans so their findings can be listed
// and reviewed after the process exits.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
)

// ErrNotFound is returned when no archived run has the requested ID.
var ErrNotFound = errors.New("history: run not found")

// Run is a lightweight overview of an archived scan.
type Run struct {
	ID         string    `json:"id"`
	StartURL   string    `json:"start_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cancelled  bool      `json:"cancelled"`
	Crawled    int       `json:"crawled"`
	Tested     int       `json:"tested"`
	Findings   int       `json:"findings"`
}

// Store persists and retrieves finished scans.
type Store interface {
	Save(ctx context.Context, s *engine.Summary) error
	Get(ctx context.Context, id string) (*engine.Summary, error)
	List(ctx context.Context, limit int) ([]Run, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
