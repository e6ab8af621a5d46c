package scheduler

import (
	"context"
	"log"
	"time"
)

// Journal is the retention surface of a history engine.
type Journal interface {
	Archive(ctx context.Context) int
}

// Archiver periodically trims the history journals so retention does not
// depend solely on someone reading the history pages.
type Archiver struct {
	interval time.Duration
	journals []Journal
}

// NewArchiver creates an archiver over the given journals
func NewArchiver(interval time.Duration, journals ...Journal) *Archiver {
	return &Archiver{interval: interval, journals: journals}
}

// Run trims all journals on the configured interval until the context is
// cancelled. Archive passes are best-effort; they log and carry on.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	log.Printf("archiver: running every %s", a.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("archiver: stopping")
			return ctx.Err()
		case <-ticker.C:
			for _, journal := range a.journals {
				journal.Archive(ctx)
			}
		}
	}
}
