// Package retention removes attachments once they are older than the
// retention window, both the stored bytes and the metadata record.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"roomchat/backend/internal/filestore"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/storage"
)

// AttachmentStore is the metadata side the sweeper reads and prunes.
type AttachmentStore interface {
	ListAttachmentsCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Attachment, error)
	DeleteAttachment(ctx context.Context, id uint) error
}

// Report summarizes one sweep cycle.
type Report struct {
	Cutoff       time.Time
	Expired      int
	Deleted      int
	MissingFiles int
}

type Sweeper struct {
	store     AttachmentStore
	files     filestore.Store
	interval  time.Duration
	retention time.Duration
	backoff   time.Duration
	now       func() time.Time
}

func NewSweeper(store AttachmentStore, files filestore.Store, interval, retention, backoff time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		files:     files,
		interval:  interval,
		retention: retention,
		backoff:   backoff,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// SweepOnce deletes every attachment created before now minus the retention
// window. A missing file does not keep its record alive. Per-item failures are
// joined into the returned error and do not stop the cycle.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	report := Report{Cutoff: s.now().Add(-s.retention)}

	expired, err := s.store.ListAttachmentsCreatedBefore(ctx, report.Cutoff)
	if err != nil {
		return report, fmt.Errorf("list expired attachments: %w", err)
	}
	report.Expired = len(expired)

	var errs []error
	for _, att := range expired {
		if err := s.files.Delete(ctx, att.StoredPath); err != nil {
			if !errors.Is(err, filestore.ErrNotExist) {
				// Keep the record so the next cycle retries the file.
				errs = append(errs, fmt.Errorf("delete file %s: %w", att.StoredPath, err))
				continue
			}
			report.MissingFiles++
		}
		if err := s.store.DeleteAttachment(ctx, att.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete attachment %d: %w", att.ID, err))
			continue
		}
		report.Deleted++
	}
	return report, errors.Join(errs...)
}

// Run sweeps every interval until ctx is cancelled. A failed or panicking
// cycle is logged and the loop waits the backoff before carrying on.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("INFO: retention sweeper started (interval=%s, retention=%s)", s.interval, s.retention)
	wait := s.interval
	for {
		select {
		case <-ctx.Done():
			log.Println("INFO: retention sweeper stopped")
			return
		case <-time.After(wait):
		}

		wait = s.interval
		if err := s.safeSweep(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("ERROR: retention sweep failed: %v", err)
			wait = s.backoff
		}
	}
}

func (s *Sweeper) safeSweep(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during sweep: %v", r)
		}
	}()
	report, err := s.SweepOnce(ctx)
	if report.Deleted > 0 {
		log.Printf("INFO: retention sweep removed %d attachment(s) older than %s", report.Deleted, report.Cutoff.Format(time.RFC3339))
	}
	return err
}
