// Package memory keeps tracker ledgers in process memory. Ledgers live exactly
// as long as their tracker session or the process.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"example.com/ecotrack/internal/domain"
)

type trackerEntry struct {
	tracker domain.Tracker
	mu      sync.Mutex
	ledger  *domain.Ledger
	ended   bool
}

// Store is a domain.LedgerStore backed by maps.
type Store struct {
	mu       sync.RWMutex
	trackers map[string]*trackerEntry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{trackers: make(map[string]*trackerEntry)}
}

// CreateTracker implements domain.LedgerStore.
func (s *Store) CreateTracker(ctx context.Context, tracker domain.Tracker) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tracker.CreatedAt.IsZero() {
		tracker.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[tracker.ID] = &trackerEntry{tracker: tracker, ledger: domain.NewLedger()}
	return nil
}

// Append implements domain.LedgerStore.
func (s *Store) Append(ctx context.Context, trackerID string, activity domain.Activity) (domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Activity{}, err
	}
	entry, err := s.entry(trackerID)
	if err != nil {
		return domain.Activity{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.ended {
		return domain.Activity{}, domain.ErrTrackerEnded
	}

	activity.TrackerID = trackerID
	activity.Seq = int64(entry.ledger.Len() + 1)
	entry.ledger.Append(activity)
	return activity, nil
}

// Ledger implements domain.LedgerStore. The returned ledger is a snapshot.
func (s *Store) Ledger(ctx context.Context, trackerID string) (*domain.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := s.entry(trackerID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return domain.NewLedger(entry.ledger.All()...), nil
}

// ListActivities implements domain.LedgerStore.
func (s *Store) ListActivities(ctx context.Context, trackerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	ledger, err := s.Ledger(ctx, trackerID)
	if err != nil {
		return nil, nil, err
	}

	all := ledger.All()
	start := 0
	if cursor != nil {
		start = int(cursor.Seq)
		if start > len(all) {
			start = len(all)
		}
	}
	end := len(all)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	page := all[start:end]
	var next *domain.Cursor
	if end < len(all) && len(page) > 0 {
		last := page[len(page)-1]
		next = &domain.Cursor{Seq: last.Seq, ID: last.ID}
	}
	return page, next, nil
}

// DeleteTracker implements domain.LedgerStore.
func (s *Store) DeleteTracker(ctx context.Context, trackerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	entry, ok := s.trackers[trackerID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrTrackerNotFound
	}
	delete(s.trackers, trackerID)
	s.mu.Unlock()

	// Appends that looked the entry up before removal must not land.
	entry.mu.Lock()
	entry.ended = true
	entry.mu.Unlock()
	return nil
}

// Count returns the number of live trackers.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trackers)
}

func (s *Store) entry(trackerID string) (*trackerEntry, error) {
	if strings.TrimSpace(trackerID) == "" {
		return nil, domain.ErrTrackerNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.trackers[trackerID]
	if !ok {
		return nil, domain.ErrTrackerNotFound
	}
	return entry, nil
}
