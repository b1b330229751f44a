package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"patronage/internal/models"
)

// ErrUnbalancedRecord is returned when a record's fee split does not add up to its amount.
var ErrUnbalancedRecord = errors.New("ledger: platform fee and author earning do not sum to amount")

// Filter selects donation records. Zero-valued fields do not filter.
type Filter struct {
	PostID      uint
	SupporterID uint
	AuthorID    uint
	Since       time.Time
	// Newest orders by creation time descending, later insertions first on ties.
	Newest bool
	Limit  int
	Offset int
}

// Matches reports whether d passes the filter's predicates.
func (f Filter) Matches(d *models.Donation) bool {
	if f.PostID != 0 && d.PostID != f.PostID {
		return false
	}
	if f.SupporterID != 0 && d.SupporterID != f.SupporterID {
		return false
	}
	if f.AuthorID != 0 && d.AuthorID != f.AuthorID {
		return false
	}
	if !f.Since.IsZero() && d.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Store is the append-only donation ledger.
//
// Append assigns ID, Reference and CreatedAt and never overwrites an existing
// record. Concurrent appends never share an ID.
type Store interface {
	Append(ctx context.Context, d *models.Donation) error
	Query(ctx context.Context, f Filter) ([]models.Donation, error)
}

// Balanced checks the record invariant platformFee + authorEarning == amount.
func Balanced(d *models.Donation) bool {
	return d.Amount > 0 && d.PlatformFee >= 0 && d.AuthorEarning >= 0 &&
		d.PlatformFee+d.AuthorEarning == d.Amount
}

// MemoryStore is a process-local Store that keeps its aggregates in step with
// every append. It is used by tests and by tooling that replays a ledger.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.Donation
	nextID  uint
	agg     *Aggregator
	now     func() time.Time
}

// NewMemoryStore returns an empty ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agg: NewAggregator(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, d *models.Donation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !Balanced(d) {
		return ErrUnbalancedRecord
	}
	if d.Reference == "" {
		ref, err := NewReference()
		if err != nil {
			return err
		}
		d.Reference = ref
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	d.ID = s.nextID
	d.CreatedAt = s.now()
	s.records = append(s.records, *d)
	s.agg.Apply(*d)
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]models.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]models.Donation, 0, len(s.records))
	for i := range s.records {
		if f.Matches(&s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	s.mu.RUnlock()

	if f.Newest {
		SortNewest(out)
	}
	return paginate(out, f.Offset, f.Limit), nil
}

// Aggregates exposes the incrementally maintained totals.
func (s *MemoryStore) Aggregates() *Aggregator {
	return s.agg
}

// Len returns the number of appended records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// SortNewest orders records by CreatedAt descending, then ID descending.
func SortNewest(records []models.Donation) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}

func paginate(records []models.Donation, offset, limit int) []models.Donation {
	if offset > 0 {
		if offset >= len(records) {
			return []models.Donation{}
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
