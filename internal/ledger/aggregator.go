package ledger

import (
	"maps"
	"sync"

	"patronage/internal/models"
)

// Totals is a point-in-time view of every ledger aggregate.
type Totals struct {
	PostSupport map[uint]int64
	PostCount   map[uint]int64
	PostEarning map[uint]int64
	Supporter   map[uint]int64
}

func newTotals() Totals {
	return Totals{
		PostSupport: make(map[uint]int64),
		PostCount:   make(map[uint]int64),
		PostEarning: make(map[uint]int64),
		Supporter:   make(map[uint]int64),
	}
}

func (t Totals) add(d *models.Donation) {
	t.PostSupport[d.PostID] += d.Amount
	t.PostCount[d.PostID]++
	t.PostEarning[d.PostID] += d.AuthorEarning
	t.Supporter[d.SupporterID] += d.Amount
}

// Equal reports whether both views hold identical values.
func (t Totals) Equal(o Totals) bool {
	return maps.Equal(t.PostSupport, o.PostSupport) &&
		maps.Equal(t.PostCount, o.PostCount) &&
		maps.Equal(t.PostEarning, o.PostEarning) &&
		maps.Equal(t.Supporter, o.Supporter)
}

// Recompute derives all aggregates from a full scan of records.
func Recompute(records []models.Donation) Totals {
	t := newTotals()
	for i := range records {
		t.add(&records[i])
	}
	return t
}

// SumBySupporter totals amounts per supporter over records.
func SumBySupporter(records []models.Donation) []SupporterAmount {
	sums := make(map[uint]int64)
	for i := range records {
		sums[records[i].SupporterID] += records[i].Amount
	}
	out := make([]SupporterAmount, 0, len(sums))
	for id, total := range sums {
		out = append(out, SupporterAmount{SupporterID: id, Total: total})
	}
	return out
}

// Aggregator maintains ledger totals incrementally. Counters only grow.
type Aggregator struct {
	mu sync.RWMutex
	t  Totals
}

// NewAggregator returns an aggregator with no records applied.
func NewAggregator() *Aggregator {
	return &Aggregator{t: newTotals()}
}

// Apply adds one record to every affected counter.
func (a *Aggregator) Apply(d models.Donation) {
	a.mu.Lock()
	a.t.add(&d)
	a.mu.Unlock()
}

// Rebuild discards the current counters and recomputes them from records.
func (a *Aggregator) Rebuild(records []models.Donation) {
	t := Recompute(records)
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

// TotalSupport is the gross amount donated to postID.
func (a *Aggregator) TotalSupport(postID uint) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.t.PostSupport[postID]
}

// SupportCount is the number of donations recorded for postID.
func (a *Aggregator) SupportCount(postID uint) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.t.PostCount[postID]
}

// AuthorEarning is the net amount credited to the author of postID.
func (a *Aggregator) AuthorEarning(postID uint) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.t.PostEarning[postID]
}

// SupporterTotal is the gross amount supporterID has donated across all posts.
func (a *Aggregator) SupporterTotal(supporterID uint) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.t.Supporter[supporterID]
}

// SupporterTotals lists every supporter with a non-zero total, unordered.
func (a *Aggregator) SupporterTotals() []SupporterAmount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]SupporterAmount, 0, len(a.t.Supporter))
	for id, total := range a.t.Supporter {
		out = append(out, SupporterAmount{SupporterID: id, Total: total})
	}
	return out
}

// Snapshot returns a deep copy of the current counters.
func (a *Aggregator) Snapshot() Totals {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Totals{
		PostSupport: maps.Clone(a.t.PostSupport),
		PostCount:   maps.Clone(a.t.PostCount),
		PostEarning: maps.Clone(a.t.PostEarning),
		Supporter:   maps.Clone(a.t.Supporter),
	}
}

// DriftReport counts aggregate rows whose cached value disagrees with the ledger.
type DriftReport struct {
	Posts      int `json:"posts"`
	Supporters int `json:"supporters"`
	Earnings   int `json:"earnings"`
}

// Any reports whether any aggregate drifted.
func (r DriftReport) Any() bool {
	return r.Posts+r.Supporters+r.Earnings > 0
}

// Drift compares cached totals against totals recomputed from the ledger.
// A key missing from one side counts as zero there.
func Drift(want, got Totals) DriftReport {
	var r DriftReport
	for id := range union(want.PostSupport, got.PostSupport, want.PostCount, got.PostCount) {
		if want.PostSupport[id] != got.PostSupport[id] || want.PostCount[id] != got.PostCount[id] {
			r.Posts++
		}
	}
	for id := range union(want.Supporter, got.Supporter) {
		if want.Supporter[id] != got.Supporter[id] {
			r.Supporters++
		}
	}
	for id := range union(want.PostEarning, got.PostEarning) {
		if want.PostEarning[id] != got.PostEarning[id] {
			r.Earnings++
		}
	}
	return r
}

// NewTotals returns an empty Totals ready for population.
func NewTotals() Totals {
	return newTotals()
}

func union(ms ...map[uint]int64) map[uint]struct{} {
	keys := make(map[uint]struct{})
	for _, m := range ms {
		for k := range m {
			keys[k] = struct{}{}
		}
	}
	return keys
}
