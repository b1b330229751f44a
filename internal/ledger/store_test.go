package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"patronage/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func donation(t *testing.T, postID, authorID, supporterID uint, amount int64) *models.Donation {
	t.Helper()
	b, err := Split(amount)
	require.NoError(t, err)
	return &models.Donation{
		PostID:        postID,
		AuthorID:      authorID,
		SupporterID:   supporterID,
		Amount:        b.Amount,
		PlatformFee:   b.PlatformFee,
		AuthorEarning: b.AuthorEarning,
	}
}

func TestMemoryStore_AppendAssignsIdentity(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	d := donation(t, 1, 10, 20, 500)
	require.NoError(t, s.Append(ctx, d))

	assert.Equal(t, uint(1), d.ID)
	assert.True(t, ValidReference(d.Reference))
	assert.False(t, d.CreatedAt.IsZero())

	d2 := donation(t, 1, 10, 20, 100)
	require.NoError(t, s.Append(ctx, d2))
	assert.Equal(t, uint(2), d2.ID)
	assert.NotEqual(t, d.Reference, d2.Reference)
}

func TestMemoryStore_RejectsUnbalanced(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()

	d := &models.Donation{PostID: 1, SupporterID: 2, Amount: 500, PlatformFee: 10, AuthorEarning: 450}
	err := s.Append(context.Background(), d)
	assert.ErrorIs(t, err, ErrUnbalancedRecord)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, donation(t, 1, 10, 100, 100)))
	require.NoError(t, s.Append(ctx, donation(t, 2, 10, 100, 500)))
	require.NoError(t, s.Append(ctx, donation(t, 3, 11, 101, 1000)))

	all, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byPost, err := s.Query(ctx, Filter{PostID: 2})
	require.NoError(t, err)
	require.Len(t, byPost, 1)
	assert.Equal(t, int64(500), byPost[0].Amount)

	bySupporter, err := s.Query(ctx, Filter{SupporterID: 100})
	require.NoError(t, err)
	assert.Len(t, bySupporter, 2)

	byAuthor, err := s.Query(ctx, Filter{AuthorID: 11})
	require.NoError(t, err)
	assert.Len(t, byAuthor, 1)

	future, err := s.Query(ctx, Filter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestMemoryStore_NewestOrdering(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, donation(t, 1, 10, 100, 100)))
	}
	s.now = func() time.Time { return fixed.Add(-time.Minute) }
	require.NoError(t, s.Append(ctx, donation(t, 1, 10, 100, 100)))

	got, err := s.Query(ctx, Filter{Newest: true})
	require.NoError(t, err)
	ids := make([]uint, 0, len(got))
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []uint{3, 2, 1, 4}, ids)

	page, err := s.Query(ctx, Filter{Newest: true, Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint(2), page[0].ID)
	assert.Equal(t, uint(1), page[1].ID)
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	const workers, perWorker = 16, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				d := donation(t, uint(w%3+1), 10, uint(w%5+1), 100)
				assert.NoError(t, s.Append(ctx, d))
			}
		}(w)
	}
	wg.Wait()

	records, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, workers*perWorker)

	seenID := make(map[uint]bool, len(records))
	seenRef := make(map[string]bool, len(records))
	for _, d := range records {
		assert.False(t, seenID[d.ID], "duplicate id %d", d.ID)
		assert.False(t, seenRef[d.Reference], "duplicate reference %s", d.Reference)
		seenID[d.ID] = true
		seenRef[d.Reference] = true
	}

	assert.True(t, s.Aggregates().Snapshot().Equal(Recompute(records)))
}

func TestAggregator_IncrementalMatchesRecompute(t *testing.T) {
	t.Parallel()
	faker := gofakeit.New(42)
	s := NewMemoryStore()
	ctx := context.Background()

	amounts := Denominations()
	for i := 0; i < 300; i++ {
		amount := amounts[faker.Number(0, len(amounts)-1)]
		postID := uint(faker.Number(1, 12))
		d := donation(t, postID, postID%4+1, uint(faker.Number(1, 40)), amount)
		require.NoError(t, s.Append(ctx, d))
	}

	records, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	full := Recompute(records)
	agg := s.Aggregates()

	assert.True(t, agg.Snapshot().Equal(full))
	for supporterID, want := range full.Supporter {
		var sum int64
		for _, d := range records {
			if d.SupporterID == supporterID {
				sum += d.Amount
			}
		}
		assert.Equal(t, sum, want)
		assert.Equal(t, want, agg.SupporterTotal(supporterID))
	}
	for postID := range full.PostSupport {
		assert.Equal(t, full.PostSupport[postID], agg.TotalSupport(postID))
		assert.Equal(t, full.PostCount[postID], agg.SupportCount(postID))
		assert.Equal(t, full.PostEarning[postID], agg.AuthorEarning(postID))
		assert.Equal(t, full.PostSupport[postID]-full.PostSupport[postID]*FeeRatePercent/100, agg.AuthorEarning(postID))
	}

	rebuilt := NewAggregator()
	rebuilt.Rebuild(records)
	assert.True(t, rebuilt.Snapshot().Equal(agg.Snapshot()))
}

func TestAggregator_UnknownKeysAreZero(t *testing.T) {
	t.Parallel()
	a := NewAggregator()
	assert.Zero(t, a.TotalSupport(1))
	assert.Zero(t, a.SupportCount(1))
	assert.Zero(t, a.AuthorEarning(1))
	assert.Zero(t, a.SupporterTotal(1))
	assert.Empty(t, a.SupporterTotals())
}

func TestSumBySupporter(t *testing.T) {
	t.Parallel()
	records := []models.Donation{
		{SupporterID: 1, Amount: 100},
		{SupporterID: 2, Amount: 500},
		{SupporterID: 1, Amount: 1000},
	}
	sums := SumBySupporter(records)
	SortTotals(sums)
	assert.Equal(t, []SupporterAmount{{1, 1100}, {2, 500}}, sums)
}

func TestDrift(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, donation(t, 1, 10, 20, 500)))
	require.NoError(t, s.Append(ctx, donation(t, 2, 10, 21, 1000)))

	want := s.Aggregates().Snapshot()
	assert.False(t, Drift(want, s.Aggregates().Snapshot()).Any())

	got := s.Aggregates().Snapshot()
	got.PostSupport[1] = 0
	got.PostEarning[2] = 1
	got.Supporter[99] = 300
	delete(got.Supporter, 20)

	report := Drift(want, got)
	assert.Equal(t, DriftReport{Posts: 1, Supporters: 2, Earnings: 1}, report)
	assert.True(t, report.Any())
}
