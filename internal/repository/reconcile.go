package repository

import (
	"context"
	"time"

	"patronage/internal/cache"
	"patronage/internal/ledger"
	"patronage/internal/models"
	"patronage/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type postAggregate struct {
	PostID   uint
	AuthorID uint
	Total    int64
	Cnt      int64
	Earning  int64
}

type supporterAggregate struct {
	SupporterID uint
	Total       int64
	Cnt         int64
}

// aggregateView is one side of a reconciliation: either recomputed from the
// ledger or read back from the cached tables.
type aggregateView struct {
	totals         ledger.Totals
	supporterCount map[uint]int64
	authorOf       map[uint]uint
}

func newAggregateView() aggregateView {
	return aggregateView{
		totals:         ledger.NewTotals(),
		supporterCount: make(map[uint]int64),
		authorOf:       make(map[uint]uint),
	}
}

// Reconcile recomputes every cached aggregate from the donation ledger,
// rewrites the rows that drifted and reports how many did.
func (r *donationRepository) Reconcile(ctx context.Context) (ledger.DriftReport, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Reconcile", "donations")
	defer span.End()
	defer r.metrics.TrackQuery("reconcile", "donations")()

	var (
		report  ledger.DriftReport
		touched []uint
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			// Appends wait until the repaired view is committed.
			if err := tx.Exec("LOCK TABLE donations IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
				return err
			}
		}

		want, err := ledgerView(tx)
		if err != nil {
			return err
		}
		got, err := cachedView(tx)
		if err != nil {
			return err
		}

		report = ledger.Drift(want.totals, got.totals)
		touched, err = repair(tx, r.now(), want, got)
		return err
	})
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return ledger.DriftReport{}, translateError(err, "Donation", 0)
	}
	for _, id := range touched {
		cache.InvalidatePost(ctx, id)
	}
	return report, nil
}

func ledgerView(tx *gorm.DB) (aggregateView, error) {
	v := newAggregateView()

	var posts []postAggregate
	if err := tx.Model(&models.Donation{}).
		Select("post_id, author_id, SUM(amount) AS total, COUNT(*) AS cnt, SUM(author_earning) AS earning").
		Group("post_id, author_id").
		Scan(&posts).Error; err != nil {
		return v, err
	}
	for _, p := range posts {
		v.totals.PostSupport[p.PostID] += p.Total
		v.totals.PostCount[p.PostID] += p.Cnt
		v.totals.PostEarning[p.PostID] += p.Earning
		v.authorOf[p.PostID] = p.AuthorID
	}

	var supporters []supporterAggregate
	if err := tx.Model(&models.Donation{}).
		Select("supporter_id, SUM(amount) AS total, COUNT(*) AS cnt").
		Group("supporter_id").
		Scan(&supporters).Error; err != nil {
		return v, err
	}
	for _, s := range supporters {
		v.totals.Supporter[s.SupporterID] = s.Total
		v.supporterCount[s.SupporterID] = s.Cnt
	}
	return v, nil
}

func cachedView(tx *gorm.DB) (aggregateView, error) {
	v := newAggregateView()

	var posts []models.Post
	if err := tx.Unscoped().Select("id", "user_id", "total_support", "support_count").
		Where("total_support <> 0 OR support_count <> 0").
		Find(&posts).Error; err != nil {
		return v, err
	}
	for _, p := range posts {
		v.totals.PostSupport[p.ID] = p.TotalSupport
		v.totals.PostCount[p.ID] = p.SupportCount
	}

	var supporters []models.SupporterTotal
	if err := tx.Find(&supporters).Error; err != nil {
		return v, err
	}
	for _, s := range supporters {
		v.totals.Supporter[s.SupporterID] = s.TotalAmount
		v.supporterCount[s.SupporterID] = s.DonationCount
	}

	var earnings []models.AuthorEarning
	if err := tx.Find(&earnings).Error; err != nil {
		return v, err
	}
	for _, e := range earnings {
		v.totals.PostEarning[e.PostID] = e.TotalEarning
		v.authorOf[e.PostID] = e.AuthorID
	}
	return v, nil
}

// repair rewrites drifted aggregate rows and returns the ids of the posts
// whose counters or earnings changed.
func repair(tx *gorm.DB, now time.Time, want, got aggregateView) ([]uint, error) {
	touched := make(map[uint]struct{})
	for id := range keys(want.totals.PostSupport, got.totals.PostSupport) {
		if want.totals.PostSupport[id] == got.totals.PostSupport[id] &&
			want.totals.PostCount[id] == got.totals.PostCount[id] {
			continue
		}
		if err := tx.Unscoped().Model(&models.Post{}).Where("id = ?", id).
			UpdateColumns(map[string]interface{}{
				"total_support": want.totals.PostSupport[id],
				"support_count": want.totals.PostCount[id],
			}).Error; err != nil {
			return nil, err
		}
		touched[id] = struct{}{}
	}

	for id := range keys(want.totals.Supporter, got.totals.Supporter) {
		total, count := want.totals.Supporter[id], want.supporterCount[id]
		if total == got.totals.Supporter[id] && count == got.supporterCount[id] {
			continue
		}
		if total == 0 {
			if err := tx.Where("supporter_id = ?", id).Delete(&models.SupporterTotal{}).Error; err != nil {
				return nil, err
			}
			continue
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "supporter_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_amount", "donation_count", "updated_at"}),
		}).Create(&models.SupporterTotal{
			SupporterID:   id,
			TotalAmount:   total,
			DonationCount: count,
			UpdatedAt:     now,
		}).Error; err != nil {
			return nil, err
		}
	}

	for id := range keys(want.totals.PostEarning, got.totals.PostEarning) {
		earning := want.totals.PostEarning[id]
		if earning == got.totals.PostEarning[id] {
			continue
		}
		touched[id] = struct{}{}
		if _, inLedger := want.authorOf[id]; !inLedger {
			if err := tx.Where("post_id = ?", id).Delete(&models.AuthorEarning{}).Error; err != nil {
				return nil, err
			}
			continue
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"author_id", "total_earning", "updated_at"}),
		}).Create(&models.AuthorEarning{
			PostID:       id,
			AuthorID:     want.authorOf[id],
			TotalEarning: earning,
			UpdatedAt:    now,
		}).Error; err != nil {
			return nil, err
		}
	}

	ids := make([]uint, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	return ids, nil
}

func keys(ms ...map[uint]int64) map[uint]struct{} {
	out := make(map[uint]struct{})
	for _, m := range ms {
		for k := range m {
			out[k] = struct{}{}
		}
	}
	return out
}
