// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"time"

	"patronage/internal/ledger"
	"patronage/internal/models"
	"patronage/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope narrows an aggregate query over the donation ledger.
type Scope struct {
	PostID   uint
	AuthorID uint
	Since    time.Time
	Limit    int
}

// PostStats is one row of an author's dashboard.
type PostStats struct {
	PostID       uint   `json:"post_id"`
	Title        string `json:"title"`
	TotalSupport int64  `json:"total_support"`
	SupportCount int64  `json:"support_count"`
	Earnings     int64  `json:"earnings"`
}

// StatementLine aggregates one author's donations on one post over a period.
type StatementLine struct {
	AuthorID  uint
	PostID    uint
	Donations int64
	Gross     int64
	Fees      int64
	Net       int64
}

// DonationRepository persists the donation ledger and its cached aggregates.
type DonationRepository interface {
	ledger.Store
	SupporterTotal(ctx context.Context, supporterID uint) (models.SupporterTotal, error)
	TopSupporters(ctx context.Context, limit int) ([]ledger.SupporterAmount, error)
	SumBySupporter(ctx context.Context, scope Scope) ([]ledger.SupporterAmount, error)
	AuthorEarning(ctx context.Context, postID uint) (int64, error)
	AuthorPostStats(ctx context.Context, authorID uint) ([]PostStats, error)
	Statements(ctx context.Context, from, to time.Time) ([]StatementLine, error)
	Reconcile(ctx context.Context) (ledger.DriftReport, error)
}

type donationRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
	now     func() time.Time
}

// NewDonationRepository returns a DonationRepository backed by db.
func NewDonationRepository(db *gorm.DB) DonationRepository {
	return &donationRepository{
		db:      db,
		metrics: observability.NewDatabaseMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append inserts d and moves every cached aggregate in the same transaction.
// The post row is updated first so concurrent donations to one post serialize
// on its row lock.
func (r *donationRepository) Append(ctx context.Context, d *models.Donation) error {
	if !ledger.Balanced(d) {
		return models.NewValidationError(ledger.ErrUnbalancedRecord.Error())
	}
	if d.Reference == "" {
		ref, err := ledger.NewReference()
		if err != nil {
			return models.NewInternalError(err)
		}
		d.Reference = ref
	}

	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "Append", "donations")
	defer span.End()
	defer r.metrics.TrackQuery("append", "donations")()

	now := r.now()
	record := *d
	record.ID = 0
	record.CreatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ?", record.PostID).
			Updates(map[string]interface{}{
				"total_support": gorm.Expr("total_support + ?", record.Amount),
				"support_count": gorm.Expr("support_count + ?", 1),
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", record.PostID)
		}

		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "supporter_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_amount":   gorm.Expr("supporter_totals.total_amount + ?", record.Amount),
				"donation_count": gorm.Expr("supporter_totals.donation_count + ?", 1),
				"updated_at":     now,
			}),
		}).Create(&models.SupporterTotal{
			SupporterID:   record.SupporterID,
			TotalAmount:   record.Amount,
			DonationCount: 1,
			UpdatedAt:     now,
		}).Error; err != nil {
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "post_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_earning": gorm.Expr("author_earnings.total_earning + ?", record.AuthorEarning),
				"updated_at":    now,
			}),
		}).Create(&models.AuthorEarning{
			PostID:       record.PostID,
			AuthorID:     record.AuthorID,
			TotalEarning: record.AuthorEarning,
			UpdatedAt:    now,
		}).Error
	})
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return translateError(err, "Post", record.PostID)
	}

	*d = record
	return nil
}

// Query implements ledger.Store.
func (r *donationRepository) Query(ctx context.Context, f ledger.Filter) ([]models.Donation, error) {
	q := r.db.WithContext(ctx).Model(&models.Donation{})
	if f.PostID != 0 {
		q = q.Where("post_id = ?", f.PostID)
	}
	if f.SupporterID != 0 {
		q = q.Where("supporter_id = ?", f.SupporterID)
	}
	if f.AuthorID != 0 {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}
	if f.Newest {
		q = q.Order("created_at DESC").Order("id DESC")
	} else {
		q = q.Order("id ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	out := []models.Donation{}
	if err := q.Find(&out).Error; err != nil {
		return nil, translateError(err, "Donation", 0)
	}
	return out, nil
}

// SupporterTotal returns the cached cumulative total; supporters who never
// donated get a zero row.
func (r *donationRepository) SupporterTotal(ctx context.Context, supporterID uint) (models.SupporterTotal, error) {
	st := models.SupporterTotal{SupporterID: supporterID}
	if err := r.db.WithContext(ctx).Where("supporter_id = ?", supporterID).Limit(1).Find(&st).Error; err != nil {
		return st, translateError(err, "Supporter", supporterID)
	}
	return st, nil
}

// TopSupporters reads the global ranking straight from the cached totals.
func (r *donationRepository) TopSupporters(ctx context.Context, limit int) ([]ledger.SupporterAmount, error) {
	out := []ledger.SupporterAmount{}
	q := r.db.WithContext(ctx).Model(&models.SupporterTotal{}).
		Select("supporter_id, total_amount AS total").
		Where("total_amount > 0").
		Order("total_amount DESC").
		Order("supporter_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&out).Error; err != nil {
		return nil, translateError(err, "Supporter", 0)
	}
	return out, nil
}

// SumBySupporter totals donations per supporter inside scope, largest first.
func (r *donationRepository) SumBySupporter(ctx context.Context, scope Scope) ([]ledger.SupporterAmount, error) {
	defer r.metrics.TrackQuery("sum_by_supporter", "donations")()

	q := r.db.WithContext(ctx).Model(&models.Donation{}).
		Select("supporter_id, SUM(amount) AS total")
	if scope.PostID != 0 {
		q = q.Where("post_id = ?", scope.PostID)
	}
	if scope.AuthorID != 0 {
		q = q.Where("author_id = ?", scope.AuthorID)
	}
	if !scope.Since.IsZero() {
		q = q.Where("created_at >= ?", scope.Since.UTC())
	}
	q = q.Group("supporter_id").
		Having("SUM(amount) > 0").
		Order("total DESC").
		Order("supporter_id ASC")
	if scope.Limit > 0 {
		q = q.Limit(scope.Limit)
	}

	out := []ledger.SupporterAmount{}
	if err := q.Scan(&out).Error; err != nil {
		return nil, translateError(err, "Donation", 0)
	}
	return out, nil
}

// AuthorEarning returns the net amount credited for postID.
func (r *donationRepository) AuthorEarning(ctx context.Context, postID uint) (int64, error) {
	var ae models.AuthorEarning
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Limit(1).Find(&ae).Error; err != nil {
		return 0, translateError(err, "Post", postID)
	}
	return ae.TotalEarning, nil
}

func (r *donationRepository) AuthorPostStats(ctx context.Context, authorID uint) ([]PostStats, error) {
	out := []PostStats{}
	err := r.db.WithContext(ctx).Table("posts").
		Select("posts.id AS post_id, posts.title, posts.total_support, posts.support_count, COALESCE(author_earnings.total_earning, 0) AS earnings").
		Joins("LEFT JOIN author_earnings ON author_earnings.post_id = posts.id").
		Where("posts.user_id = ? AND posts.deleted_at IS NULL", authorID).
		Order("posts.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, translateError(err, "User", authorID)
	}
	return out, nil
}

// Statements aggregates donations created in [from, to) per author and post.
func (r *donationRepository) Statements(ctx context.Context, from, to time.Time) ([]StatementLine, error) {
	out := []StatementLine{}
	err := r.db.WithContext(ctx).Model(&models.Donation{}).
		Select("author_id, post_id, COUNT(*) AS donations, SUM(amount) AS gross, SUM(platform_fee) AS fees, SUM(author_earning) AS net").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Group("author_id, post_id").
		Order("author_id ASC").
		Order("post_id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, translateError(err, "Donation", 0)
	}
	return out, nil
}
