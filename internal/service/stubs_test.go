package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"patronage/internal/ledger"
	"patronage/internal/models"
	"patronage/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn     func(context.Context, *models.Post) error
	getByIDFn    func(context.Context, uint) (*models.Post, error)
	listFn       func(context.Context, int, int, string) ([]models.Post, error)
	listByUserFn func(context.Context, uint, int, int) ([]models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int, sort string) ([]models.Post, error) {
	return s.listFn(ctx, limit, offset, sort)
}
func (s *postRepoStub) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error) {
	return s.listByUserFn(ctx, userID, limit, offset)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:     func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:    func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listFn:       func(_ context.Context, _, _ int, _ string) ([]models.Post, error) { return nil, nil },
		listByUserFn: func(_ context.Context, _ uint, _, _ int) ([]models.Post, error) { return nil, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByIDsFn      func(context.Context, []uint) ([]models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	setAdminFn      func(context.Context, uint, bool) error
	listAdminsFn    func(context.Context) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, id uint, admin bool) error {
	return s.setAdminFn(ctx, id, admin)
}
func (s *userRepoStub) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.listAdminsFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:       func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByIDsFn:      func(_ context.Context, _ []uint) ([]models.User, error) { return nil, nil },
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) { return nil, models.NewNotFoundError("User", 0) },
		createFn:        func(_ context.Context, _ *models.User) error { return nil },
		updateFn:        func(_ context.Context, _ *models.User) error { return nil },
		setAdminFn:      func(_ context.Context, _ uint, _ bool) error { return nil },
		listAdminsFn:    func(_ context.Context) ([]models.User, error) { return nil, nil },
	}
}

// donationRepoStub is a stub for repository.DonationRepository.
type donationRepoStub struct {
	appendFn          func(context.Context, *models.Donation) error
	queryFn           func(context.Context, ledger.Filter) ([]models.Donation, error)
	supporterTotalFn  func(context.Context, uint) (models.SupporterTotal, error)
	topSupportersFn   func(context.Context, int) ([]ledger.SupporterAmount, error)
	sumBySupporterFn  func(context.Context, repository.Scope) ([]ledger.SupporterAmount, error)
	authorEarningFn   func(context.Context, uint) (int64, error)
	authorPostStatsFn func(context.Context, uint) ([]repository.PostStats, error)
	statementsFn      func(context.Context, time.Time, time.Time) ([]repository.StatementLine, error)
	reconcileFn       func(context.Context) (ledger.DriftReport, error)
}

func (s *donationRepoStub) Append(ctx context.Context, d *models.Donation) error {
	return s.appendFn(ctx, d)
}
func (s *donationRepoStub) Query(ctx context.Context, f ledger.Filter) ([]models.Donation, error) {
	return s.queryFn(ctx, f)
}
func (s *donationRepoStub) SupporterTotal(ctx context.Context, id uint) (models.SupporterTotal, error) {
	return s.supporterTotalFn(ctx, id)
}
func (s *donationRepoStub) TopSupporters(ctx context.Context, limit int) ([]ledger.SupporterAmount, error) {
	return s.topSupportersFn(ctx, limit)
}
func (s *donationRepoStub) SumBySupporter(ctx context.Context, scope repository.Scope) ([]ledger.SupporterAmount, error) {
	return s.sumBySupporterFn(ctx, scope)
}
func (s *donationRepoStub) AuthorEarning(ctx context.Context, postID uint) (int64, error) {
	return s.authorEarningFn(ctx, postID)
}
func (s *donationRepoStub) AuthorPostStats(ctx context.Context, authorID uint) ([]repository.PostStats, error) {
	return s.authorPostStatsFn(ctx, authorID)
}
func (s *donationRepoStub) Statements(ctx context.Context, from, to time.Time) ([]repository.StatementLine, error) {
	return s.statementsFn(ctx, from, to)
}
func (s *donationRepoStub) Reconcile(ctx context.Context) (ledger.DriftReport, error) {
	return s.reconcileFn(ctx)
}

func noopDonationRepo() *donationRepoStub {
	return &donationRepoStub{
		appendFn: func(_ context.Context, d *models.Donation) error {
			d.ID = 1
			d.Reference = "support_test"
			return nil
		},
		queryFn: func(_ context.Context, _ ledger.Filter) ([]models.Donation, error) { return []models.Donation{}, nil },
		supporterTotalFn: func(_ context.Context, id uint) (models.SupporterTotal, error) {
			return models.SupporterTotal{SupporterID: id}, nil
		},
		topSupportersFn:   func(_ context.Context, _ int) ([]ledger.SupporterAmount, error) { return nil, nil },
		sumBySupporterFn:  func(_ context.Context, _ repository.Scope) ([]ledger.SupporterAmount, error) { return nil, nil },
		authorEarningFn:   func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		authorPostStatsFn: func(_ context.Context, _ uint) ([]repository.PostStats, error) { return nil, nil },
		statementsFn: func(_ context.Context, _, _ time.Time) ([]repository.StatementLine, error) {
			return nil, nil
		},
		reconcileFn: func(_ context.Context) (ledger.DriftReport, error) { return ledger.DriftReport{}, nil },
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}
