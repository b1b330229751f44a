package service

import (
	"context"
	"strconv"
	"time"

	"patronage/internal/cache"
	"patronage/internal/featureflags"
	"patronage/internal/ledger"
	"patronage/internal/middleware"
	"patronage/internal/models"
	"patronage/internal/observability"
	"patronage/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Ranking periods.
const (
	PeriodAll   = "all"
	PeriodMonth = "month"
)

// Ranking scopes.
const (
	ScopeGlobal = "global"
	ScopePost   = "post"
	ScopeAuthor = "author"
)

const dashboardRecentLimit = 50

// LedgerEvents receives committed donations for downstream consumers.
type LedgerEvents interface {
	DonationRecorded(ctx context.Context, d *models.Donation) error
}

// SupportConfig carries the tunables of SupportService.
type SupportConfig struct {
	TopN     int
	CacheTTL time.Duration
	Flags    *featureflags.Manager
	Events   LedgerEvents
}

// SupportService records donations and serves everything derived from the
// ledger: rankings, earnings, histories and the author dashboard.
type SupportService struct {
	donations repository.DonationRepository
	posts     repository.PostRepository
	users     repository.UserRepository
	builder   *ledger.Builder
	flags     *featureflags.Manager
	events    LedgerEvents
	cacheTTL  time.Duration
	now       func() time.Time
}

func NewSupportService(
	donations repository.DonationRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	cfg SupportConfig,
) *SupportService {
	return &SupportService{
		donations: donations,
		posts:     posts,
		users:     users,
		builder:   ledger.NewBuilder(cfg.TopN),
		flags:     cfg.Flags,
		events:    cfg.Events,
		cacheTTL:  cfg.CacheTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type SubmitDonationInput struct {
	SupporterID uint
	PostID      uint
	Amount      int64
}

// SubmitDonationResult is returned to the client after a donation commits.
// TotalSupport is the supporter's cumulative total across every post.
type SubmitDonationResult struct {
	Success          bool   `json:"success"`
	SupportID        string `json:"support_id"`
	PostID           uint   `json:"post_id"`
	AuthorID         uint   `json:"-"`
	SupporterID      uint   `json:"-"`
	Amount           int64  `json:"amount"`
	PlatformFee      int64  `json:"platform_fee"`
	AuthorEarning    int64  `json:"author_earning"`
	TotalSupport     int64  `json:"total_support"`
	PostTotalSupport int64  `json:"post_total_support"`
	Message          string `json:"message"`
}

func (s *SupportService) SubmitDonation(ctx context.Context, in SubmitDonationInput) (*SubmitDonationResult, error) {
	span, ctx := observability.NewSpan(ctx, "support.submit",
		attribute.Int64("donation.amount", in.Amount),
		attribute.Int64("donation.post_id", int64(in.PostID)),
	)
	defer span.End()

	res, err := s.submit(ctx, in)
	if err != nil {
		span.SetError(err)
		observability.DonationRejections.WithLabelValues(errorCode(err)).Inc()
		return nil, err
	}
	span.AddAttributes(attribute.String("donation.support_id", res.SupportID))
	return res, nil
}

func (s *SupportService) submit(ctx context.Context, in SubmitDonationInput) (*SubmitDonationResult, error) {
	if in.SupporterID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required to send support")
	}
	if in.PostID == 0 {
		return nil, models.NewValidationError("post_id is required")
	}
	split, err := ledger.Split(in.Amount)
	if err != nil {
		return nil, models.NewValidationError("amount must be one of 100, 500 or 1000")
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	d := &models.Donation{
		PostID:        post.ID,
		AuthorID:      post.UserID,
		SupporterID:   in.SupporterID,
		Amount:        split.Amount,
		PlatformFee:   split.PlatformFee,
		AuthorEarning: split.AuthorEarning,
	}
	if err := s.donations.Append(ctx, d); err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, post.ID)
	cache.BumpRankingVersion(ctx)

	observability.DonationsTotal.WithLabelValues(strconv.FormatInt(d.Amount, 10)).Inc()
	observability.DonationAmountTotal.WithLabelValues("gross").Add(float64(d.Amount))
	observability.DonationAmountTotal.WithLabelValues("fee").Add(float64(d.PlatformFee))
	observability.DonationAmountTotal.WithLabelValues("author").Add(float64(d.AuthorEarning))

	if s.events != nil {
		if err := s.events.DonationRecorded(ctx, d); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish donation event",
				"support_id", d.Reference, "error", err)
		}
	}

	res := &SubmitDonationResult{
		Success:       true,
		SupportID:     d.Reference,
		PostID:        d.PostID,
		AuthorID:      d.AuthorID,
		SupporterID:   d.SupporterID,
		Amount:        d.Amount,
		PlatformFee:   d.PlatformFee,
		AuthorEarning: d.AuthorEarning,
		Message:       "Thank you for your support!",
	}

	// Counters are read back after commit; the post read bypasses the entry
	// invalidated above.
	if st, err := s.donations.SupporterTotal(ctx, d.SupporterID); err == nil {
		res.TotalSupport = st.TotalAmount
	}
	if fresh, err := s.posts.GetByID(ctx, d.PostID); err == nil {
		res.PostTotalSupport = fresh.TotalSupport
	}

	middleware.Logger.InfoContext(ctx, "donation recorded",
		"support_id", d.Reference,
		"post_id", d.PostID,
		"supporter_id", d.SupporterID,
		"amount", d.Amount,
	)
	return res, nil
}

// RankingQuery selects one leaderboard. At most one of PostID and AuthorID
// may be set; neither means the global ranking.
type RankingQuery struct {
	PostID   uint
	AuthorID uint
	Limit    int
	Period   string
	ViewerID uint
}

type RankingScope struct {
	Type     string `json:"type"`
	PostID   uint   `json:"post_id,omitempty"`
	AuthorID uint   `json:"author_id,omitempty"`
	Period   string `json:"period"`
	Limit    int    `json:"limit"`
}

type RankingResponse struct {
	Entries    []ledger.Entry `json:"entries"`
	Suppressed bool           `json:"suppressed"`
	Reason     ledger.Reason  `json:"reason"`
	BadgeMode  bool           `json:"badge_mode"`
	Scope      RankingScope   `json:"scope"`
}

func (s *SupportService) GetRanking(ctx context.Context, q RankingQuery) (*RankingResponse, error) {
	scope, err := s.normalizeRankingQuery(q)
	if err != nil {
		return nil, err
	}

	span, ctx := observability.NewSpan(ctx, "support.ranking",
		attribute.String("ranking.scope", scope.Type),
		attribute.String("ranking.period", scope.Period),
	)
	defer span.End()

	var (
		policy *ledger.Policy
		id     uint
	)
	switch scope.Type {
	case ScopePost:
		post, err := s.posts.GetByID(ctx, q.PostID)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		// The post entry may be cached with a stale author; settings come from the user record.
		author, err := s.users.GetByID(ctx, post.UserID)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		p := ledger.PolicyFor(author)
		policy, id, scope.AuthorID = &p, post.ID, post.UserID
	case ScopeAuthor:
		author, err := s.users.GetByID(ctx, q.AuthorID)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		p := ledger.PolicyFor(author)
		policy, id = &p, author.ID
	}

	viewer := "public"
	if policy != nil {
		d := policy.Evaluate(scope.AuthorID, q.ViewerID)
		if !d.Visible {
			observability.RankingBuilds.WithLabelValues(scope.Type, "suppressed").Inc()
			r := ledger.Suppressed(d.Reason)
			return &RankingResponse{Entries: r.Entries, Suppressed: true, Reason: r.Reason, Scope: scope}, nil
		}
		if q.ViewerID != 0 && q.ViewerID == scope.AuthorID {
			viewer = "owner"
		}
	}

	build := func(out *RankingResponse) error {
		ranking, err := s.buildRanking(ctx, scope, policy, q.ViewerID)
		if err != nil {
			return err
		}
		*out = RankingResponse{
			Entries:    ranking.Entries,
			Suppressed: ranking.Suppressed,
			Reason:     ranking.Reason,
			BadgeMode:  ranking.BadgeMode,
			Scope:      scope,
		}
		return nil
	}

	var resp RankingResponse
	if !s.flags.Enabled(featureflags.RankingCache, q.ViewerID) || s.cacheTTL <= 0 {
		observability.RankingCacheResults.WithLabelValues("bypass").Inc()
		err = build(&resp)
	} else {
		key := cache.RankingKey(cache.RankingVersion(ctx), scope.Type, id, scope.Period, scope.Limit, viewer)
		loaded := false
		err = cache.Aside(ctx, key, &resp, s.cacheTTL, func() error {
			loaded = true
			return build(&resp)
		})
		if loaded {
			observability.RankingCacheResults.WithLabelValues("miss").Inc()
		} else if err == nil {
			observability.RankingCacheResults.WithLabelValues("hit").Inc()
		}
	}
	if err != nil {
		span.SetError(err)
		observability.RankingBuilds.WithLabelValues(scope.Type, "error").Inc()
		return nil, err
	}

	observability.RankingBuilds.WithLabelValues(scope.Type, "built").Inc()
	return &resp, nil
}

func (s *SupportService) normalizeRankingQuery(q RankingQuery) (RankingScope, error) {
	scope := RankingScope{Type: ScopeGlobal, PostID: q.PostID, AuthorID: q.AuthorID, Period: q.Period}

	switch {
	case q.PostID != 0 && q.AuthorID != 0:
		return scope, models.NewValidationError("post_id and author_id cannot be combined")
	case q.PostID != 0:
		scope.Type = ScopePost
	case q.AuthorID != 0:
		scope.Type = ScopeAuthor
	}

	switch scope.Period {
	case "", PeriodAll:
		scope.Period = PeriodAll
	case PeriodMonth:
		if !s.flags.Enabled(featureflags.MonthlyRanking, q.ViewerID) {
			return scope, models.NewValidationError("monthly ranking is not available")
		}
	default:
		return scope, models.NewValidationError("period must be all or month")
	}

	if q.Limit < 0 || q.Limit > ledger.MaxTopN {
		return scope, models.NewValidationError("limit must be between 1 and 100")
	}
	scope.Limit = ledger.ClampTopN(q.Limit, s.builder.TopN())
	return scope, nil
}

func (s *SupportService) buildRanking(ctx context.Context, scope RankingScope, policy *ledger.Policy, viewerID uint) (ledger.Ranking, error) {
	var since time.Time
	if scope.Period == PeriodMonth {
		since = monthStart(s.now())
	}

	var (
		totals []ledger.SupporterAmount
		err    error
	)
	if scope.Type == ScopeGlobal && since.IsZero() {
		totals, err = s.donations.TopSupporters(ctx, scope.Limit)
	} else {
		rs := repository.Scope{Since: since, Limit: scope.Limit}
		if scope.Type == ScopePost {
			rs.PostID = scope.PostID
		} else if scope.Type == ScopeAuthor {
			rs.AuthorID = scope.AuthorID
		}
		totals, err = s.donations.SumBySupporter(ctx, rs)
	}
	if err != nil {
		return ledger.Ranking{}, err
	}

	ids := make([]uint, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.SupporterID)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return ledger.Ranking{}, err
	}
	profiles := make(map[uint]ledger.Profile, len(users))
	for _, u := range users {
		profiles[u.ID] = ledger.Profile{DisplayName: u.DisplayName, Avatar: u.Avatar, IsAnonymous: u.IsAnonymous}
	}

	return s.builder.Build(totals, profiles, ledger.BuildOptions{
		TopN:     scope.Limit,
		Policy:   policy,
		AuthorID: scope.AuthorID,
		ViewerID: viewerID,
	}), nil
}

// GetAuthorEarnings returns the net amount credited to the author of postID.
func (s *SupportService) GetAuthorEarnings(ctx context.Context, postID uint) (int64, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return 0, err
	}
	var earnings int64
	err := cache.Aside(ctx, cache.EarningsKey(postID), &earnings, cache.EarningsTTL, func() error {
		v, err := s.donations.AuthorEarning(ctx, postID)
		earnings = v
		return err
	})
	return earnings, err
}

type SupportHistory struct {
	Supports      []models.Donation `json:"supports"`
	TotalAmount   int64             `json:"total_amount"`
	DonationCount int64             `json:"donation_count"`
	HighestBadge  ledger.Badge      `json:"highest_badge"`
}

// ListSupporterDonations returns supporterID's own donations, newest first.
func (s *SupportService) ListSupporterDonations(ctx context.Context, supporterID uint, limit, offset int) (*SupportHistory, error) {
	records, err := s.donations.Query(ctx, ledger.Filter{
		SupporterID: supporterID,
		Newest:      true,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}
	st, err := s.donations.SupporterTotal(ctx, supporterID)
	if err != nil {
		return nil, err
	}
	return &SupportHistory{
		Supports:      records,
		TotalAmount:   st.TotalAmount,
		DonationCount: st.DonationCount,
		HighestBadge:  ledger.HighestBadge(st.TotalAmount),
	}, nil
}

// ListPostDonations returns recent donations to a post. Only its author may
// read them.
func (s *SupportService) ListPostDonations(ctx context.Context, postID, viewerID uint, limit, offset int) ([]models.Donation, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if viewerID == 0 || post.UserID != viewerID {
		return nil, models.NewForbiddenError("Only the author can view supports for this post")
	}
	return s.donations.Query(ctx, ledger.Filter{PostID: postID, Newest: true, Limit: limit, Offset: offset})
}

type Dashboard struct {
	TotalEarnings  int64                  `json:"total_earnings"`
	TotalSupport   int64                  `json:"total_support"`
	DonationCount  int64                  `json:"donation_count"`
	Posts          []repository.PostStats `json:"posts"`
	RecentSupports []models.Donation      `json:"recent_supports"`
}

func (s *SupportService) Dashboard(ctx context.Context, authorID uint) (*Dashboard, error) {
	stats, err := s.donations.AuthorPostStats(ctx, authorID)
	if err != nil {
		return nil, err
	}
	recent, err := s.donations.Query(ctx, ledger.Filter{AuthorID: authorID, Newest: true, Limit: dashboardRecentLimit})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Posts: stats, RecentSupports: recent}
	for _, p := range stats {
		d.TotalEarnings += p.Earnings
		d.TotalSupport += p.TotalSupport
		d.DonationCount += p.SupportCount
	}
	return d, nil
}

type SupportSummary struct {
	UserID        uint         `json:"user_id"`
	DisplayName   string       `json:"display_name,omitempty"`
	IsAnonymous   bool         `json:"is_anonymous"`
	TotalAmount   int64        `json:"total_amount"`
	DonationCount int64        `json:"donation_count"`
	HighestBadge  ledger.Badge `json:"highest_badge"`
}

// SupportSummary describes a supporter's lifetime giving. Anonymous
// supporters are returned without a name.
func (s *SupportService) SupportSummary(ctx context.Context, userID uint) (*SupportSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := s.donations.SupporterTotal(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum := &SupportSummary{
		UserID:        user.ID,
		IsAnonymous:   user.IsAnonymous,
		TotalAmount:   st.TotalAmount,
		DonationCount: st.DonationCount,
		HighestBadge:  ledger.HighestBadge(st.TotalAmount),
	}
	if !user.IsAnonymous {
		sum.DisplayName = user.DisplayName
	}
	return sum, nil
}

// Reconcile rebuilds cached aggregates from the ledger and retires every
// cached ranking when anything was corrected.
func (s *SupportService) Reconcile(ctx context.Context) (ledger.DriftReport, error) {
	span, ctx := observability.NewSpan(ctx, "support.reconcile")
	defer span.End()

	report, err := s.donations.Reconcile(ctx)
	if err != nil {
		span.SetError(err)
		return report, err
	}
	if report.Any() {
		cache.BumpRankingVersion(ctx)
		middleware.Logger.WarnContext(ctx, "ledger aggregates drifted and were repaired",
			"posts", report.Posts, "supporters", report.Supporters, "earnings", report.Earnings)
	}
	return report, nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func errorCode(err error) string {
	for _, code := range []string{
		models.CodeValidation, models.CodeUnauthorized, models.CodeNotFound,
		models.CodeForbidden, models.CodePersistence,
	} {
		if models.IsCode(err, code) {
			return code
		}
	}
	return models.CodeInternal
}
