package ledger

import (
	"fmt"
	"sort"
)

const (
	// DefaultTopN is the leaderboard length when none is configured.
	DefaultTopN = 10
	// MaxTopN caps any requested leaderboard length.
	MaxTopN = 100
	// AnonymousLabel replaces the name of supporters who chose anonymity.
	AnonymousLabel = "Anonymous Supporter"
)

// SupporterAmount is one supporter's total within some scope.
type SupporterAmount struct {
	SupporterID uint
	Total       int64
}

// Profile holds the display attributes of a supporter.
type Profile struct {
	DisplayName string
	Avatar      string
	IsAnonymous bool
}

// Entry is one leaderboard row. Amount is nil when the author renders badges instead.
type Entry struct {
	Rank        int    `json:"rank"`
	SupporterID uint   `json:"supporter_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
	Amount      *int64 `json:"amount"`
	Badge       *Badge `json:"badge,omitempty"`
}

// Ranking is a built leaderboard, or a suppressed one with the reason.
type Ranking struct {
	Entries    []Entry `json:"entries"`
	Suppressed bool    `json:"suppressed"`
	Reason     Reason  `json:"reason,omitempty"`
	BadgeMode  bool    `json:"badge_mode"`
}

// BuildOptions scope a build. Policy is nil for unscoped (global) rankings.
type BuildOptions struct {
	TopN     int
	Policy   *Policy
	AuthorID uint
	ViewerID uint
}

// Builder produces leaderboards from supporter totals.
type Builder struct {
	topN int
}

// NewBuilder returns a builder whose default length is topN, or DefaultTopN when topN is not positive.
func NewBuilder(topN int) *Builder {
	return &Builder{topN: ClampTopN(topN, DefaultTopN)}
}

// TopN is the builder's default leaderboard length.
func (b *Builder) TopN() int {
	return b.topN
}

// ClampTopN bounds n to 1..MaxTopN, falling back to def when n is not positive.
func ClampTopN(n, def int) int {
	if n <= 0 {
		n = def
	}
	if n <= 0 {
		n = DefaultTopN
	}
	if n > MaxTopN {
		n = MaxTopN
	}
	return n
}

// Build sorts totals by amount descending with supporter id ascending as the
// tie-break, truncates, and assigns sequential 1-based ranks.
func (b *Builder) Build(totals []SupporterAmount, profiles map[uint]Profile, opts BuildOptions) Ranking {
	badgeMode := false
	if opts.Policy != nil {
		d := opts.Policy.Evaluate(opts.AuthorID, opts.ViewerID)
		if !d.Visible {
			return Suppressed(d.Reason)
		}
		badgeMode = opts.Policy.ShowRankMode
	}

	ranked := make([]SupporterAmount, 0, len(totals))
	for _, t := range totals {
		if t.Total > 0 {
			ranked = append(ranked, t)
		}
	}
	SortTotals(ranked)

	n := ClampTopN(opts.TopN, b.topN)
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	entries := make([]Entry, 0, len(ranked))
	for i, t := range ranked {
		e := Entry{Rank: i + 1, SupporterID: t.SupporterID}
		p, ok := profiles[t.SupporterID]
		switch {
		case ok && p.IsAnonymous:
			e.DisplayName = AnonymousLabel
			e.IsAnonymous = true
		case ok && p.DisplayName != "":
			e.DisplayName = p.DisplayName
			e.Avatar = p.Avatar
		default:
			e.DisplayName = PlaceholderName(t.SupporterID)
			if ok {
				e.Avatar = p.Avatar
			}
		}
		if badgeMode {
			badge := BadgeFor(t.Total)
			e.Badge = &badge
		} else {
			amount := t.Total
			e.Amount = &amount
		}
		entries = append(entries, e)
	}

	return Ranking{Entries: entries, BadgeMode: badgeMode}
}

// Suppressed returns an empty ranking carrying reason.
func Suppressed(reason Reason) Ranking {
	return Ranking{Entries: []Entry{}, Suppressed: true, Reason: reason}
}

// SortTotals orders by total descending, then supporter id ascending.
func SortTotals(totals []SupporterAmount) {
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].SupporterID < totals[j].SupporterID
	})
}

// PlaceholderName is shown for supporters without a usable profile.
func PlaceholderName(supporterID uint) string {
	return fmt.Sprintf("User%04d", supporterID%10000)
}
