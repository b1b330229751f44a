package ledger

import "patronage/internal/models"

// Reason explains why a ranking was suppressed.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonHidden    Reason = "hidden"
	ReasonOwnerOnly Reason = "owner_only"
)

// Policy is an author's ranking visibility configuration.
type Policy struct {
	Mode         models.RankingDisplayMode
	ShowRankMode bool
}

// PolicyFor reads the policy stored on an author profile.
func PolicyFor(author *models.User) Policy {
	if author == nil {
		return Policy{Mode: models.RankingPublic}
	}
	return Policy{Mode: author.DisplayMode(), ShowRankMode: author.ShowRankMode}
}

// Decision is the outcome of evaluating a policy for one viewer.
type Decision struct {
	Visible bool
	Reason  Reason
}

// Evaluate decides whether viewerID may see the ranking of authorID.
// A zero viewerID is an unauthenticated viewer. Unknown modes are treated as hidden.
func (p Policy) Evaluate(authorID, viewerID uint) Decision {
	switch p.Mode {
	case models.RankingPublic, "":
		return Decision{Visible: true}
	case models.RankingPrivate:
		if viewerID != 0 && viewerID == authorID {
			return Decision{Visible: true}
		}
		return Decision{Reason: ReasonOwnerOnly}
	default:
		return Decision{Reason: ReasonHidden}
	}
}
