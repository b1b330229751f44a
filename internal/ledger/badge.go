package ledger

// Tier names a supporter badge level.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// Badge is the tiered rendering of a supporter amount.
type Badge struct {
	Tier  Tier   `json:"tier"`
	Label string `json:"label"`
}

var tiers = []struct {
	min   int64
	badge Badge
}{
	{10000, Badge{TierDiamond, "Diamond"}},
	{5000, Badge{TierPlatinum, "Platinum"}},
	{2000, Badge{TierGold, "Gold"}},
	{1000, Badge{TierSilver, "Silver"}},
}

// BadgeFor returns the tier reached by amount.
func BadgeFor(amount int64) Badge {
	for _, t := range tiers {
		if amount >= t.min {
			return t.badge
		}
	}
	return Badge{TierBronze, "Bronze"}
}

// HighestBadge returns the badge for the largest of amounts, bronze when empty.
func HighestBadge(amounts ...int64) Badge {
	var highest int64
	for _, a := range amounts {
		if a > highest {
			highest = a
		}
	}
	return BadgeFor(highest)
}
