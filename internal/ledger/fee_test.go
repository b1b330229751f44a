package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount  int64
		fee     int64
		earning int64
	}{
		{100, 10, 90},
		{500, 50, 450},
		{1000, 100, 900},
	}

	for _, tt := range tests {
		got, err := Split(tt.amount)
		require.NoError(t, err)
		assert.Equal(t, tt.fee, got.PlatformFee)
		assert.Equal(t, tt.earning, got.AuthorEarning)
		assert.Equal(t, tt.amount, got.PlatformFee+got.AuthorEarning)
		assert.Equal(t, tt.amount*FeeRatePercent/100, got.PlatformFee)
	}
}

func TestSplit_RejectsOtherAmounts(t *testing.T) {
	t.Parallel()

	for _, amount := range []int64{0, -100, 1, 99, 250, 999, 1001, 5000} {
		_, err := Split(amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}
}

func TestDenominations_ReturnsCopy(t *testing.T) {
	t.Parallel()

	d := Denominations()
	d[0] = 7
	assert.Equal(t, []int64{100, 500, 1000}, Denominations())
	assert.False(t, ValidAmount(7))
}

func TestBadgeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount int64
		tier   Tier
	}{
		{0, TierBronze},
		{999, TierBronze},
		{1000, TierSilver},
		{1999, TierSilver},
		{2000, TierGold},
		{4999, TierGold},
		{5000, TierPlatinum},
		{9999, TierPlatinum},
		{10000, TierDiamond},
		{250000, TierDiamond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.tier, BadgeFor(tt.amount).Tier, "amount %d", tt.amount)
	}
}

func TestHighestBadge(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TierBronze, HighestBadge().Tier)
	assert.Equal(t, TierGold, HighestBadge(100, 2500, 900).Tier)
	assert.Equal(t, "Diamond", HighestBadge(10000).Label)
}

func TestReference(t *testing.T) {
	t.Parallel()

	ref, err := NewReference()
	require.NoError(t, err)
	assert.True(t, ValidReference(ref))
	assert.Regexp(t, `^support_[0-9a-z]{26}$`, ref)

	other, err := NewReference()
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)

	assert.False(t, ValidReference("post_01h455vb4pex5vsknk084sn02q"))
	assert.False(t, ValidReference("support_"))
}
