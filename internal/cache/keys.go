package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	UserKeyPrefix     = "user:%d"
	PostKeyPrefix     = "post:%d"
	EarningsKeyPrefix = "earnings:post:%d"
	RankingVersionKey = "rank:ver"
)

const (
	UserTTL     = 5 * time.Minute
	PostTTL     = 2 * time.Minute
	EarningsTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func EarningsKey(postID uint) string {
	return fmt.Sprintf(EarningsKeyPrefix, postID)
}

// RankingVersion returns the current ranking generation. Every recorded
// donation bumps it, which retires all ranking keys built on older data.
func RankingVersion(ctx context.Context) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, RankingVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

// BumpRankingVersion invalidates every cached ranking.
func BumpRankingVersion(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, RankingVersionKey)
	}
}

// RankingKey identifies one rendered ranking. viewer distinguishes the owner
// view from the public view of a private ranking.
func RankingKey(version int64, scope string, id uint, period string, topN int, viewer string) string {
	return "rank:v" + strconv.FormatInt(version, 10) + ":" + scope + ":" +
		strconv.FormatUint(uint64(id), 10) + ":" + period + ":" + strconv.Itoa(topN) + ":" + viewer
}

// InvalidateUser drops the cached profile for userID.
func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidatePost drops cached post and earnings entries for postID.
func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID), EarningsKey(postID))
}
