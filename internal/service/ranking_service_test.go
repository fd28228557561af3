package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genimage/internal/metrics"
	"genimage/internal/models"
)

func newRanking(f *fixture, m *metrics.Metrics) *RankingService {
	return NewRankingService(f.images, 30, 100, m, zerolog.Nop())
}

func (f *fixture) react(t *testing.T, imageID string, liked, disliked []string) {
	t.Helper()
	image := f.image(t, imageID)
	for _, id := range liked {
		image.SetState(id, models.ReactionLiked)
	}
	for _, id := range disliked {
		image.SetState(id, models.ReactionDisliked)
	}
	require.NoError(t, f.images.Save(context.Background(), image))
}

func infoIDs(infos []models.ImageInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.ID)
	}
	return out
}

func TestPopularOrdersByNetReactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now()
	for _, id := range []string{"a", "b", "c", "d"} {
		f.addImage(t, id, now)
	}
	f.react(t, "a", []string{"u1", "u2"}, nil)
	f.react(t, "b", []string{"u1"}, []string{"u2"})
	f.react(t, "c", nil, []string{"u1", "u2"})
	f.react(t, "d", []string{"u3"}, nil)

	got, err := newRanking(f, metrics.NewNop()).Popular(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "b", "c"}, infoIDs(got))
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Popularity, got[i].Popularity)
	}
	assert.Equal(t, 2, got[0].Popularity)
	assert.Equal(t, -2, got[3].Popularity)
}

func TestPopularityMovesByOnePerReaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice")
	f.addImage(t, "img-1", time.Now())
	reactions := f.reactions()

	score := func() int { return f.image(t, "img-1").Popularity() }

	_, err := reactions.Toggle(ctx, "img-1", "alice", models.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, 1, score())

	_, err = reactions.Toggle(ctx, "img-1", "alice", models.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, -1, score())

	_, err = reactions.Toggle(ctx, "img-1", "alice", models.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, 0, score())
}

func TestRecentNewestFirstAndClamped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		f.addImage(t, fmt.Sprintf("img-%02d", i), base.Add(time.Duration(i)*time.Hour))
	}
	svc := newRanking(f, metrics.NewNop())

	got, err := svc.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"img-39", "img-38", "img-37"}, infoIDs(got))

	for _, limit := range []int{0, -1, 31, 500} {
		got, err = svc.Recent(ctx, limit)
		require.NoError(t, err)
		assert.Len(t, got, 30, "limit %d", limit)
	}
}

func TestRandomDistinctAndBounded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 45; i++ {
		f.addImage(t, fmt.Sprintf("img-%02d", i), time.Now())
	}
	svc := newRanking(f, metrics.NewNop())

	got, err := svc.Random(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 30)
	seen := map[string]bool{}
	for _, info := range got {
		assert.False(t, seen[info.ID], "duplicate %s", info.ID)
		seen[info.ID] = true
	}

	got, err = svc.Random(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestRandomSmallCollection(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		f.addImage(t, id, time.Now())
	}
	got, err := newRanking(f, metrics.NewNop()).Random(context.Background(), 30)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, infoIDs(got))
}

func TestRankingEmptyCollection(t *testing.T) {
	ctx := context.Background()
	svc := newRanking(newFixture(t), metrics.NewNop())

	got, err := svc.Popular(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = svc.Random(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.images.Create(ctx, models.Image{ID: "cat", Prompt: "a cat on a sofa", Model: "sdxl", CreatedAt: time.Now()}))
	require.NoError(t, f.images.Create(ctx, models.Image{ID: "dog", Prompt: "a dog in the rain", Model: "sdxl", CreatedAt: time.Now()}))
	svc := newRanking(f, metrics.NewNop())

	got, err := svc.Search(ctx, "  cat ")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, infoIDs(got))

	_, err = svc.Search(ctx, "   ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "required", verr.Fields["prompt"])
}

func TestRankingCountsConflictedImages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addImage(t, "img-1", time.Now())
	image := f.image(t, "img-1")
	image.LikedBy.Add("alice")
	image.DislikedBy.Add("alice")
	require.NoError(t, f.images.Save(ctx, image))

	m := metrics.NewNop()
	got, err := newRanking(f, m).Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Inconsistent.WithLabelValues(invariantDisjoint)))
}
