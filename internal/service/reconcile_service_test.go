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

	"genimage/internal/lock"
	"genimage/internal/metrics"
	"genimage/internal/models"
)

func (f *fixture) reconciler(m *metrics.Metrics) *Reconciler {
	return NewReconciler(f.images, f.users, f.locker, 2, m, zerolog.Nop())
}

func TestRepairPairImageWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice")
	f.addImage(t, "img-1", time.Now())
	f.react(t, "img-1", []string{"alice"}, nil)

	m := metrics.NewNop()
	changed, err := f.reconciler(m).RepairPair(ctx, "img-1", "alice")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ReactionLiked, f.user(t, "alice").StateOf("img-1"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Repairs.WithLabelValues("user")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Repairs.WithLabelValues("image")))

	changed, err = f.reconciler(m).RepairPair(ctx, "img-1", "alice")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRepairPairClearsUserOnlyReaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice")
	f.addImage(t, "img-1", time.Now())
	user := f.user(t, "alice")
	user.SetState("img-1", models.ReactionDisliked)
	require.NoError(t, f.users.Save(ctx, user))

	changed, err := f.reconciler(metrics.NewNop()).RepairPair(ctx, "img-1", "alice")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ReactionNone, f.user(t, "alice").StateOf("img-1"))
}

func TestRepairPairResetsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice")
	f.addImage(t, "img-1", time.Now())
	image := f.image(t, "img-1")
	image.LikedBy.Add("alice")
	image.DislikedBy.Add("alice")
	require.NoError(t, f.images.Save(ctx, image))
	user := f.user(t, "alice")
	user.SetState("img-1", models.ReactionLiked)
	require.NoError(t, f.users.Save(ctx, user))

	changed, err := f.reconciler(metrics.NewNop()).RepairPair(ctx, "img-1", "alice")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, f.image(t, "img-1").Conflicts())
	assert.Equal(t, models.ReactionNone, f.image(t, "img-1").StateOf("alice"))
	assert.Equal(t, models.ReactionNone, f.user(t, "alice").StateOf("img-1"))
}

func TestRepairPairMissingDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice")
	f.addImage(t, "img-1", time.Now())
	f.react(t, "img-1", []string{"ghost"}, nil)
	user := f.user(t, "alice")
	user.SetState("gone", models.ReactionLiked)
	require.NoError(t, f.users.Save(ctx, user))

	r := f.reconciler(metrics.NewNop())

	changed, err := r.RepairPair(ctx, "img-1", "ghost")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, f.image(t, "img-1").LikedBy.Len())

	changed, err = r.RepairPair(ctx, "gone", "alice")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, f.user(t, "alice").LikedImages.Len())
}

func TestRepairPairBusyUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.locker = lock.NewLocalLocker(10 * time.Millisecond)
	release, err := f.locker.Lock(ctx, lock.UserKey("alice"))
	require.NoError(t, err)
	defer release()

	_, err = f.reconciler(metrics.NewNop()).RepairPair(ctx, "img-1", "alice")
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
}

func TestSweepHealsAllDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.addUser(t, fmt.Sprintf("u%d", i))
		f.addImage(t, fmt.Sprintf("img-%d", i), time.Now())
	}
	reactions := f.reactions()
	_, err := reactions.Toggle(ctx, "img-0", "u0", models.ReactionLike)
	require.NoError(t, err)
	_, err = reactions.Toggle(ctx, "img-1", "u1", models.ReactionDislike)
	require.NoError(t, err)

	// image-only like, user-only dislike, a conflict and a dangling reactor
	f.react(t, "img-2", []string{"u2"}, nil)
	user := f.user(t, "u3")
	user.SetState("img-3", models.ReactionDisliked)
	require.NoError(t, f.users.Save(ctx, user))
	image := f.image(t, "img-4")
	image.LikedBy.Add("u4")
	image.DislikedBy.Add("u4")
	image.LikedBy.Add("ghost")
	require.NoError(t, f.images.Save(ctx, image))

	report, err := f.reconciler(metrics.NewNop()).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Images)
	assert.Equal(t, 5, report.Users)
	assert.Equal(t, 4, report.Repaired)
	assert.Zero(t, report.Failed)

	for i := 0; i < 5; i++ {
		imageID := fmt.Sprintf("img-%d", i)
		img := f.image(t, imageID)
		assert.Empty(t, img.Conflicts(), imageID)
		for j := 0; j < 5; j++ {
			userID := fmt.Sprintf("u%d", j)
			assert.Equal(t, img.StateOf(userID), f.user(t, userID).StateOf(imageID), "%s/%s", imageID, userID)
		}
	}
	assert.Equal(t, models.ReactionLiked, f.user(t, "u0").StateOf("img-0"))
	assert.Equal(t, models.ReactionLiked, f.user(t, "u2").StateOf("img-2"))
	assert.False(t, f.image(t, "img-4").LikedBy.Has("ghost"))

	again, err := f.reconciler(metrics.NewNop()).Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Repaired)
}
