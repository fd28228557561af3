package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"genimage/internal/lock"
	"genimage/internal/metrics"
	"genimage/internal/models"
	"genimage/internal/repository"
)

type ReconcileReport struct {
	Images   int
	Users    int
	Repaired int
	Failed   int
}

// Reconciler heals drift between image and user reaction sets. The image
// document is authoritative: it is written first by the reaction engine, so
// a user document that disagrees is the one left behind by a failed write.
// A user held in both sets of an image, or a reactor whose user document is
// gone, is reset to no reaction.
type Reconciler struct {
	images  repository.ImageStore
	users   repository.UserStore
	locker  lock.Locker
	batch   int
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewReconciler(
	images repository.ImageStore,
	users repository.UserStore,
	locker lock.Locker,
	batch int,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Reconciler {
	if batch <= 0 {
		batch = 100
	}
	return &Reconciler{
		images:  images,
		users:   users,
		locker:  locker,
		batch:   batch,
		metrics: m,
		log:     log,
	}
}

// RepairPair realigns one (image, user) pair under the same document locks
// the reaction engine takes and reports whether anything was rewritten.
func (r *Reconciler) RepairPair(ctx context.Context, imageID, userID string) (bool, error) {
	release, err := lock.LockAll(ctx, r.locker, lock.ImageKey(imageID), lock.UserKey(userID))
	if err != nil {
		return false, err
	}
	defer release()

	image, imageFound, err := r.loadImage(ctx, imageID)
	if err != nil {
		return false, err
	}
	user, userFound, err := r.loadUser(ctx, userID)
	if err != nil {
		return false, err
	}

	want := models.ReactionNone
	changed := false

	if imageFound {
		conflicted := image.LikedBy.Has(userID) && image.DislikedBy.Has(userID)
		if !conflicted && userFound {
			want = image.StateOf(userID)
		}
		if image.StateOf(userID) != want || conflicted {
			image.SetState(userID, want)
			if err := r.images.Save(ctx, image); err != nil {
				return false, storeErr("save image", err)
			}
			r.metrics.Repairs.WithLabelValues("image").Inc()
			changed = true
		}
	}

	if userFound && user.StateOf(imageID) != want {
		user.SetState(imageID, want)
		if err := r.users.Save(ctx, user); err != nil {
			return changed, storeErr("save user", err)
		}
		r.metrics.Repairs.WithLabelValues("user").Inc()
		changed = true
	}

	if changed {
		r.metrics.Inconsistent.WithLabelValues(invariantSymmetric).Inc()
		r.log.Warn().
			Err(&ConsistencyError{
				Invariant: invariantSymmetric,
				ImageID:   imageID,
				UserID:    userID,
				Detail:    "repaired to " + string(want),
			}).
			Msg("reaction pair repaired")
	}
	return changed, nil
}

// Sweep walks every image and every user in batches and repairs each pair
// whose two sides disagree. Per-pair failures are counted, not returned, so a
// single bad document cannot stall the sweep.
func (r *Reconciler) Sweep(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	for offset := 0; ; offset += r.batch {
		images, err := r.images.List(ctx, r.batch, offset)
		if err != nil {
			return report, storeErr("list images", err)
		}
		for _, image := range images {
			report.Images++
			reactors := image.LikedBy.Clone()
			for userID := range image.DislikedBy {
				reactors.Add(userID)
			}
			for _, userID := range reactors.Slice() {
				r.sweepPair(ctx, &report, image, userID)
			}
		}
		if len(images) < r.batch {
			break
		}
	}

	for offset := 0; ; offset += r.batch {
		users, err := r.users.List(ctx, r.batch, offset)
		if err != nil {
			return report, storeErr("list users", err)
		}
		for _, user := range users {
			report.Users++
			reacted := user.LikedImages.Clone()
			for imageID := range user.DislikedImages {
				reacted.Add(imageID)
			}
			for _, imageID := range reacted.Slice() {
				image, found, err := r.loadImage(ctx, imageID)
				if err != nil {
					report.Failed++
					r.log.Error().Err(err).Str("image_id", imageID).Msg("sweep load image failed")
					continue
				}
				if found && image.StateOf(user.ID) == user.StateOf(imageID) {
					continue
				}
				r.repair(ctx, &report, imageID, user.ID)
			}
		}
		if len(users) < r.batch {
			break
		}
	}

	r.log.Info().
		Int("images", report.Images).
		Int("users", report.Users).
		Int("repaired", report.Repaired).
		Int("failed", report.Failed).
		Msg("consistency sweep finished")
	return report, nil
}

func (r *Reconciler) sweepPair(ctx context.Context, report *ReconcileReport, image models.Image, userID string) {
	conflicted := image.LikedBy.Has(userID) && image.DislikedBy.Has(userID)
	if !conflicted {
		user, found, err := r.loadUser(ctx, userID)
		if err != nil {
			report.Failed++
			r.log.Error().Err(err).Str("user_id", userID).Msg("sweep load user failed")
			return
		}
		if found && user.StateOf(image.ID) == image.StateOf(userID) {
			return
		}
	}
	r.repair(ctx, report, image.ID, userID)
}

func (r *Reconciler) repair(ctx context.Context, report *ReconcileReport, imageID, userID string) {
	changed, err := r.RepairPair(ctx, imageID, userID)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		// a toggle holds the documents and rewrites both sides itself
		r.log.Debug().Str("image_id", imageID).Str("user_id", userID).Msg("pair busy, skipped")
	case err != nil:
		report.Failed++
		r.log.Error().Err(err).Str("image_id", imageID).Str("user_id", userID).Msg("pair repair failed")
	case changed:
		report.Repaired++
	}
}

func (r *Reconciler) loadImage(ctx context.Context, id string) (models.Image, bool, error) {
	image, err := r.images.GetByID(ctx, id)
	if errors.Is(err, repository.ErrImageNotFound) {
		return models.Image{}, false, nil
	}
	if err != nil {
		return models.Image{}, false, storeErr("load image", err)
	}
	return image, true, nil
}

func (r *Reconciler) loadUser(ctx context.Context, id string) (models.User, bool, error) {
	user, err := r.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, storeErr("load user", err)
	}
	return user, true, nil
}
