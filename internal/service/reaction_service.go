package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"genimage/internal/lock"
	"genimage/internal/metrics"
	"genimage/internal/models"
	"genimage/internal/queue"
	"genimage/internal/repository"
)

const compensationTimeout = 5 * time.Second

// RepairQueue accepts follow-up work for pairs the request path could not
// leave consistent.
type RepairQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// ReactionService maintains the like/dislike relation on both the image and
// the user document.
//
// Both documents are rewritten in full, so a toggle holds the write lock of
// the image and of the user for its whole read-modify-write. The two
// documents are written separately, image first. When the user write
// fails the image write is compensated by restoring the pair's previous state
// on a freshly loaded image, so reactions by other users saved in between are
// kept. If the compensation fails too, a repair task is queued for the
// consistency worker.
type ReactionService struct {
	images  repository.ImageStore
	users   repository.UserStore
	locker  lock.Locker
	repairs RepairQueue
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewReactionService(
	images repository.ImageStore,
	users repository.UserStore,
	locker lock.Locker,
	repairs RepairQueue,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ReactionService {
	return &ReactionService{
		images:  images,
		users:   users,
		locker:  locker,
		repairs: repairs,
		metrics: m,
		log:     log,
	}
}

// Toggle applies kind for userID on imageID and returns the updated image
// (without buffer). Reacting with the kind already held removes it; reacting
// with the other kind switches.
func (s *ReactionService) Toggle(ctx context.Context, imageID, userID string, kind models.ReactionKind) (models.Image, error) {
	if userID == "" {
		return models.Image{}, invalidField("userId", "required")
	}
	if kind != models.ReactionLike && kind != models.ReactionDislike {
		return models.Image{}, invalidField("kind", "oneof=like dislike")
	}

	release, err := lock.LockAll(ctx, s.locker, lock.ImageKey(imageID), lock.UserKey(userID))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return models.Image{}, ErrBusy
		}
		return models.Image{}, storeErr("lock documents", err)
	}
	defer release()

	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.Image{}, notFound("image", imageID)
		}
		return models.Image{}, storeErr("load image", err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Image{}, notFound("user", userID)
		}
		return models.Image{}, storeErr("load user", err)
	}

	from := image.StateOf(userID)
	s.checkPair(image, user)
	to := from.Next(kind)

	image.SetState(userID, to)
	user.SetState(imageID, to)

	if err := s.images.Save(ctx, image); err != nil {
		return models.Image{}, storeErr("save image", err)
	}
	if err := s.users.Save(ctx, user); err != nil {
		s.compensate(ctx, imageID, userID, from, err)
		return models.Image{}, storeErr("save user", err)
	}

	s.metrics.Reactions.WithLabelValues(string(kind), string(from), string(to)).Inc()
	s.log.Debug().
		Str("image_id", imageID).
		Str("user_id", userID).
		Str("kind", string(kind)).
		Str("transition", string(from)+"->"+string(to)).
		Msg("reaction toggled")

	return image, nil
}

// checkPair logs drift that existed before this toggle. The toggle itself
// rewrites both sides, so the pair is consistent again once it succeeds.
func (s *ReactionService) checkPair(image models.Image, user models.User) {
	if image.LikedBy.Has(user.ID) && image.DislikedBy.Has(user.ID) {
		s.reportInconsistency(&ConsistencyError{
			Invariant: invariantDisjoint,
			ImageID:   image.ID,
			UserID:    user.ID,
			Detail:    "user both likes and dislikes image",
		})
	}
	if imageState, userState := image.StateOf(user.ID), user.StateOf(image.ID); imageState != userState {
		s.reportInconsistency(&ConsistencyError{
			Invariant: invariantSymmetric,
			ImageID:   image.ID,
			UserID:    user.ID,
			Detail:    "image records " + string(imageState) + ", user records " + string(userState),
		})
	}
}

func (s *ReactionService) reportInconsistency(cerr *ConsistencyError) {
	s.metrics.Inconsistent.WithLabelValues(cerr.Invariant).Inc()
	s.log.Warn().Err(cerr).Msg("reaction pair inconsistent before toggle")
}

func (s *ReactionService) compensate(ctx context.Context, imageID, userID string, previous models.ReactionState, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := func() error {
		image, err := s.images.GetByID(ctx, imageID)
		if err != nil {
			return err
		}
		image.SetState(userID, previous)
		return s.images.Save(ctx, image)
	}()
	if err == nil {
		s.metrics.Compensations.WithLabelValues("reverted").Inc()
		s.log.Warn().
			Err(cause).
			Str("image_id", imageID).
			Str("user_id", userID).
			Msg("user save failed, image reaction reverted")
		return
	}

	s.metrics.Compensations.WithLabelValues("failed").Inc()
	cerr := &ConsistencyError{
		Invariant: invariantSymmetric,
		ImageID:   imageID,
		UserID:    userID,
		Detail:    "user save failed and image revert failed: " + err.Error(),
	}
	s.log.Error().Err(cerr).AnErr("cause", cause).Msg("reaction left inconsistent, queueing repair")

	if s.repairs == nil {
		return
	}
	task := queue.Task{Type: queue.TaskRepair, ImageID: imageID, UserID: userID, Reason: "compensation failed"}
	if qerr := s.repairs.Enqueue(ctx, task); qerr != nil {
		s.log.Error().Err(qerr).Str("image_id", imageID).Str("user_id", userID).Msg("enqueue repair failed")
	}
}
