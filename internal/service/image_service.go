package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"genimage/internal/ids"
	"genimage/internal/lock"
	"genimage/internal/media/sniffer"
	"genimage/internal/media/svg"
	"genimage/internal/metrics"
	"genimage/internal/models"
	"genimage/internal/repository"
	"genimage/internal/storage"
)

type CreateImageInput struct {
	Prompt    string `json:"prompt" validate:"required"`
	Model     string `json:"model" validate:"required"`
	Width     *int   `json:"width" validate:"required,gt=0"`
	Height    *int   `json:"height" validate:"required,gt=0"`
	Seed      *int64 `json:"seed" validate:"required"`
	CreatedBy string `json:"createdBy"`
	ImageLink string `json:"imageLink" validate:"required,http_url"`
}

// ImageService creates images from external links and serves single images.
type ImageService struct {
	images  repository.ImageStore
	users   repository.UserStore
	blobs   storage.BlobStore
	locker  lock.Locker
	fetcher *Fetcher
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewImageService(
	images repository.ImageStore,
	users repository.UserStore,
	blobs storage.BlobStore,
	locker lock.Locker,
	fetcher *Fetcher,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ImageService {
	return &ImageService{
		images:  images,
		users:   users,
		blobs:   blobs,
		locker:  locker,
		fetcher: fetcher,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create fetches the link, stores the bytes and the record, then links the
// image to its creator on a best-effort basis. A failed fetch persists nothing.
func (s *ImageService) Create(ctx context.Context, input CreateImageInput) (models.Image, error) {
	input.Prompt = strings.TrimSpace(input.Prompt)
	input.Model = strings.TrimSpace(input.Model)
	input.CreatedBy = strings.TrimSpace(input.CreatedBy)
	if err := validateStruct(input); err != nil {
		s.metrics.Ingestions.WithLabelValues("invalid").Inc()
		return models.Image{}, err
	}

	payload, err := s.fetcher.Fetch(ctx, input.ImageLink)
	if err != nil {
		s.metrics.Ingestions.WithLabelValues("upstream_error").Inc()
		s.log.Warn().Err(err).Str("image_link", input.ImageLink).Msg("image fetch failed")
		return models.Image{}, err
	}

	data, contentType, err := s.normalizeMedia(input.ImageLink, payload)
	if err != nil {
		s.metrics.Ingestions.WithLabelValues("invalid").Inc()
		return models.Image{}, err
	}

	image := models.Image{
		ID:          ids.New(),
		Prompt:      input.Prompt,
		Model:       input.Model,
		Width:       *input.Width,
		Height:      *input.Height,
		Seed:        *input.Seed,
		LikedBy:     models.NewIDSet(),
		DislikedBy:  models.NewIDSet(),
		CreatedAt:   s.now(),
		ContentType: contentType,
	}
	if input.CreatedBy != "" {
		createdBy := input.CreatedBy
		image.CreatedBy = &createdBy
	}

	if err := s.blobs.Put(ctx, image.ID, data, contentType); err != nil {
		s.metrics.Ingestions.WithLabelValues("store_error").Inc()
		return models.Image{}, storeErr("put blob", err)
	}
	if err := s.images.Create(ctx, image); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), image.ID); derr != nil {
			s.log.Error().Err(derr).Str("image_id", image.ID).Msg("orphaned blob after failed image insert")
		}
		s.metrics.Ingestions.WithLabelValues("store_error").Inc()
		return models.Image{}, storeErr("create image", err)
	}

	if image.CreatedBy != nil {
		s.linkCreator(ctx, *image.CreatedBy, image.ID)
	}

	s.metrics.Ingestions.WithLabelValues("created").Inc()
	s.log.Info().
		Str("image_id", image.ID).
		Str("content_type", contentType).
		Int("size_bytes", len(data)).
		Msg("image created")

	image.Buffer = data
	return image, nil
}

func (s *ImageService) linkCreator(ctx context.Context, userID, imageID string) {
	release, err := s.locker.Lock(ctx, lock.UserKey(userID))
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("image_id", imageID).Msg("lock creator failed, image left unlinked")
		return
	}
	defer release()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Debug().Str("user_id", userID).Str("image_id", imageID).Msg("creator not found, image left unlinked")
			return
		}
		s.log.Warn().Err(err).Str("user_id", userID).Str("image_id", imageID).Msg("load creator failed")
		return
	}
	user.AppendImage(imageID)
	if err := s.users.Save(ctx, user); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("image_id", imageID).Msg("link image to creator failed")
	}
}

// normalizeMedia trusts the bytes, not the upstream Content-Type header.
func (s *ImageService) normalizeMedia(link string, payload fetched) ([]byte, string, error) {
	result, err := sniffer.Detect(payload.data)
	if err != nil {
		return nil, "", invalidField("imageLink", "unsupported_media")
	}
	if declared := sniffer.BaseMIME(payload.contentType); declared != "" && declared != result.MIME {
		s.log.Debug().
			Str("image_link", link).
			Str("declared", declared).
			Str("detected", result.MIME).
			Msg("upstream content type mismatch")
	}
	data := payload.data
	if result.Type == sniffer.TypeSVG {
		data, err = svg.Sanitize(data)
		if err != nil {
			return nil, "", invalidField("imageLink", "unsupported_media")
		}
	}
	return data, result.MIME, nil
}

// Get returns the full image including its bytes.
func (s *ImageService) Get(ctx context.Context, id string) (models.Image, error) {
	var (
		image       models.Image
		data        []byte
		contentType string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		image, err = s.loadImage(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		data, contentType, err = s.blobs.Get(gctx, id)
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil
		}
		if err != nil {
			return storeErr("get blob", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Image{}, err
	}

	image.Buffer = data
	if image.ContentType == "" {
		image.ContentType = contentType
	}
	return image, nil
}

func (s *ImageService) Info(ctx context.Context, id string) (models.ImageInfo, error) {
	image, err := s.loadImage(ctx, id)
	if err != nil {
		return models.ImageInfo{}, err
	}
	return image.Info(), nil
}

// Raw returns the stored bytes and their content type.
func (s *ImageService) Raw(ctx context.Context, id string) ([]byte, string, error) {
	data, contentType, err := s.blobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, "", notFound("image", id)
		}
		return nil, "", storeErr("get blob", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func (s *ImageService) loadImage(ctx context.Context, id string) (models.Image, error) {
	image, err := s.images.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.Image{}, notFound("image", id)
		}
		return models.Image{}, storeErr("load image", fmt.Errorf("image %s: %w", id, err))
	}
	return image, nil
}
