package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"genimage/internal/metrics"
	"genimage/internal/models"
	"genimage/internal/repository"
)

// RankingService serves read-only orderings of the image collection.
// Popularity is derived from the reaction sets on every call.
type RankingService struct {
	images      repository.ImageStore
	maxLimit    int
	searchLimit int
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

func NewRankingService(images repository.ImageStore, maxLimit, searchLimit int, m *metrics.Metrics, log zerolog.Logger) *RankingService {
	return &RankingService{
		images:      images,
		maxLimit:    maxLimit,
		searchLimit: searchLimit,
		metrics:     m,
		log:         log,
	}
}

func (s *RankingService) Recent(ctx context.Context, limit int) ([]models.ImageInfo, error) {
	images, err := s.images.Recent(ctx, s.clamp(limit))
	if err != nil {
		return nil, storeErr("list recent", err)
	}
	return s.project(images), nil
}

// Popular orders by likes minus dislikes. Equal scores come back in whatever
// order the store yields; that order may differ between calls.
func (s *RankingService) Popular(ctx context.Context, limit int) ([]models.ImageInfo, error) {
	images, err := s.images.Popular(ctx, s.clamp(limit))
	if err != nil {
		return nil, storeErr("list popular", err)
	}
	return s.project(images), nil
}

// Random returns up to limit distinct images drawn uniformly, fresh per call.
func (s *RankingService) Random(ctx context.Context, limit int) ([]models.ImageInfo, error) {
	images, err := s.images.Random(ctx, s.clamp(limit))
	if err != nil {
		return nil, storeErr("sample random", err)
	}
	return s.project(images), nil
}

func (s *RankingService) Search(ctx context.Context, query string) ([]models.ImageInfo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidField("prompt", "required")
	}
	images, err := s.images.Search(ctx, query, s.searchLimit)
	if err != nil {
		return nil, storeErr("search", err)
	}
	return s.project(images), nil
}

func (s *RankingService) clamp(limit int) int {
	if limit <= 0 || limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

func (s *RankingService) project(images []models.Image) []models.ImageInfo {
	out := make([]models.ImageInfo, 0, len(images))
	for _, image := range images {
		if conflicts := image.Conflicts(); len(conflicts) > 0 {
			s.metrics.Inconsistent.WithLabelValues(invariantDisjoint).Add(float64(len(conflicts)))
			s.log.Warn().
				Err(&ConsistencyError{
					Invariant: invariantDisjoint,
					ImageID:   image.ID,
					UserID:    strings.Join(conflicts, ","),
					Detail:    "users present in both likedBy and dislikedBy",
				}).
				Msg("inconsistent image served")
		}
		out = append(out, image.Info())
	}
	return out
}
