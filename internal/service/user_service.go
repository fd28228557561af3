package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genimage/internal/models"
	"genimage/internal/repository"
)

type CreateUserInput struct {
	ID       string `json:"id" validate:"required,max=128"`
	FullName string `json:"fullName" validate:"max=256"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
	Username string `json:"username" validate:"max=128"`
}

// UserService registers profiles whose ids come from the external identity
// provider and reads them back.
type UserService struct {
	users repository.UserStore
	log   zerolog.Logger
}

func NewUserService(users repository.UserStore, log zerolog.Logger) *UserService {
	return &UserService{users: users, log: log}
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, notFound("user", id)
		}
		return models.User{}, storeErr("load user", err)
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, input CreateUserInput) (models.User, error) {
	input.ID = strings.TrimSpace(input.ID)
	if err := validateStruct(input); err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:             input.ID,
		FullName:       input.FullName,
		ImageURL:       input.ImageURL,
		Username:       input.Username,
		Images:         []string{},
		LikedImages:    models.NewIDSet(),
		DislikedImages: models.NewIDSet(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, storeErr("create user", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user created")
	return user, nil
}
