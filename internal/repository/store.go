package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"genimage/internal/models"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateKey  = errors.New("duplicate key")
)

// ImageStore persists Image documents. Save is a full-document upsert and is
// never atomic together with a UserStore write.
type ImageStore interface {
	GetByID(ctx context.Context, id string) (models.Image, error)
	Create(ctx context.Context, image models.Image) error
	Save(ctx context.Context, image models.Image) error

	Recent(ctx context.Context, limit int) ([]models.Image, error)
	// Popular orders by likes minus dislikes. Ties keep whatever order the
	// backend yields and are not stable across calls.
	Popular(ctx context.Context, limit int) ([]models.Image, error)
	Random(ctx context.Context, limit int) ([]models.Image, error)
	Search(ctx context.Context, query string, limit int) ([]models.Image, error)
	List(ctx context.Context, limit, offset int) ([]models.Image, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	Create(ctx context.Context, user models.User) error
	Save(ctx context.Context, user models.User) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

// DBTX is the part of *pgxpool.Pool the postgres repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
