package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"genimage/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, full_name, image_url, username, images, liked_images, disliked_images, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.FullName,
		user.ImageURL,
		user.Username,
		nonNil(user.Images),
		user.LikedImages.Slice(),
		user.DislikedImages.Slice(),
		user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return wrapQuery("insert user", err)
}

func (r *UserRepository) Save(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, full_name, image_url, username, images, liked_images, disliked_images, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			image_url = EXCLUDED.image_url,
			username = EXCLUDED.username,
			images = EXCLUDED.images,
			liked_images = EXCLUDED.liked_images,
			disliked_images = EXCLUDED.disliked_images
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.FullName,
		user.ImageURL,
		user.Username,
		nonNil(user.Images),
		user.LikedImages.Slice(),
		user.DislikedImages.Slice(),
		user.CreatedAt,
	)
	return wrapQuery("upsert user", err)
}

const userColumns = `id, full_name, image_url, username, images, liked_images, disliked_images, created_at`

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user           models.User
		likedImages    []string
		dislikedImages []string
	)
	if err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.ImageURL,
		&user.Username,
		&user.Images,
		&likedImages,
		&dislikedImages,
		&user.CreatedAt,
	); err != nil {
		return models.User{}, err
	}
	user.LikedImages = models.NewIDSet(likedImages...)
	user.DislikedImages = models.NewIDSet(dislikedImages...)
	return user, nil
}
