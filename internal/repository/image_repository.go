package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"genimage/internal/models"
)

const uniqueViolation = "23505"

const imageColumns = `
	id, prompt, model, width, height, seed, liked_by, disliked_by,
	created_by, created_at, content_type
`

type ImageRepository struct {
	db DBTX
}

func NewImageRepository(db DBTX) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Create(ctx context.Context, image models.Image) error {
	const query = `
		INSERT INTO images (
			id, prompt, model, width, height, seed, liked_by, disliked_by,
			created_by, created_at, content_type
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.Exec(ctx, query,
		image.ID,
		image.Prompt,
		image.Model,
		image.Width,
		image.Height,
		image.Seed,
		image.LikedBy.Slice(),
		image.DislikedBy.Slice(),
		image.CreatedBy,
		image.CreatedAt,
		image.ContentType,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

// Save replaces the mutable fields of the document. created_at is immutable
// and is only written by Create.
func (r *ImageRepository) Save(ctx context.Context, image models.Image) error {
	const query = `
		INSERT INTO images (
			id, prompt, model, width, height, seed, liked_by, disliked_by,
			created_by, created_at, content_type
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (id) DO UPDATE SET
			prompt = EXCLUDED.prompt,
			model = EXCLUDED.model,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			seed = EXCLUDED.seed,
			liked_by = EXCLUDED.liked_by,
			disliked_by = EXCLUDED.disliked_by,
			created_by = EXCLUDED.created_by,
			content_type = EXCLUDED.content_type
	`

	_, err := r.db.Exec(ctx, query,
		image.ID,
		image.Prompt,
		image.Model,
		image.Width,
		image.Height,
		image.Seed,
		image.LikedBy.Slice(),
		image.DislikedBy.Slice(),
		image.CreatedBy,
		image.CreatedAt,
		image.ContentType,
	)
	return err
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	image, err := scanImage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}

func (r *ImageRepository) Recent(ctx context.Context, limit int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		ORDER BY created_at DESC
		LIMIT $1
	`
	return r.queryImages(ctx, query, limit)
}

func (r *ImageRepository) Popular(ctx context.Context, limit int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		ORDER BY cardinality(liked_by) - cardinality(disliked_by) DESC
		LIMIT $1
	`
	return r.queryImages(ctx, query, limit)
}

// Random samples without replacement. ORDER BY random() scans the table, so
// callers must keep limit bounded.
func (r *ImageRepository) Random(ctx context.Context, limit int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		ORDER BY random()
		LIMIT $1
	`
	return r.queryImages(ctx, query, limit)
}

func (r *ImageRepository) Search(ctx context.Context, text string, limit int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images, plainto_tsquery('english', $1) AS q
		WHERE search_vector @@ q
		ORDER BY ts_rank(search_vector, q) DESC, created_at DESC
		LIMIT $2
	`
	return r.queryImages(ctx, query, text, limit)
}

func (r *ImageRepository) List(ctx context.Context, limit, offset int) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + `
		FROM images
		ORDER BY id
		LIMIT $1 OFFSET $2
	`
	return r.queryImages(ctx, query, limit, offset)
}

func (r *ImageRepository) queryImages(ctx context.Context, query string, args ...any) ([]models.Image, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (models.Image, error) {
	var (
		image      models.Image
		likedBy    []string
		dislikedBy []string
	)
	if err := row.Scan(
		&image.ID,
		&image.Prompt,
		&image.Model,
		&image.Width,
		&image.Height,
		&image.Seed,
		&likedBy,
		&dislikedBy,
		&image.CreatedBy,
		&image.CreatedAt,
		&image.ContentType,
	); err != nil {
		return models.Image{}, err
	}
	image.LikedBy = models.NewIDSet(likedBy...)
	image.DislikedBy = models.NewIDSet(dislikedBy...)
	return image, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func wrapQuery(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
