package repository

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"genimage/internal/models"
)

// MemoryStore keeps both collections in-process. Every read and write copies
// the document, so callers never share set instances with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	images map[string]models.Image
	order  []string
	users  map[string]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		images: make(map[string]models.Image),
		users:  make(map[string]models.User),
	}
}

// Images exposes the image collection as an ImageStore.
func (m *MemoryStore) Images() ImageStore {
	return memoryImages{m}
}

// Users exposes the user collection as a UserStore.
func (m *MemoryStore) Users() UserStore {
	return memoryUsers{m}
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

type memoryImages struct {
	m *MemoryStore
}

func (s memoryImages) GetByID(_ context.Context, id string) (models.Image, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	image, ok := s.m.images[id]
	if !ok {
		return models.Image{}, ErrImageNotFound
	}
	return copyImage(image), nil
}

func (s memoryImages) Create(_ context.Context, image models.Image) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, exists := s.m.images[image.ID]; exists {
		return ErrDuplicateKey
	}
	s.m.order = append(s.m.order, image.ID)
	s.m.images[image.ID] = copyImage(image)
	return nil
}

func (s memoryImages) Save(_ context.Context, image models.Image) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	existing, exists := s.m.images[image.ID]
	if !exists {
		s.m.order = append(s.m.order, image.ID)
	} else {
		image.CreatedAt = existing.CreatedAt
	}
	s.m.images[image.ID] = copyImage(image)
	return nil
}

func (s memoryImages) Recent(_ context.Context, limit int) ([]models.Image, error) {
	all := s.snapshot()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return head(all, limit), nil
}

func (s memoryImages) Popular(_ context.Context, limit int) ([]models.Image, error) {
	all := s.snapshot()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Popularity() > all[j].Popularity()
	})
	return head(all, limit), nil
}

func (s memoryImages) Random(_ context.Context, limit int) ([]models.Image, error) {
	all := s.snapshot()
	rand.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	return head(all, limit), nil
}

// Search ranks by the number of query terms found in prompt and model.
func (s memoryImages) Search(_ context.Context, query string, limit int) ([]models.Image, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	type hit struct {
		image models.Image
		score int
	}
	var hits []hit
	for _, image := range s.snapshot() {
		text := strings.ToLower(image.Prompt + " " + image.Model)
		score := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{image: image, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].image.CreatedAt.After(hits[j].image.CreatedAt)
	})

	out := make([]models.Image, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.image)
	}
	return head(out, limit), nil
}

func (s memoryImages) List(_ context.Context, limit, offset int) ([]models.Image, error) {
	all := s.snapshot()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	return head(all[offset:], limit), nil
}

// snapshot returns copies of every image in insertion order.
func (s memoryImages) snapshot() []models.Image {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]models.Image, 0, len(s.m.order))
	for _, id := range s.m.order {
		if image, ok := s.m.images[id]; ok {
			out = append(out, copyImage(image))
		}
	}
	return out
}

type memoryUsers struct {
	m *MemoryStore
}

func (s memoryUsers) GetByID(_ context.Context, id string) (models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	user, ok := s.m.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return copyUser(user), nil
}

func (s memoryUsers) Create(_ context.Context, user models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, exists := s.m.users[user.ID]; exists {
		return ErrDuplicateKey
	}
	s.m.users[user.ID] = copyUser(user)
	return nil
}

func (s memoryUsers) Save(_ context.Context, user models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if existing, ok := s.m.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	}
	s.m.users[user.ID] = copyUser(user)
	return nil
}

func (s memoryUsers) List(_ context.Context, limit, offset int) ([]models.User, error) {
	s.m.mu.RLock()
	all := make([]models.User, 0, len(s.m.users))
	for _, user := range s.m.users {
		all = append(all, copyUser(user))
	}
	s.m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func head(images []models.Image, limit int) []models.Image {
	if limit >= 0 && len(images) > limit {
		return images[:limit]
	}
	return images
}

func copyImage(image models.Image) models.Image {
	image.LikedBy = image.LikedBy.Clone()
	image.DislikedBy = image.DislikedBy.Clone()
	if image.CreatedBy != nil {
		createdBy := *image.CreatedBy
		image.CreatedBy = &createdBy
	}
	image.Buffer = nil
	return image
}

func copyUser(user models.User) models.User {
	user.Images = append([]string(nil), user.Images...)
	user.LikedImages = user.LikedImages.Clone()
	user.DislikedImages = user.DislikedImages.Clone()
	return user
}
