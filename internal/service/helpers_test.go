package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"genimage/internal/lock"
	"genimage/internal/metrics"
	"genimage/internal/models"
	"genimage/internal/queue"
	"genimage/internal/repository"
)

var errInjected = errors.New("injected failure")

type fixture struct {
	store  *repository.MemoryStore
	images repository.ImageStore
	users  repository.UserStore
	locker *lock.LocalLocker
	queue  *recordingQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	return &fixture{
		store:  store,
		images: store.Images(),
		users:  store.Users(),
		locker: lock.NewLocalLocker(time.Second),
		queue:  &recordingQueue{},
	}
}

func (f *fixture) reactions() *ReactionService {
	return NewReactionService(f.images, f.users, f.locker, f.queue, metrics.NewNop(), zerolog.Nop())
}

func (f *fixture) addUser(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), models.User{
		ID:             id,
		Images:         []string{},
		LikedImages:    models.NewIDSet(),
		DislikedImages: models.NewIDSet(),
	}))
}

func (f *fixture) addImage(t *testing.T, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, f.images.Create(context.Background(), models.Image{
		ID:         id,
		Prompt:     "prompt for " + id,
		Model:      "sdxl",
		Width:      512,
		Height:     512,
		LikedBy:    models.NewIDSet(),
		DislikedBy: models.NewIDSet(),
		CreatedAt:  createdAt,
	}))
}

func (f *fixture) image(t *testing.T, id string) models.Image {
	t.Helper()
	image, err := f.images.GetByID(context.Background(), id)
	require.NoError(t, err)
	return image
}

func (f *fixture) user(t *testing.T, id string) models.User {
	t.Helper()
	user, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

// flakyImages fails Save once the configured number of saves has succeeded.
type flakyImages struct {
	repository.ImageStore
	mu        sync.Mutex
	okSaves   int
	saves     int
	failSaves bool
}

func (s *flakyImages) Save(ctx context.Context, image models.Image) error {
	s.mu.Lock()
	s.saves++
	fail := s.failSaves && s.saves > s.okSaves
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.ImageStore.Save(ctx, image)
}

type flakyUsers struct {
	repository.UserStore
	failSave bool
	failGet  bool
}

func (s *flakyUsers) Save(ctx context.Context, user models.User) error {
	if s.failSave {
		return errInjected
	}
	return s.UserStore.Save(ctx, user)
}

func (s *flakyUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	if s.failGet {
		return models.User{}, errInjected
	}
	return s.UserStore.GetByID(ctx, id)
}

// slowImages and slowUsers widen the gap between a document read and its
// write so unserialized writers would overwrite each other.
type slowImages struct {
	repository.ImageStore
	delay time.Duration
}

func (s *slowImages) GetByID(ctx context.Context, id string) (models.Image, error) {
	image, err := s.ImageStore.GetByID(ctx, id)
	time.Sleep(s.delay)
	return image, err
}

type slowUsers struct {
	repository.UserStore
	delay time.Duration
}

func (s *slowUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.UserStore.GetByID(ctx, id)
	time.Sleep(s.delay)
	return user, err
}

// slowDocuments must be called after the documents a test needs are seeded.
func (f *fixture) slowDocuments(delay time.Duration) {
	f.images = &slowImages{ImageStore: f.images, delay: delay}
	f.users = &slowUsers{UserStore: f.users, delay: delay}
	f.locker = lock.NewLocalLocker(10 * time.Second)
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
}

func (q *recordingQueue) Enqueue(_ context.Context, task queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) snapshot() []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Task(nil), q.tasks...)
}
