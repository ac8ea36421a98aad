package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sujalbistaa/allgood/internal/apperr"
	"github.com/sujalbistaa/allgood/internal/geo"
	"github.com/sujalbistaa/allgood/internal/models"
	"github.com/sujalbistaa/allgood/internal/store"
)

// memStore serializes every call on one mutex, the same guarantee the
// row lock gives the real store.
type memStore struct {
	mu     sync.Mutex
	users  map[string]models.User
	posts  []models.Post
	nextID int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]models.User)}
}

func (m *memStore) put(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *u
}

func (m *memStore) user(id string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memStore) postCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

func (m *memStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
	}
	return &u, nil
}

func (m *memStore) mutate(id string, fn store.Mutation) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
	}
	if err := fn(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *memStore) UpdateUser(_ context.Context, id string, fn store.Mutation) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.mutate(id, fn)
	if err != nil {
		return nil, err
	}
	m.users[id] = *u
	return u, nil
}

func (m *memStore) CreatePost(_ context.Context, p *models.Post, fn store.Mutation) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.mutate(p.UserID, fn)
	if err != nil {
		return nil, err
	}
	m.nextID++
	p.ID = fmt.Sprintf("p%03d", m.nextID)
	m.posts = append(m.posts, *p)
	m.users[u.ID] = *u
	return u, nil
}

func (m *memStore) GetPost(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: post %s", apperr.ErrNotFound, id)
}

func (m *memStore) ListPosts(_ context.Context, q store.PostQuery) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Post, 0)
	for _, p := range m.posts {
		if q.UserID != "" && p.UserID != q.UserID {
			continue
		}
		if q.Type != "" && p.Type != q.Type {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *memStore) ListLocations(ctx context.Context) ([]models.PostLocation, error) {
	posts, err := m.ListPosts(ctx, store.PostQuery{})
	if err != nil {
		return nil, err
	}
	out := make([]models.PostLocation, 0, len(posts))
	for _, p := range posts {
		out = append(out, models.PostLocation{ID: p.ID, Location: p.Location})
	}
	return out, nil
}

type fakeModerator struct {
	mu      sync.Mutex
	allowed bool
	err     error
	seen    []string
}

func (f *fakeModerator) CheckText(_ context.Context, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, text)
	return f.allowed, f.err
}

func (f *fakeModerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

type fakeGeocoder struct {
	mu     sync.Mutex
	place  string
	err    error
	points []geo.Point
}

func (f *fakeGeocoder) Reverse(_ context.Context, p geo.Point) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
	return f.place, f.err
}

func (f *fakeGeocoder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

type recordedEvents struct {
	mu    sync.Mutex
	posts []models.Post
	users []models.User
}

func (r *recordedEvents) PostCreated(p models.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, p)
}

func (r *recordedEvents) UserChanged(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
}

type staticTokens struct{}

func (staticTokens) Issue(uid string) (string, error) { return "token-" + uid, nil }
