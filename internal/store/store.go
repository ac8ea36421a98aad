// Package store persists users and posts with gorm. Every read-modify-write
// of a user runs in a transaction holding the user's row lock.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/allgood/internal/apperr"
	"github.com/sujalbistaa/allgood/internal/models"
)

const serviceName = "store"

// Mutation edits a locked user in place. Returning an error rolls the
// transaction back.
type Mutation func(u *models.User) error

// PostQuery narrows ListPosts. Zero fields match everything.
type PostQuery struct {
	UserID string
	Type   models.PostType
	Limit  int
}

type Store struct {
	db  *gorm.DB
	ids *IDGenerator
}

func New(db *gorm.DB, ids *IDGenerator) *Store {
	return &Store{db: db, ids: ids}
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		return apperr.Validation("user id is empty")
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return apperr.Collaborator(serviceName, fmt.Errorf("create user: %w", err))
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, apperr.Validation("user id is empty")
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user", id)
	}
	return &u, nil
}

// UpdateUser locks the user row, applies fn and writes back only the
// columns fn changed.
func (s *Store) UpdateUser(ctx context.Context, id string, fn Mutation) (*models.User, error) {
	if id == "" {
		return nil, apperr.Validation("user id is empty")
	}
	var out *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := mutateUser(tx, id, fn)
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePost inserts p, assigning its id, and applies fn to the author in
// the same transaction. Either both are committed or neither is.
func (s *Store) CreatePost(ctx context.Context, p *models.Post, fn Mutation) (*models.User, error) {
	if p.UserID == "" {
		return nil, apperr.Validation("post author is empty")
	}
	var author *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lock the author first so concurrent posts queue behind each other
		u, err := mutateUser(tx, p.UserID, fn)
		if err != nil {
			return err
		}

		p.ID = s.ids.Next()
		if err := tx.Create(p).Error; err != nil {
			return apperr.Collaborator(serviceName, fmt.Errorf("create post: %w", err))
		}
		author = u
		return nil
	})
	if err != nil {
		p.ID = ""
		return nil, err
	}
	return author, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if id == "" {
		return nil, apperr.Validation("post id is empty")
	}
	var p models.Post
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, "post", id)
	}
	return &p, nil
}

// ListPosts returns matching posts, newest first.
func (s *Store) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error) {
	tx := s.db.WithContext(ctx).Order("timestamp desc").Order("id desc")
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	posts := make([]models.Post, 0)
	if err := tx.Find(&posts).Error; err != nil {
		return nil, apperr.Collaborator(serviceName, fmt.Errorf("list posts: %w", err))
	}
	return posts, nil
}

// ListLocations returns the id and location of every post.
func (s *Store) ListLocations(ctx context.Context) ([]models.PostLocation, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Select("id", "location_latitude", "location_longitude").
		Order("timestamp desc").
		Find(&posts).Error
	if err != nil {
		return nil, apperr.Collaborator(serviceName, fmt.Errorf("list locations: %w", err))
	}

	out := make([]models.PostLocation, 0, len(posts))
	for _, p := range posts {
		out = append(out, models.PostLocation{ID: p.ID, Location: p.Location})
	}
	return out, nil
}

func mutateUser(tx *gorm.DB, id string, fn Mutation) (*models.User, error) {
	var u models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user", id)
	}

	before := u
	if err := fn(&u); err != nil {
		return nil, err
	}

	changes := userChanges(before, u)
	if len(changes) == 0 {
		return &u, nil
	}
	if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(changes).Error; err != nil {
		return nil, apperr.Collaborator(serviceName, fmt.Errorf("update user: %w", err))
	}
	return &u, nil
}

// userChanges maps the mutable columns that differ between a and b.
func userChanges(a, b models.User) map[string]any {
	changes := make(map[string]any)
	if a.IsAnonymous != b.IsAnonymous {
		changes["is_anonymous"] = b.IsAnonymous
	}
	if !sameString(a.Username, b.Username) {
		changes["username"] = b.Username
	}
	if a.AvatarNumber != b.AvatarNumber {
		changes["avatar_number"] = b.AvatarNumber
	}
	if !a.LastPost.Equal(b.LastPost) {
		changes["last_post"] = b.LastPost
	}
	if !a.LastOpen.Equal(b.LastOpen) {
		changes["last_open"] = b.LastOpen
	}
	if a.StreakPost != b.StreakPost {
		changes["streak_post"] = b.StreakPost
	}
	if a.StreakPostBest != b.StreakPostBest {
		changes["streak_post_best"] = b.StreakPostBest
	}
	if a.StreakApp != b.StreakApp {
		changes["streak_app"] = b.StreakApp
	}
	if a.StreakAppBest != b.StreakAppBest {
		changes["streak_app_best"] = b.StreakAppBest
	}
	return changes
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func translate(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", apperr.ErrNotFound, kind, id)
	}
	return apperr.Collaborator(serviceName, fmt.Errorf("get %s: %w", kind, err))
}
