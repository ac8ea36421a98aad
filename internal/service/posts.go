package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/apperr"
	"github.com/sujalbistaa/allgood/internal/feed"
	"github.com/sujalbistaa/allgood/internal/geo"
	"github.com/sujalbistaa/allgood/internal/models"
	"github.com/sujalbistaa/allgood/internal/store"
	"github.com/sujalbistaa/allgood/internal/streak"
)

const maxDescriptionLength = 1000

// NewPost is the client input for CreatePost. Location is the true
// position; it is never stored.
type NewPost struct {
	UserID      string
	Type        string
	Location    geo.Point
	Description string
	TimeZone    string
}

type validPost struct {
	typ         models.PostType
	description string
	loc         *time.Location
}

func (s *Service) validatePost(in NewPost) (validPost, error) {
	if in.UserID == "" {
		return validPost{}, apperr.Validation("user id is empty")
	}
	typ, ok := models.ParsePostType(in.Type)
	if !ok {
		return validPost{}, apperr.Validation("unknown post type %q", in.Type)
	}
	desc := strings.TrimSpace(in.Description)
	if n := utf8.RuneCountInString(desc); n == 0 || n > maxDescriptionLength {
		return validPost{}, apperr.Validation("description must be 1 to %d characters", maxDescriptionLength)
	}
	if !in.Location.Valid() {
		return validPost{}, apperr.Validation("location out of range")
	}
	loc, err := s.Location(in.TimeZone)
	if err != nil {
		return validPost{}, err
	}
	return validPost{typ: typ, description: desc, loc: loc}, nil
}

// CreatePost moderates, fuzzes and geocodes a new post, then stores it
// together with the author's streak update. Nothing is persisted unless
// every step succeeds.
func (s *Service) CreatePost(ctx context.Context, in NewPost) (*models.Post, error) {
	v, err := s.validatePost(in)
	if err != nil {
		return nil, err
	}

	author, err := s.store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if s.opts.DailyLimit && !streak.CanPost(author.LastPost, now, v.loc) {
		return nil, fmt.Errorf("%w: already posted today", apperr.ErrNotEligible)
	}

	allowed, err := s.moderator.CheckText(ctx, v.description)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.metrics.IncModerationRejected("post")
		return nil, fmt.Errorf("%w: description", apperr.ErrContentRejected)
	}

	fuzzed := s.fuzzer.Fuzz(in.Location, s.opts.FuzzRadiusMeters)
	place, err := s.geocoder.Reverse(ctx, fuzzed)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:         in.UserID,
		Type:           v.typ,
		Timestamp:      now,
		Location:       fuzzed,
		LocationString: place,
		Description:    v.description,
	}
	updated, err := s.store.CreatePost(ctx, post, func(u *models.User) error {
		if s.opts.DailyLimit && !streak.CanPost(u.LastPost, now, v.loc) {
			return fmt.Errorf("%w: already posted today", apperr.ErrNotEligible)
		}
		post.UserName = u.DisplayName()
		post.AvatarNumber = u.AvatarNumber

		next := streak.ApplyPost(streak.PostState{
			LastPost: u.LastPost,
			Streak:   u.StreakPost,
			Best:     u.StreakPostBest,
		}, now)
		u.LastPost = next.LastPost
		u.StreakPost = next.Streak
		u.StreakPostBest = next.Best
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("post created",
		zap.String("id", post.ID),
		zap.String("uid", post.UserID),
		zap.String("type", string(post.Type)),
		zap.Int("streak", updated.StreakPost),
	)
	s.metrics.IncPostsCreated(string(post.Type))
	s.metrics.IncStreakUpdates("post")
	if s.events != nil {
		s.events.PostCreated(*post)
	}
	s.publishUser(updated)
	return post, nil
}

// FeedQuery holds the raw filter values a client sends.
type FeedQuery struct {
	Date     string
	Type     string
	TimeZone string
}

// Feed returns every post matching the date and type filters, newest first.
func (s *Service) Feed(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	d, err := feed.ParseDateFilter(q.Date)
	if err != nil {
		return nil, err
	}
	tf, err := feed.ParseTypeFilter(q.Type)
	if err != nil {
		return nil, err
	}
	loc, err := s.Location(q.TimeZone)
	if err != nil {
		return nil, err
	}

	posts, err := s.store.ListPosts(ctx, store.PostQuery{})
	if err != nil {
		return nil, err
	}
	return feed.Filter(posts, d, tf, s.now(), loc), nil
}

// UserPosts returns uid's posts, newest first.
func (s *Service) UserPosts(ctx context.Context, uid string) ([]models.Post, error) {
	if uid == "" {
		return nil, apperr.Validation("user id is empty")
	}
	return s.store.ListPosts(ctx, store.PostQuery{UserID: uid})
}

func (s *Service) Post(ctx context.Context, id string) (*models.Post, error) {
	return s.store.GetPost(ctx, id)
}

// Locations returns the map projection of every post.
func (s *Service) Locations(ctx context.Context) ([]models.PostLocation, error) {
	return s.store.ListLocations(ctx)
}
