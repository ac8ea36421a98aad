package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/apperr"
	"github.com/sujalbistaa/allgood/internal/models"
	"github.com/sujalbistaa/allgood/internal/streak"
)

const (
	maxUsernameLength = 15
	minAvatar         = 1
	maxAvatar         = 6
)

// SignInAnonymously creates a fresh anonymous user and a session token.
func (s *Service) SignInAnonymously(ctx context.Context) (*models.User, string, error) {
	u := models.NewUser(uuid.NewString(), s.now())
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("anonymous user created", zap.String("uid", u.ID))
	return u, token, nil
}

// CurrentUser loads uid. A holder of a valid token whose record is gone
// gets a fresh record with default counters.
func (s *Service) CurrentUser(ctx context.Context, uid string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, uid)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	u = models.NewUser(uid, s.now())
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Warn("recreated missing user record", zap.String("uid", uid))
	return u, nil
}

// RecordOpen applies an app open at the current time to uid's streaks.
func (s *Service) RecordOpen(ctx context.Context, uid, tz string) (*models.User, error) {
	loc, err := s.Location(tz)
	if err != nil {
		return nil, err
	}
	if _, err := s.CurrentUser(ctx, uid); err != nil {
		return nil, err
	}

	now := s.now()
	u, err := s.store.UpdateUser(ctx, uid, func(u *models.User) error {
		next := streak.ApplyOpen(streak.OpenState{
			LastOpen:   u.LastOpen,
			LastPost:   u.LastPost,
			StreakPost: u.StreakPost,
			StreakApp:  u.StreakApp,
			AppBest:    u.StreakAppBest,
		}, now, loc)
		u.LastOpen = next.LastOpen
		u.StreakPost = next.StreakPost
		u.StreakApp = next.StreakApp
		u.StreakAppBest = next.AppBest
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncStreakUpdates("open")
	s.publishUser(u)
	return u, nil
}

// Eligibility reports whether uid may post today in the tz calendar.
func (s *Service) Eligibility(ctx context.Context, uid, tz string) (bool, error) {
	loc, err := s.Location(tz)
	if err != nil {
		return false, err
	}
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return false, err
	}
	return streak.CanPost(u.LastPost, s.now(), loc), nil
}

// SetupProfile sets the permanent username and the avatar. A user gets
// exactly one username.
func (s *Service) SetupProfile(ctx context.Context, uid, username string, avatar int) (*models.User, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n == 0 || n > maxUsernameLength {
		return nil, apperr.Validation("username must be 1 to %d characters", maxUsernameLength)
	}
	if err := validateAvatar(avatar); err != nil {
		return nil, err
	}

	current, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if current.HasUsername() {
		return nil, fmt.Errorf("%w: username already set", apperr.ErrConflict)
	}

	allowed, err := s.moderator.CheckText(ctx, username)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.metrics.IncModerationRejected("username")
		return nil, fmt.Errorf("%w: username", apperr.ErrContentRejected)
	}

	u, err := s.store.UpdateUser(ctx, uid, func(u *models.User) error {
		// a concurrent setup may have won since the first read
		if u.HasUsername() {
			return fmt.Errorf("%w: username already set", apperr.ErrConflict)
		}
		u.Username = &username
		u.AvatarNumber = avatar
		u.IsAnonymous = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("profile set up", zap.String("uid", uid))
	s.publishUser(u)
	return u, nil
}

// UpdateAvatar changes uid's avatar.
func (s *Service) UpdateAvatar(ctx context.Context, uid string, avatar int) (*models.User, error) {
	if err := validateAvatar(avatar); err != nil {
		return nil, err
	}
	u, err := s.store.UpdateUser(ctx, uid, func(u *models.User) error {
		u.AvatarNumber = avatar
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishUser(u)
	return u, nil
}

func validateAvatar(n int) error {
	if n < minAvatar || n > maxAvatar {
		return apperr.Validation("avatar must be between %d and %d", minAvatar, maxAvatar)
	}
	return nil
}
