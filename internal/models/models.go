package models

import (
	"strings"
	"time"

	"github.com/sujalbistaa/allgood/internal/geo"
	"github.com/sujalbistaa/allgood/internal/streak"
)

// PostType is the kind of good deed a post records.
type PostType string

const (
	PostDonation     PostType = "donation"
	PostVolunteering PostType = "volunteering"
	PostKindness     PostType = "kindness"
)

// PostTypes lists every valid PostType.
var PostTypes = []PostType{PostDonation, PostVolunteering, PostKindness}

// ParsePostType accepts the canonical names plus the legacy
// "personalKindness" spelling older clients send.
func ParsePostType(s string) (PostType, bool) {
	switch strings.TrimSpace(s) {
	case string(PostDonation):
		return PostDonation, true
	case string(PostVolunteering):
		return PostVolunteering, true
	case string(PostKindness), "personalKindness":
		return PostKindness, true
	}
	return "", false
}

// AnonymousName is shown for authors without a username.
const AnonymousName = "anonymous"

// User is the per-account record carrying profile and streak counters.
type User struct {
	ID             string    `gorm:"primarykey;size:36" json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	IsAnonymous    bool      `gorm:"not null" json:"isAnonymous"`
	Username       *string   `gorm:"size:15" json:"username,omitempty"`
	AvatarNumber   int       `gorm:"not null;default:0" json:"avatarNumber"`
	LastPost       time.Time `gorm:"not null" json:"lastPost"`
	LastOpen       time.Time `gorm:"not null" json:"lastOpen"`
	StreakPost     int       `gorm:"not null;default:0" json:"streakPost"`
	StreakPostBest int       `gorm:"not null;default:0" json:"streakPostBest"`
	StreakApp      int       `gorm:"not null;default:0" json:"streakApp"`
	StreakAppBest  int       `gorm:"not null;default:0" json:"streakAppBest"`
}

// NewUser returns a fresh anonymous user with zero counters and sentinel
// timestamps.
func NewUser(id string, createdAt time.Time) *User {
	return &User{
		ID:          id,
		CreatedAt:   createdAt,
		IsAnonymous: true,
		LastPost:    streak.Sentinel,
		LastOpen:    streak.Sentinel,
	}
}

// DisplayName is the author name copied onto posts.
func (u *User) DisplayName() string {
	if u.Username == nil || *u.Username == "" {
		return AnonymousName
	}
	return *u.Username
}

// HasUsername reports whether the permanent username was already chosen.
func (u *User) HasUsername() bool {
	return u.Username != nil && *u.Username != ""
}

// Post is a single good-deed record. Location is always the fuzzed point.
type Post struct {
	ID             string    `gorm:"primarykey;size:32" json:"id"`
	UserID         string    `gorm:"not null;index;size:36" json:"userId"`
	UserName       string    `gorm:"not null" json:"userName"`
	AvatarNumber   int       `gorm:"not null;default:0" json:"avatarNumber"`
	Type           PostType  `gorm:"not null;index;size:16" json:"type"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
	Location       geo.Point `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	LocationString string    `gorm:"not null;default:''" json:"locationString"`
	Description    string    `gorm:"type:text;not null" json:"description"`
}

// PostLocation is the map projection of a post.
type PostLocation struct {
	ID       string    `json:"id"`
	Location geo.Point `json:"location"`
}
