// Package service implements the application operations: anonymous
// sessions, app-open streaks, profile setup, the post lifecycle and the
// feed queries. Collaborators are injected as narrow interfaces.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/apperr"
	"github.com/sujalbistaa/allgood/internal/geo"
	"github.com/sujalbistaa/allgood/internal/metrics"
	"github.com/sujalbistaa/allgood/internal/models"
	"github.com/sujalbistaa/allgood/internal/store"
)

// Store is the persistence the service needs. *store.Store implements it.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, fn store.Mutation) (*models.User, error)
	CreatePost(ctx context.Context, p *models.Post, fn store.Mutation) (*models.User, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, q store.PostQuery) ([]models.Post, error)
	ListLocations(ctx context.Context) ([]models.PostLocation, error)
}

// Moderator decides whether user text may be published.
type Moderator interface {
	CheckText(ctx context.Context, text string) (bool, error)
}

// Geocoder turns a coordinate into a locality string. An empty result
// means the provider knows no locality there.
type Geocoder interface {
	Reverse(ctx context.Context, p geo.Point) (string, error)
}

// Events receives committed changes for live delivery.
type Events interface {
	PostCreated(p models.Post)
	UserChanged(u models.User)
}

// Tokens issues session tokens for user ids.
type Tokens interface {
	Issue(uid string) (string, error)
}

type Deps struct {
	Store     Store
	Moderator Moderator
	Geocoder  Geocoder
	Events    Events
	Tokens    Tokens
	Fuzzer    *geo.Fuzzer
	Metrics   metrics.Provider
	Clock     clockwork.Clock
	Log       *zap.Logger
}

type Options struct {
	// FuzzRadiusMeters bounds how far a post is moved from its true location.
	FuzzRadiusMeters float64
	// DailyLimit allows one post per calendar day.
	DailyLimit bool
	// Location is the calendar used when a request names no time zone.
	Location *time.Location
}

type Service struct {
	store     Store
	moderator Moderator
	geocoder  Geocoder
	events    Events
	tokens    Tokens
	fuzzer    *geo.Fuzzer
	metrics   metrics.Provider
	clock     clockwork.Clock
	log       *zap.Logger
	opts      Options
}

func New(d Deps, o Options) *Service {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(false)
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Fuzzer == nil {
		d.Fuzzer = geo.NewFuzzer(nil)
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return &Service{
		store:     d.Store,
		moderator: d.Moderator,
		geocoder:  d.Geocoder,
		events:    d.Events,
		tokens:    d.Tokens,
		fuzzer:    d.Fuzzer,
		metrics:   d.Metrics,
		clock:     d.Clock,
		log:       d.Log,
		opts:      o,
	}
}

// Location resolves an IANA time zone name. Empty means the configured
// default.
func (s *Service) Location(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return s.opts.Location, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperr.Validation("unknown time zone %q", tz)
	}
	return loc, nil
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) publishUser(u *models.User) {
	if s.events != nil && u != nil {
		s.events.UserChanged(*u)
	}
}
