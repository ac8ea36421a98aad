package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/models"
)

var (
	ErrAlreadyStarted = errors.New("subscription already started")
	ErrStopped        = errors.New("subscription stopped")
)

// UserFeed routes user record updates to the subscriptions watching that user.
type UserFeed struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewUserFeed() *UserFeed {
	return &UserFeed{subs: make(map[string]map[*Subscription]struct{})}
}

// Publish delivers u to every started subscription for u.ID. It never
// blocks: a subscriber that has not drained its last update gets the newer
// one in its place.
func (f *UserFeed) Publish(u models.User) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for s := range f.subs[u.ID] {
		s.offer(u)
	}
}

// Subscribers returns how many subscriptions watch uid.
func (f *UserFeed) Subscribers(uid string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[uid])
}

// Subscription is a caller-owned watch on one user's record. It is
// inactive until Start and must be released with Stop.
type Subscription struct {
	feed    *UserFeed
	mu      sync.Mutex
	uid     string
	started bool
	stopped bool
	updates chan models.User
}

// Subscribe returns an inactive subscription on f.
func (f *UserFeed) Subscribe() *Subscription {
	return &Subscription{feed: f, updates: make(chan models.User, 1)}
}

// Start begins delivering updates for uid.
func (s *Subscription) Start(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return ErrStopped
	case s.started:
		return ErrAlreadyStarted
	case uid == "":
		return errors.New("subscription needs a user id")
	}

	s.feed.mu.Lock()
	if s.feed.subs[uid] == nil {
		s.feed.subs[uid] = make(map[*Subscription]struct{})
	}
	s.feed.subs[uid][s] = struct{}{}
	s.feed.mu.Unlock()

	s.uid = uid
	s.started = true
	return nil
}

// Stop detaches the subscription and closes Updates. It is safe to call
// more than once.
func (s *Subscription) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	if s.started {
		s.feed.mu.Lock()
		delete(s.feed.subs[s.uid], s)
		if len(s.feed.subs[s.uid]) == 0 {
			delete(s.feed.subs, s.uid)
		}
		s.feed.mu.Unlock()
	}
	close(s.updates)
}

// Updates yields the latest user snapshots until Stop.
func (s *Subscription) Updates() <-chan models.User { return s.updates }

// offer is called with the feed read lock held, so Stop cannot close
// updates concurrently.
func (s *Subscription) offer(u models.User) {
	for {
		select {
		case s.updates <- u:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// ServeUserWs upgrades the request and streams uid's record: the initial
// snapshot first, then every published change until the client leaves.
func ServeUserWs(feed *UserFeed, initial models.User, log *zap.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := feed.Subscribe()
	if err := sub.Start(initial.ID); err != nil {
		log.Warn("user subscription failed", zap.String("uid", initial.ID), zap.Error(err))
		conn.Close()
		return
	}

	out := make(chan Message, 1)
	out <- Message{Type: "user", Data: initial}
	quit := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case u, ok := <-sub.Updates():
				if !ok {
					return
				}
				select {
				case out <- Message{Type: "user", Data: u}:
				case <-quit:
					return
				}
			case <-quit:
				return
			}
		}
	}()
	go writeLoop(conn, out)

	go func() {
		defer func() {
			close(quit)
			sub.Stop()
		}()
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("user websocket closed", zap.String("uid", initial.ID), zap.Error(err))
				}
				return
			}
		}
	}()
}
