package ws

import (
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/models"
)

// Message is the envelope every websocket payload is sent in.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Notifier publishes service events to websocket clients.
type Notifier struct {
	hub  *Hub
	feed *UserFeed
	log  *zap.Logger
}

func NewNotifier(hub *Hub, feed *UserFeed, log *zap.Logger) *Notifier {
	return &Notifier{hub: hub, feed: feed, log: log}
}

// PostCreated broadcasts a new post to every map client.
func (n *Notifier) PostCreated(p models.Post) {
	n.broadcast(Message{Type: "new_post", Data: p})
}

// UserChanged sends the new user record to its subscriptions.
func (n *Notifier) UserChanged(u models.User) {
	n.feed.Publish(u)
}

func (n *Notifier) broadcast(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		n.log.Error("marshal websocket message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	select {
	case n.hub.Broadcast <- raw:
	default:
		n.log.Warn("websocket broadcast queue full, dropping message", zap.String("type", msg.Type))
	}
}
