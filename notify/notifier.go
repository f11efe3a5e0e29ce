// Package notify is the outbound push notification channel. Delivery is
// best-effort: the room core never blocks on it and never reads back.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Notification is the payload requested for delivery on round-relevant
// events (invite, win). The downstream push service owns actual delivery.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type Notifier interface {
	Push(ctx context.Context, uid string, n Notification) error
}

// Nop drops every notification. Used when no messaging backend is configured.
type Nop struct{}

func (Nop) Push(context.Context, string, Notification) error { return nil }

// NATS publishes notifications on notifications.<uid> for the push relay to
// pick up.
type NATS struct {
	nc *nats.Conn
}

func Connect(url string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATS{nc: nc}, nil
}

func (n *NATS) Push(ctx context.Context, uid string, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	if err := n.nc.Publish("notifications."+uid, payload); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("notification publish failed")
		return err
	}
	return nil
}

func (n *NATS) Close() {
	n.nc.Close()
}
