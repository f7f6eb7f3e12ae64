package broker

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const natsSubjectPrefix = "chat.room."

type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "chat-relay",
		MaxReconnects: -1,
		ReconnectWait: time.Second,
	}
}

// NATS relays room events on core NATS subjects. Room ids are base64url
// encoded so that dots and wildcards in ids never change the subject shape.
type NATS struct {
	nc *nats.Conn

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	log := observability.GetLogger(context.Background())
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if log != nil {
				log.Warn("broker: nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if log != nil {
				log.Info("broker: nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATS{nc: nc, subs: make(map[string]*nats.Subscription)}, nil
}

func natsSubject(roomID string) string {
	return natsSubjectPrefix + base64.RawURLEncoding.EncodeToString([]byte(roomID))
}

func (n *NATS) Name() string { return "nats" }

// Publish flushes when ctx carries a deadline so that a dead server surfaces
// as an error instead of a silently buffered message.
func (n *NATS) Publish(ctx context.Context, roomID string, payload []byte) error {
	if err := n.nc.Publish(natsSubject(roomID), payload); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); ok {
		return n.nc.FlushWithContext(ctx)
	}
	return nil
}

func (n *NATS) Subscribe(ctx context.Context, roomID string, h Handler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[roomID]; ok {
		return nil
	}
	sub, err := n.nc.Subscribe(natsSubject(roomID), func(m *nats.Msg) {
		h(context.Background(), roomID, m.Data)
	})
	if err != nil {
		return err
	}
	n.subs[roomID] = sub
	return nil
}

func (n *NATS) Unsubscribe(ctx context.Context, roomID string) error {
	n.mu.Lock()
	sub, ok := n.subs[roomID]
	delete(n.subs, roomID)
	n.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

func (n *NATS) Ping(ctx context.Context) error {
	if !n.nc.IsConnected() {
		return fmt.Errorf("nats: %s", n.nc.Status())
	}
	return nil
}

func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}
