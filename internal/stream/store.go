// Package stream persists room messages in append order and serves cursor
// based reads of the history.
package stream

import (
	"context"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
)

const DefaultLimit = 50

// Range selects messages strictly after After and strictly before Before.
// Empty cursors are open bounds. With no After cursor the most recent Limit
// messages of the window are returned, always in chronological order.
type Range struct {
	After  string
	Before string
	Limit  int
}

func (r Range) limit() int {
	if r.Limit <= 0 {
		return DefaultLimit
	}
	return r.Limit
}

type Store interface {
	// Append durably stores msg and returns it with its store assigned id.
	// Failures wrap domain.ErrStoreUnavailable.
	Append(ctx context.Context, roomID string, msg domain.Message) (domain.Message, error)
	ReadRange(ctx context.Context, roomID string, r Range) ([]domain.Message, error)
	Ping(ctx context.Context) error
}

// Instrumented records append latency per backend.
type Instrumented struct {
	Store
	backend string
}

func Instrument(s Store, backend string) *Instrumented {
	return &Instrumented{Store: s, backend: backend}
}

func (i *Instrumented) Append(ctx context.Context, roomID string, msg domain.Message) (domain.Message, error) {
	start := time.Now()
	stored, err := i.Store.Append(ctx, roomID, msg)

	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.StoreAppendDuration.WithLabelValues(i.backend, result).Observe(time.Since(start).Seconds())
	return stored, err
}

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
