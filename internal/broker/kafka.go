package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// kgoRecordCarrier adapts record headers for trace context propagation.
type kgoRecordCarrier struct {
	record *kgo.Record
}

func (c kgoRecordCarrier) Get(key string) string {
	for _, h := range c.record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c kgoRecordCarrier) Set(key string, value string) {
	c.record.Headers = append(c.record.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

func (c kgoRecordCarrier) Keys() []string {
	keys := make([]string, 0, len(c.record.Headers))
	for _, h := range c.record.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// Kafka relays room events on a single topic keyed by room id, so the
// default key partitioner keeps every room on one partition and in order.
// Each instance reads the whole topic from the end without a consumer group
// and drops records for rooms it has no local members in.
type Kafka struct {
	client *kgo.Client
	topic  string

	mu       sync.RWMutex
	handlers map[string]Handler

	cancel context.CancelFunc
	done   chan struct{}
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	k := &Kafka{
		client:   cl,
		topic:    topic,
		handlers: make(map[string]Handler),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go k.poll(ctx)
	return k, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, roomID string, payload []byte) error {
	rec := &kgo.Record{Key: []byte(roomID), Value: payload}
	otel.GetTextMapPropagator().Inject(ctx, kgoRecordCarrier{record: rec})
	return k.client.ProduceSync(ctx, rec).FirstErr()
}

func (k *Kafka) Subscribe(ctx context.Context, roomID string, h Handler) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.handlers[roomID] = h
	return nil
}

func (k *Kafka) Unsubscribe(ctx context.Context, roomID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.handlers, roomID)
	return nil
}

func (k *Kafka) poll(ctx context.Context) {
	defer close(k.done)
	log := observability.GetLogger(ctx)
	log.Info("broker: kafka consumer started", zap.String("topic", k.topic))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			fetches := k.client.PollFetches(ctx)
			if fetches.IsClientClosed() {
				return
			}
			if errs := fetches.Errors(); len(errs) > 0 {
				for _, ferr := range errs {
					if errors.Is(ferr.Err, context.Canceled) {
						return
					}
					log.Error("kafka fetch error", zap.String("topic", ferr.Topic), zap.Int32("partition", ferr.Partition), zap.Error(ferr.Err))
				}
				continue
			}

			fetches.EachRecord(func(r *kgo.Record) {
				roomID := string(r.Key)

				k.mu.RLock()
				h := k.handlers[roomID]
				k.mu.RUnlock()
				if h == nil {
					return
				}

				rctx := otel.GetTextMapPropagator().Extract(ctx, kgoRecordCarrier{record: r})
				h(rctx, roomID, r.Value)
			})
		}
	}
}

func (k *Kafka) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *Kafka) Close() error {
	k.cancel()
	k.client.Close()
	<-k.done
	return nil
}
