package stream

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/redis/go-redis/v9"
)

var streamIDPattern = regexp.MustCompile(`^\d+-\d+$`)

// Redis stores each room as the stream messages:{room}. Entry ids are
// assigned by XADD and are the message ids.
type Redis struct {
	client *redis.Client
	maxLen int64
}

// NewRedis returns a Redis stream store. maxLen > 0 trims every stream
// approximately to that many entries on append.
func NewRedis(client *redis.Client, maxLen int64) *Redis {
	return &Redis{client: client, maxLen: maxLen}
}

func streamKey(roomID string) string {
	return "messages:" + roomID
}

func (s *Redis) Append(ctx context.Context, roomID string, msg domain.Message) (domain.Message, error) {
	args := &redis.XAddArgs{
		Stream: streamKey(roomID),
		ID:     "*",
		Values: []any{
			"userId", msg.UserID,
			"username", msg.Username,
			"avatar", msg.Avatar,
			"text", msg.Text,
			"type", string(msg.Kind),
			"timestamp", strconv.FormatInt(msg.Timestamp, 10),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: xadd %s: %v", domain.ErrStoreUnavailable, roomID, err)
	}

	msg.ID = id
	msg.RoomID = roomID
	return msg, nil
}

func (s *Redis) ReadRange(ctx context.Context, roomID string, r Range) ([]domain.Message, error) {
	for _, c := range []string{r.After, r.Before} {
		if c != "" && !streamIDPattern.MatchString(c) {
			return nil, fmt.Errorf("%w: bad cursor %q", domain.ErrInvalidInput, c)
		}
	}

	key := streamKey(roomID)
	limit := int64(r.limit())

	var (
		entries  []redis.XMessage
		err      error
		reversed bool
	)
	switch {
	case r.After == "" && r.Before == "":
		entries, err = s.client.XRevRangeN(ctx, key, "+", "-", limit).Result()
		reversed = true
	case r.After == "":
		entries, err = s.client.XRevRangeN(ctx, key, "("+r.Before, "-", limit).Result()
		reversed = true
	case r.Before == "":
		entries, err = s.client.XRangeN(ctx, key, "("+r.After, "+", limit).Result()
	default:
		entries, err = s.client.XRangeN(ctx, key, "("+r.After, "("+r.Before, limit).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStoreUnavailable, roomID, err)
	}

	msgs := make([]domain.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, decodeEntry(roomID, e))
	}
	if reversed {
		reverse(msgs)
	}
	return msgs, nil
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeEntry(roomID string, e redis.XMessage) domain.Message {
	field := func(name string) string {
		v, _ := e.Values[name].(string)
		return v
	}
	ts, _ := strconv.ParseInt(field("timestamp"), 10, 64)
	kind, err := domain.ParseKind(field("type"))
	if err != nil {
		kind = domain.KindText
	}

	return domain.Message{
		ID:        e.ID,
		RoomID:    roomID,
		UserID:    field("userId"),
		Username:  field("username"),
		Avatar:    field("avatar"),
		Text:      field("text"),
		Kind:      kind,
		Timestamp: ts,
	}
}
