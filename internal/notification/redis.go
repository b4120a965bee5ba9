package notification

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"Fixer-backend/internal/model"
)

// ChannelPrefix namespaces the per-user pub/sub channels.
const ChannelPrefix = "notifications:"

// Envelope is the realtime message pushed to websocket clients.
type Envelope struct {
	Type         string              `json:"type"`
	Notification *model.Notification `json:"notification"`
}

// ChannelFor returns the pub/sub channel of a user.
func ChannelFor(userID uint) string {
	return ChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

func userFromChannel(channel string) (uint, bool) {
	raw := strings.TrimPrefix(channel, ChannelPrefix)
	if raw == channel {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func encode(n *model.Notification) ([]byte, error) {
	return json.Marshal(Envelope{Type: "notification", Notification: n})
}

// RedisPusher publishes notifications so every API instance can reach the
// user's websocket connections.
type RedisPusher struct {
	rdb *redis.Client
}

func NewRedisPusher(rdb *redis.Client) *RedisPusher {
	return &RedisPusher{rdb: rdb}
}

func (p *RedisPusher) Name() string { return "redis" }

func (p *RedisPusher) Accepts(model.NotificationType) bool { return true }

func (p *RedisPusher) Deliver(ctx context.Context, _ *model.User, n *model.Notification) error {
	payload, err := encode(n)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, ChannelFor(n.UserID), payload).Err()
}
