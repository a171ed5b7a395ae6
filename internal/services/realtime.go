package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/models"
)

const (
	roomChannelPrefix = "safezone:room:"
	userChannelPrefix = "safezone:user:"
	subscriberBuffer  = 32
)

func RoomChannel(roomID string) string { return roomChannelPrefix + roomID }

func UserChannel(userID string) string { return userChannelPrefix + userID }

// Subscription receives events published on one channel.
type Subscription struct {
	C       chan models.RealtimeEvent
	channel string
	hub     *Hub
	once    sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if set, ok := s.hub.subs[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.channel)
			}
		}
		s.hub.mu.Unlock()
		close(s.C)
	})
}

// Hub fans realtime events out to local subscribers. With Redis, publishes go
// through Pub/Sub so every instance delivers to its own sockets; without it
// delivery stays in-process.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string]map[*Subscription]struct{}
	redis *redis.Client
	log   *zap.Logger
}

func NewHub(client *redis.Client, log *zap.Logger) *Hub {
	return &Hub{
		subs:  make(map[string]map[*Subscription]struct{}),
		redis: client,
		log:   log,
	}
}

func (h *Hub) Subscribe(channel string) *Subscription {
	sub := &Subscription{C: make(chan models.RealtimeEvent, subscriberBuffer), channel: channel, hub: h}
	h.mu.Lock()
	set, ok := h.subs[channel]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[channel] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// fanOut delivers to local subscribers. Slow consumers drop events instead of
// stalling the publisher.
func (h *Hub) fanOut(channel string, ev models.RealtimeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[channel] {
		select {
		case sub.C <- ev:
		default:
			h.log.Warn("realtime subscriber full, dropping event", zap.String("channel", channel), zap.String("type", ev.Type))
		}
	}
}

func (h *Hub) Publish(ctx context.Context, channel string, ev models.RealtimeEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if h.redis == nil {
		h.fanOut(channel, ev)
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, channel, data).Err()
}

func (h *Hub) PublishUser(ctx context.Context, userID string, ev models.RealtimeEvent) error {
	return h.Publish(ctx, UserChannel(userID), ev)
}

func (h *Hub) PublishRoom(ctx context.Context, roomID string, ev models.RealtimeEvent) error {
	return h.Publish(ctx, RoomChannel(roomID), ev)
}

// Run relays Redis messages to local subscribers until ctx is done,
// resubscribing with backoff after errors. It returns at once without Redis.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		h.log.Info("Redis not configured; realtime fan-out is local to this instance")
		return
	}

	backoff := time.Second
	for ctx.Err() == nil {
		err := h.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		h.log.Warn("realtime subscriber error", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (h *Hub) listen(ctx context.Context) error {
	pubsub := h.redis.PSubscribe(ctx, roomChannelPrefix+"*", userChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.log.Info("✅ Realtime Redis subscriber started")

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		var ev models.RealtimeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			h.log.Warn("failed to unmarshal realtime event", zap.Error(err))
			continue
		}
		h.fanOut(msg.Channel, ev)
	}
}
