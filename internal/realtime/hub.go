// Package realtime fans stream status and viewer-count updates out to
// connected WebSocket clients, bridged across instances with Redis pub/sub.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vistream/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// RedisPublisher publishes to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishStreamEvent(streamID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to stream channels and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeStream(streamID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains stream_id -> set of connections and broadcasts messages.
// Local broadcast plus publish to Redis for horizontal scaling.
type Hub struct {
	streams  map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		streams:  make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a stream room. Starts the Redis subscription for
// this stream if it is the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.streams[c.StreamID] == nil {
		h.streams[c.StreamID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeStream(c.StreamID, func(event string, payload []byte) {
				h.BroadcastToStream(c.StreamID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.StreamID] = cancel
			}
		}
	}
	h.streams[c.StreamID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined stream", zap.String("client_id", c.ID), zap.String("stream_id", c.StreamID.String()))
}

// Unregister removes a client from a stream room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.streams[c.StreamID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.streams, c.StreamID)
			if cancel, ok := h.subs[c.StreamID]; ok {
				cancel()
				delete(h.subs, c.StreamID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left stream", zap.String("client_id", c.ID), zap.String("stream_id", c.StreamID.String()))
}

// BroadcastToStream sends a message to all clients in a stream room (local
// only).
func (h *Hub) BroadcastToStream(streamID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.streams[streamID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToStreamAndPublish sends to local clients and publishes to Redis
// for other instances.
func (h *Hub) BroadcastToStreamAndPublish(streamID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToStream(streamID, event, json.RawMessage(data))
	if h.redis != nil {
		_ = h.redis.PublishStreamEvent(streamID, event, data)
	}
}

// WatcherCount returns the number of connected clients in a stream room.
func (h *Hub) WatcherCount(streamID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[streamID])
}

// NotifyStreamStatus broadcasts a lifecycle change to the stream's room.
func (h *Hub) NotifyStreamStatus(stream models.Stream) {
	h.BroadcastToStreamAndPublish(stream.ID, "stream_status", map[string]interface{}{
		"stream_id":    stream.ID,
		"status":       stream.Status,
		"playback_url": stream.PlaybackURL,
		"started_at":   stream.StartedAt,
		"ended_at":     stream.EndedAt,
	})
}

// NotifyViewerCount broadcasts the provider's viewer-count hint.
func (h *Hub) NotifyViewerCount(streamID uuid.UUID, count int) {
	h.BroadcastToStreamAndPublish(streamID, "viewer_count", map[string]int{"count": count})
}

// NotifyRecordingReady broadcasts that the stream's VOD asset is available.
func (h *Hub) NotifyRecordingReady(rec models.Recording) {
	h.BroadcastToStreamAndPublish(rec.StreamID, "recording_ready", map[string]interface{}{
		"recording_id":     rec.ID,
		"duration_seconds": rec.DurationSeconds,
	})
}
