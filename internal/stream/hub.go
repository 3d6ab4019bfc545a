package stream

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans delivered samples out to live subscribers, keyed by identity.
// With a Redis client it also bridges broadcasts across agent instances.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Identity string
	Send     chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(identity string) *Client {
	client := &Client{
		Identity: identity,
		Send:     make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[identity] == nil {
		h.clients[identity] = map[*Client]struct{}{}
	}
	h.clients[identity][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if identityClients, ok := h.clients[client.Identity]; ok {
		delete(identityClients, client)
		if len(identityClients) == 0 {
			delete(h.clients, client.Identity)
		}
	}
	close(client.Send)
}

// Broadcast routes a payload to every subscriber of the identity. With
// Redis attached the payload goes through pub/sub so other instances see
// it too; local delivery then happens in the subscription loop. A failed
// publish falls back to direct local delivery.
func (h *Hub) Broadcast(identity string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(identity), payload).Err()
		if err == nil {
			return
		}
		log.Printf("redis publish error: %v", err)
	}
	h.deliver(identity, payload)
}

// deliver holds the lock across the sends; Unregister closes Send under
// the write lock, so a send can never race the close. Sends are
// non-blocking so a slow consumer drops messages rather than stalling
// the hub.
func (h *Hub) deliver(identity string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[identity] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "relay:*:live")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliver(identityFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

func redisChannel(identity string) string {
	return "relay:" + identity + ":live"
}

func identityFromChannel(ch string) string {
	// relay:{identity}:live
	const prefix = "relay:"
	const suffix = ":live"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
