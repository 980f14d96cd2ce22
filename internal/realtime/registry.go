package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRecipientOffline means the user has no open stream on this instance.
	ErrRecipientOffline = errors.New("realtime: recipient offline")
	// ErrDeliveryFailed means at least one of the user's streams had a full buffer.
	ErrDeliveryFailed = errors.New("realtime: delivery failed")
)

// Event is one message written to a client stream.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Client is a single open stream for a user.
type Client struct {
	id     string
	userID string
	events chan Event
}

// ID identifies the connection.
func (c *Client) ID() string { return c.id }

// UserID returns the owning user.
func (c *Client) UserID() string { return c.userID }

// Events is closed by Registry.Unregister.
func (c *Client) Events() <-chan Event { return c.events }

// PresenceHook observes a user's first connection and last disconnection on this instance.
type PresenceHook interface {
	UserOnline(ctx context.Context, userID string) error
	UserOffline(ctx context.Context, userID string) error
}

// Registry tracks which users are connected to this process. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	buffer   int
	presence PresenceHook
	logger   *zap.Logger
}

// NewRegistry builds an empty registry; buffer sizes each client's event channel.
func NewRegistry(buffer int, logger *zap.Logger) *Registry {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{clients: make(map[string]map[*Client]struct{}), buffer: buffer, logger: logger}
}

// SetPresence installs a hook. Call before the registry is shared.
func (r *Registry) SetPresence(hook PresenceHook) {
	r.mu.Lock()
	r.presence = hook
	r.mu.Unlock()
}

// Register opens a stream for userID.
func (r *Registry) Register(ctx context.Context, userID string) *Client {
	client := &Client{id: uuid.NewString(), userID: userID, events: make(chan Event, r.buffer)}

	r.mu.Lock()
	conns, ok := r.clients[userID]
	if !ok {
		conns = make(map[*Client]struct{})
		r.clients[userID] = conns
	}
	conns[client] = struct{}{}
	first := len(conns) == 1
	hook := r.presence
	r.mu.Unlock()

	if first && hook != nil {
		if err := hook.UserOnline(ctx, userID); err != nil {
			r.logger.Sugar().Warnw("presence online failed", "user_id", userID, "error", err)
		}
	}
	return client
}

// Unregister closes the client's stream. The user entry is purged with its last client.
func (r *Registry) Unregister(ctx context.Context, client *Client) {
	r.mu.Lock()
	conns, ok := r.clients[client.userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := conns[client]; !ok {
		r.mu.Unlock()
		return
	}
	delete(conns, client)
	close(client.events)
	last := len(conns) == 0
	if last {
		delete(r.clients, client.userID)
	}
	hook := r.presence
	r.mu.Unlock()

	if last && hook != nil {
		if err := hook.UserOffline(ctx, client.userID); err != nil {
			r.logger.Sugar().Warnw("presence offline failed", "user_id", client.userID, "error", err)
		}
	}
}

// IsOnline reports whether userID has an open stream here.
func (r *Registry) IsOnline(_ context.Context, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[userID]) > 0
}

// Push offers the event to every stream of userID without blocking.
func (r *Registry) Push(_ context.Context, userID, event string, payload interface{}) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.clients[userID]
	if len(conns) == 0 {
		return ErrRecipientOffline
	}
	delivered := 0
	for client := range conns {
		select {
		case client.events <- Event{Name: event, Payload: payload}:
			delivered++
		default:
		}
	}
	if delivered < len(conns) {
		return ErrDeliveryFailed
	}
	return nil
}

// OnlineUsers returns how many distinct users are connected.
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
