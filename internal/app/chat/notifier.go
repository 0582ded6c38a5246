/*
Package chat contains the real-time notification core: the connection registry,
event router, per-user room cache, and broadcast dispatcher.

This file defines the Notifier struct, the entry point event producers inject
and call. Publish runs an event through the full pipeline: resolve targets,
update each target's room cache, push to live connections. Events of one room
are processed strictly in submission order; unrelated rooms never wait on each
other.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"chatcore/internal/pkg/logx"
)

// Notifier ties the router, cache, and dispatcher together behind a single
// Publish operation. It holds no ambient global state; producers receive an
// instance via injection.
type Notifier struct {
	router     *Router
	cache      *Cache
	dispatcher *Dispatcher

	// roomLocks serializes Publish per chat id. Locks are kept for the life
	// of the process; rooms are long-lived and the entry is two words.
	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex

	logger zerolog.Logger
}

// NewNotifier wires a Notifier from its three collaborators.
func NewNotifier(router *Router, cache *Cache, dispatcher *Dispatcher) *Notifier {
	return &Notifier{
		router:     router,
		cache:      cache,
		dispatcher: dispatcher,
		roomLocks:  make(map[string]*sync.Mutex),
		logger:     logx.Logger().With().Str("component", "notifier").Logger(),
	}
}

func (n *Notifier) roomLock(chatID string) *sync.Mutex {
	n.mu.Lock()
	defer n.mu.Unlock()

	l, ok := n.roomLocks[chatID]
	if !ok {
		l = &sync.Mutex{}
		n.roomLocks[chatID] = l
	}
	return l
}

// Publish routes the event, applies the resulting summary to every target
// user's cache, and dispatches the envelope to their live connections.
// Routing errors (unknown room, invalid participants) leave the cache and
// registry untouched and are returned to the producer. Send failures are
// handled inside the dispatcher and only surface in the Report.
func (n *Notifier) Publish(event Event) (Report, error) {
	lock := n.roomLock(event.ChatID())
	lock.Lock()
	defer lock.Unlock()

	delivery, err := n.router.Route(event)
	if err != nil {
		return Report{}, err
	}

	for _, userID := range delivery.Targets {
		n.cache.Apply(userID, delivery.Summary)
	}

	report := n.dispatcher.Dispatch(delivery.Targets, delivery.Envelope)

	n.logger.Debug().
		Str("chat_id", event.ChatID()).
		Int("targets", len(delivery.Targets)).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Int("offline", report.Offline).
		Msg("Event published")

	return report, nil
}

// Rooms returns the user's current ordered room summaries.
func (n *Notifier) Rooms(userID string) []RoomSummary {
	return n.cache.Snapshot(userID)
}

// Participants exposes the router's participant set for chatID, letting
// producers validate membership before persisting a message.
func (n *Notifier) Participants(chatID string) ([]string, error) {
	return n.router.Participants(chatID)
}

// RoomKindOf exposes the kind recorded for chatID.
func (n *Notifier) RoomKindOf(chatID string) (RoomKind, error) {
	return n.router.RoomKindOf(chatID)
}

// SeedRoom rehydrates a room's routing entry from durable storage without
// broadcasting anything.
func (n *Notifier) SeedRoom(chatID string, kind RoomKind, name *string, participants []string) {
	n.router.Seed(chatID, kind, name, participants)
}
