package rooms

import (
	"context"

	"github.com/avolkov/devchat/backend/model"
	"github.com/avolkov/devchat/backend/registry"
	"github.com/rs/zerolog"
)

type (
	// History is the durable-storage collaborator for room messages. The
	// manager calls it but does not implement it.
	History interface {
		LoadHistory(ctx context.Context, room string) ([]model.Message, error)
		RecordMessage(ctx context.Context, room string, msg model.Message) error
	}

	Sender interface {
		Send(connID string, ev model.Outbound)
	}

	// Manager tracks named broadcast rooms. Rooms are created implicitly on
	// first join and have no membership limit. Like the registry it is only
	// ever touched from the router's event loop.
	Manager struct {
		logger  zerolog.Logger
		reg     *registry.Registry
		history History
		sender  Sender
		rooms   map[string]map[string]struct{}
	}

	Config struct {
		Logger   *zerolog.Logger
		Registry *registry.Registry
		History  History
		Sender   Sender
	}
)

func NewManager(cfg Config) *Manager {
	return &Manager{
		logger:  cfg.Logger.With().Str("component", "rooms").Logger(),
		reg:     cfg.Registry,
		history: cfg.History,
		sender:  cfg.Sender,
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room, creating the room if absent.
// Rejoining is a no-op for membership, but history is (re)delivered to the
// joining connection on every join, ordered by original send time ascending.
func (m *Manager) Join(ctx context.Context, room, connID string) {
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		m.rooms[room] = members
	}
	if _, joined := members[connID]; !joined {
		members[connID] = struct{}{}
		m.reg.AttachRoom(connID, room)
		m.logger.Debug().
			Str("connID", connID).
			Str("room", room).
			Msg("connection joined room")
	}

	msgs, err := m.history.LoadHistory(ctx, room)
	if err != nil {
		m.logger.Error().Err(err).
			Str("room", room).
			Msg("failed to load room history")
		return
	}
	m.sender.Send(connID, &model.HistoryLoaded{Messages: msgs})
}

// Leave removes the connection from the room. Empty rooms are discarded.
func (m *Manager) Leave(room, connID string) {
	members, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(m.rooms, room)
	}
	m.reg.DetachRoom(connID, room)
	m.logger.Debug().
		Str("connID", connID).
		Str("room", room).
		Msg("connection left room")
}

// Broadcast delivers an event to every member of the room except the
// optionally excluded connection. A room with no members is a no-op.
func (m *Manager) Broadcast(room string, ev model.Outbound, exclude string) {
	for connID := range m.rooms[room] {
		if connID != exclude {
			m.sender.Send(connID, ev)
		}
	}
}

// RecordAndBroadcast persists the message, then delivers it to every member
// of the room, sender included. A persistence failure is logged and does not
// block the broadcast: delivery to live participants takes priority over
// durability.
func (m *Manager) RecordAndBroadcast(ctx context.Context, msg model.Message) {
	if err := m.history.RecordMessage(ctx, msg.Room, msg); err != nil {
		m.logger.Error().Err(err).
			Str("room", msg.Room).
			Str("author", msg.Author).
			Msg("failed to persist message, broadcasting anyway")
	}
	m.Broadcast(msg.Room, &model.MessageReceived{Message: msg}, "")
}
