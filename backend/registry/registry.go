package registry

import (
	"github.com/avolkov/devchat/backend/model"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type entry struct {
	user    string
	wire    model.Wire
	rooms   map[string]struct{}
	session string
}

// Registry tracks every live connection: its authenticated user, its outbound
// wire, the rooms it joined and the pairwise session it participates in (at
// most one). It is mutated only from the router's event loop, so it carries
// no locks.
type Registry struct {
	logger zerolog.Logger
	conns  map[string]*entry
}

func New(logger *zerolog.Logger) *Registry {
	return &Registry{
		logger: logger.With().Str("component", "registry").Logger(),
		conns:  make(map[string]*entry),
	}
}

// Register creates an empty membership record for a connection.
func (r *Registry) Register(connID, user string, wire model.Wire) {
	r.conns[connID] = &entry{
		user:  user,
		wire:  wire,
		rooms: make(map[string]struct{}),
	}
}

// Unregister removes the connection and returns the rooms and pairwise
// session it was part of, so the caller can propagate cleanup. Unregistering
// an unknown connection is a no-op.
func (r *Registry) Unregister(connID string) (rooms []string, session string, ok bool) {
	e, ok := r.conns[connID]
	if !ok {
		return nil, "", false
	}
	delete(r.conns, connID)
	return lo.Keys(e.rooms), e.session, true
}

// User resolves a connection to its authenticated username.
func (r *Registry) User(connID string) (string, bool) {
	e, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return e.user, true
}

func (r *Registry) AttachRoom(connID, room string) {
	if e, ok := r.conns[connID]; ok {
		e.rooms[room] = struct{}{}
	}
}

func (r *Registry) DetachRoom(connID, room string) {
	if e, ok := r.conns[connID]; ok {
		delete(e.rooms, room)
	}
}

// Session reports the pairwise session the connection participates in,
// empty if none.
func (r *Registry) Session(connID string) (string, bool) {
	e, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return e.session, true
}

func (r *Registry) AttachSession(connID, sessionID string) {
	if e, ok := r.conns[connID]; ok {
		e.session = sessionID
	}
}

func (r *Registry) DetachSession(connID string) {
	if e, ok := r.conns[connID]; ok {
		e.session = ""
	}
}

// Send delivers an outbound event to a single connection. Delivery is
// best-effort: events for unknown connections are dropped, and a wire whose
// buffer is full loses the event instead of stalling the event loop.
func (r *Registry) Send(connID string, ev model.Outbound) {
	e, ok := r.conns[connID]
	if !ok {
		r.logger.Debug().
			Str("connID", connID).
			Msg("cannot deliver, connection not found")
		return
	}
	select {
	case e.wire.TX <- ev:
	default:
		r.logger.Warn().
			Str("connID", connID).
			Str("user", e.user).
			Msg("wire buffer full, event dropped")
	}
}
