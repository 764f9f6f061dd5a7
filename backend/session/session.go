package session

import (
	"errors"

	"github.com/avolkov/devchat/backend/model"
	"github.com/rs/zerolog"
)

const (
	// maxParticipants is the hard per-session limit. A pairwise session can
	// never hold more than two connections.
	maxParticipants = 2

	// DefaultParticipantCap is the global cap on simultaneous pairwise
	// participants across all sessions combined. The cap models one scarce
	// shared resource, not a per-pair limit.
	DefaultParticipantCap = 2
)

var (
	ErrCapacityExceeded = errors.New("no free direct session slots")
	ErrSessionFull      = errors.New("direct session already has two participants")
)

type (
	Sender interface {
		Send(connID string, ev model.Outbound)
	}

	// Manager owns the mapping from session identifier to participant
	// connections. Sessions move absent -> one participant -> two
	// participants -> absent; an empty session is deleted immediately.
	Manager struct {
		logger   zerolog.Logger
		sender   Sender
		cap      int
		active   int
		sessions map[string][]string
	}

	Config struct {
		Logger *zerolog.Logger
		Sender Sender
		// ParticipantCap overrides DefaultParticipantCap when positive.
		ParticipantCap int
	}
)

func NewManager(cfg Config) *Manager {
	c := cfg.ParticipantCap
	if c <= 0 {
		c = DefaultParticipantCap
	}
	return &Manager{
		logger:   cfg.Logger.With().Str("component", "sessions").Logger(),
		sender:   cfg.Sender,
		cap:      c,
		sessions: make(map[string][]string),
	}
}

// DeriveID computes the session identifier for a pair of users. It is
// order-independent: either party initiating yields the same identifier.
func DeriveID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// TryJoin attaches the connection to the session for the given pair,
// creating the session if absent. The global participant cap is checked
// first and applies regardless of which pair already holds slots. The
// per-session limit is checked independently in case the cap is
// misconfigured or the pair already holds both slots. Returns the session
// identifier and its new participant count.
func (m *Manager) TryJoin(from, to, connID string) (string, int, error) {
	if m.active >= m.cap {
		return "", 0, ErrCapacityExceeded
	}
	id := DeriveID(from, to)
	participants := m.sessions[id]
	if len(participants) >= maxParticipants {
		return "", 0, ErrSessionFull
	}
	m.sessions[id] = append(participants, connID)
	m.active++
	m.logger.Debug().
		Str("sessionID", id).
		Str("connID", connID).
		Int("participants", len(participants)+1).
		Int("active", m.active).
		Msg("connection joined direct session")
	return id, len(participants) + 1, nil
}

// SendDirect delivers a direct message to the other participant(s) of the
// pair's session. The sender's own connection is excluded. Nothing is
// persisted for direct messages.
func (m *Manager) SendDirect(dm model.DirectMessage, senderConn string) {
	id := DeriveID(dm.From, dm.To)
	participants, ok := m.sessions[id]
	if !ok {
		m.logger.Debug().
			Str("sessionID", id).
			Msg("direct message for unknown session dropped")
		return
	}
	var sent bool
	for _, connID := range participants {
		if connID == senderConn {
			continue
		}
		m.sender.Send(connID, &model.DirectMessageReceived{DirectMessage: dm})
		sent = true
	}
	if !sent {
		m.logger.Debug().
			Str("sessionID", id).
			Msg("direct message did not reach anyone")
	}
}

// Leave removes the connection from whichever session it belongs to and
// frees its global slots. Every slot held by the connection is released, so
// a departed connection can never stay pinned against the cap. The session
// is deleted the moment its participant count reaches zero. Calling Leave
// for a connection that is in no session is a no-op.
func (m *Manager) Leave(connID string) (string, bool) {
	var (
		left string
		ok   bool
	)
	for id, participants := range m.sessions {
		kept := make([]string, 0, len(participants))
		for _, c := range participants {
			if c != connID {
				kept = append(kept, c)
			}
		}
		if len(kept) == len(participants) {
			continue
		}
		m.active -= len(participants) - len(kept)
		left, ok = id, true
		if len(kept) == 0 {
			delete(m.sessions, id)
			m.logger.Debug().
				Str("sessionID", id).
				Msg("direct session deleted")
			continue
		}
		m.sessions[id] = kept
	}
	return left, ok
}

// Active reports the number of participants currently counted against the
// global cap.
func (m *Manager) Active() int {
	return m.active
}

// Participants reports the participant count of a session, zero if absent.
func (m *Manager) Participants(sessionID string) int {
	return len(m.sessions[sessionID])
}
