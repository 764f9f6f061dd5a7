package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/avolkov/devchat/backend/model"
	"github.com/avolkov/devchat/backend/registry"
	"github.com/avolkov/devchat/backend/rooms"
	"github.com/avolkov/devchat/backend/session"
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

const defaultQueueSize = 64

var ErrAlreadyInSession = errors.New("connection already participates in a direct session")

type reqKind int

const (
	reqConnect reqKind = iota
	reqDisconnect
	reqEvent
)

type request struct {
	kind   reqKind
	connID string
	user   string
	wire   model.Wire
	event  model.Inbound
}

type (
	// Router is the single writer for all shared relay state. Transport
	// goroutines submit requests onto one queue; the Run loop applies each
	// mutation together with its side effects before picking up the next
	// request, so no two mutations of the same room or session interleave.
	Router struct {
		logger   zerolog.Logger
		reg      *registry.Registry
		rooms    *rooms.Manager
		sessions *session.Manager
		requests chan request
	}

	Config struct {
		Logger   *zerolog.Logger
		Registry *registry.Registry
		Rooms    *rooms.Manager
		Sessions *session.Manager
	}
)

func NewRouter(cfg Config) *Router {
	return &Router{
		logger:   cfg.Logger.With().Str("component", "relay").Logger(),
		reg:      cfg.Registry,
		rooms:    cfg.Rooms,
		sessions: cfg.Sessions,
		requests: make(chan request, defaultQueueSize),
	}
}

// Connect registers a new connection with its authenticated user and
// outbound wire.
func (r *Router) Connect(ctx context.Context, connID, user string, wire model.Wire) error {
	return r.submit(ctx, request{kind: reqConnect, connID: connID, user: user, wire: wire})
}

// Disconnect tears down a connection and all of its memberships.
func (r *Router) Disconnect(ctx context.Context, connID string) error {
	return r.submit(ctx, request{kind: reqDisconnect, connID: connID})
}

// Submit queues one inbound event for dispatch.
func (r *Router) Submit(ctx context.Context, connID string, ev model.Inbound) error {
	return r.submit(ctx, request{kind: reqEvent, connID: connID, event: ev})
}

func (r *Router) submit(ctx context.Context, req request) error {
	select {
	case r.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the request queue until the context is canceled. It must be
// the only goroutine ever calling into the registry and the managers.
func (r *Router) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer func() {
		r.logger.Debug().Msg("router stopped")
		wg.Done()
	}()

	r.logger.Info().Msg("router started")
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.requests:
			r.handle(ctx, req)
		}
	}
}

func (r *Router) handle(ctx context.Context, req request) {
	switch req.kind {
	case reqConnect:
		r.reg.Register(req.connID, req.user, req.wire)
		r.logger.Debug().
			Str("connID", req.connID).
			Str("user", req.user).
			Msg("connection registered")

	case reqDisconnect:
		joined, sessionID, ok := r.reg.Unregister(req.connID)
		if !ok {
			return
		}
		for _, room := range joined {
			r.rooms.Leave(room, req.connID)
		}
		if sessionID != "" {
			r.sessions.Leave(req.connID)
		}
		r.logger.Debug().
			Str("connID", req.connID).
			Msg("connection unregistered")

	case reqEvent:
		r.dispatch(ctx, req.connID, req.event)
	}
}

// dispatch applies one inbound event. Author/from fields are stamped with
// the connection's authenticated identity, client-supplied values are not
// trusted. Manager failures turn into a session-error event for the
// originating connection only; they never terminate the connection.
func (r *Router) dispatch(ctx context.Context, connID string, ev model.Inbound) {
	user, ok := r.reg.User(connID)
	if !ok {
		r.logger.Warn().
			Str("connID", connID).
			Msg("event from unknown connection dropped")
		return
	}
	if t := r.logger.Trace(); t.Enabled() {
		t.Str("connID", connID).
			Str("user", user).
			Str("event", spew.Sdump(ev)).
			Msg("dispatching")
	}

	switch e := ev.(type) {
	case *model.JoinRoom:
		r.rooms.Join(ctx, e.Room, connID)

	case *model.LeaveRoom:
		r.rooms.Leave(e.Room, connID)

	case *model.SendRoomMessage:
		msg := e.Message
		msg.Author = user
		r.rooms.RecordAndBroadcast(ctx, msg)

	case *model.Typing:
		r.rooms.Broadcast(e.Room, &model.TypingStatus{
			Author:  user,
			Message: e.Message,
		}, connID)

	case *model.StartDirectSession:
		// a connection holds at most one session; a repeated start for the
		// same pair is a rejoin, anything else is rejected so one
		// connection cannot pin two global slots
		id := session.DeriveID(user, e.To)
		if current, _ := r.reg.Session(connID); current != "" {
			if current == id {
				r.reg.Send(connID, &model.SessionStarted{
					SessionID:        id,
					ParticipantCount: r.sessions.Participants(id),
				})
				return
			}
			r.reg.Send(connID, &model.SessionError{Message: ErrAlreadyInSession.Error()})
			return
		}
		_, count, err := r.sessions.TryJoin(user, e.To, connID)
		if err != nil {
			r.reg.Send(connID, &model.SessionError{Message: err.Error()})
			return
		}
		r.reg.AttachSession(connID, id)
		r.reg.Send(connID, &model.SessionStarted{
			SessionID:        id,
			ParticipantCount: count,
		})

	case *model.DirectMessage:
		dm := *e
		dm.From = user
		r.sessions.SendDirect(dm, connID)

	default:
		r.logger.Error().
			Str("connID", connID).
			Msg("inbound event with no dispatch entry")
	}
}
