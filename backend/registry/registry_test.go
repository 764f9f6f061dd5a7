package registry

import (
	"testing"

	"github.com/avolkov/devchat/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	logger := zerolog.Nop()
	return New(&logger)
}

func TestRegisterUnregister(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	reg.Register("c1", "alice", model.NewWire())
	reg.AttachRoom("c1", "r1")
	reg.AttachRoom("c1", "r2")
	reg.AttachSession("c1", "alice_bob")

	user, ok := reg.User("c1")
	req.True(ok)
	req.Equal("alice", user)

	rooms, session, ok := reg.Unregister("c1")
	req.True(ok)
	req.ElementsMatch([]string{"r1", "r2"}, rooms)
	req.Equal("alice_bob", session)

	_, ok = reg.User("c1")
	req.False(ok)
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	rooms, session, ok := reg.Unregister("ghost")
	req.False(ok)
	req.Empty(rooms)
	req.Empty(session)
}

func TestAttachDetach(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	reg.Register("c1", "alice", model.NewWire())
	reg.AttachRoom("c1", "r1")
	reg.DetachRoom("c1", "r1")

	reg.AttachSession("c1", "alice_bob")
	current, ok := reg.Session("c1")
	req.True(ok)
	req.Equal("alice_bob", current)

	reg.DetachSession("c1")
	current, ok = reg.Session("c1")
	req.True(ok)
	req.Empty(current)

	_, ok = reg.Session("ghost")
	req.False(ok)

	rooms, session, ok := reg.Unregister("c1")
	req.True(ok)
	req.Empty(rooms)
	req.Empty(session)

	// detaching on unknown connections must not panic
	reg.DetachRoom("ghost", "r1")
	reg.DetachSession("ghost")
}

func TestSendDeliversToWire(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	wire := model.NewWire()
	reg.Register("c1", "alice", wire)

	ev := &model.SessionError{Message: "boom"}
	reg.Send("c1", ev)
	req.Len(wire.TX, 1)
	req.Equal(ev, <-wire.TX)
}

func TestSendDropsInsteadOfBlocking(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	wire := model.NewWire()
	reg.Register("c1", "alice", wire)

	// more events than the wire buffer holds; Send must never block
	for i := 0; i < cap(wire.TX)+10; i++ {
		reg.Send("c1", &model.TypingStatus{Author: "bob"})
	}
	req.Len(wire.TX, cap(wire.TX))

	// unknown connection is a silent drop
	reg.Send("ghost", &model.TypingStatus{Author: "bob"})
}
