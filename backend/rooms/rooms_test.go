package rooms

import (
	"context"
	"errors"
	"testing"

	"github.com/avolkov/devchat/backend/model"
	"github.com/avolkov/devchat/backend/registry"
	"github.com/avolkov/devchat/backend/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type sent struct {
	connID string
	event  model.Outbound
}

type captureSender struct {
	events []sent
}

func (c *captureSender) Send(connID string, ev model.Outbound) {
	c.events = append(c.events, sent{connID: connID, event: ev})
}

func (c *captureSender) reset() {
	c.events = nil
}

type brokenHistory struct{}

func (brokenHistory) LoadHistory(context.Context, string) ([]model.Message, error) {
	return nil, errors.New("disk on fire")
}

func (brokenHistory) RecordMessage(context.Context, string, model.Message) error {
	return errors.New("disk on fire")
}

func newTestManager(h History) (*Manager, *registry.Registry, *captureSender) {
	logger := zerolog.Nop()
	reg := registry.New(&logger)
	sender := &captureSender{}
	m := NewManager(Config{
		Logger:   &logger,
		Registry: reg,
		History:  h,
		Sender:   sender,
	})
	return m, reg, sender
}

func TestJoinTracksMembership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, reg, _ := newTestManager(memory.NewMemStore())

	reg.Register("c1", "alice", model.NewWire())
	reg.Register("c2", "bob", model.NewWire())

	m.Join(ctx, "go", "c1")
	m.Join(ctx, "go", "c2")
	m.Join(ctx, "go", "c1") // rejoin is a membership no-op
	req.Len(m.rooms["go"], 2)

	m.Leave("go", "c2")
	req.Len(m.rooms["go"], 1)
	_, ok := m.rooms["go"]["c1"]
	req.True(ok)

	rooms, _, ok := reg.Unregister("c1")
	req.True(ok)
	req.Equal([]string{"go"}, rooms)
}

func TestLeaveDropsEmptyRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, reg, _ := newTestManager(memory.NewMemStore())

	reg.Register("c1", "alice", model.NewWire())
	m.Join(ctx, "go", "c1")
	m.Leave("go", "c1")
	req.NotContains(m.rooms, "go")

	// leaving a room that never existed must not panic
	m.Leave("rust", "c1")
}

func TestJoinDeliversHistoryToJoinerOnly(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ms := memory.NewMemStore()
	m, reg, sender := newTestManager(ms)

	older := model.Message{Room: "go", Author: "alice", Message: "first", Time: "10:00"}
	newer := model.Message{Room: "go", Author: "bob", Message: "second", Time: "10:05"}
	req.NoError(ms.RecordMessage(ctx, "go", older))
	req.NoError(ms.RecordMessage(ctx, "go", newer))

	reg.Register("c1", "alice", model.NewWire())
	reg.Register("c2", "bob", model.NewWire())
	m.Join(ctx, "go", "c1")

	req.Len(sender.events, 1)
	req.Equal("c1", sender.events[0].connID)
	loaded, ok := sender.events[0].event.(*model.HistoryLoaded)
	req.True(ok)
	req.Equal([]model.Message{older, newer}, loaded.Messages)

	// a second join only notifies the second joiner
	sender.reset()
	m.Join(ctx, "go", "c2")
	req.Len(sender.events, 1)
	req.Equal("c2", sender.events[0].connID)
}

func TestJoinWithBrokenHistorySkipsDelivery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, reg, sender := newTestManager(brokenHistory{})

	reg.Register("c1", "alice", model.NewWire())
	m.Join(ctx, "go", "c1")

	// membership survives, only the history event is missing
	req.Len(m.rooms["go"], 1)
	req.Empty(sender.events)
}

func TestBroadcastExcludesSender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, reg, sender := newTestManager(memory.NewMemStore())

	for _, c := range []string{"c1", "c2", "c3"} {
		reg.Register(c, "u-"+c, model.NewWire())
		m.Join(ctx, "go", c)
	}
	sender.reset()

	m.Broadcast("go", &model.TypingStatus{Author: "alice", Message: "typing"}, "c1")
	req.Len(sender.events, 2)
	for _, s := range sender.events {
		req.NotEqual("c1", s.connID)
	}

	// empty room broadcast is a no-op
	sender.reset()
	m.Broadcast("empty", &model.TypingStatus{}, "")
	req.Empty(sender.events)
}

func TestRecordAndBroadcastIncludesSender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ms := memory.NewMemStore()
	m, reg, sender := newTestManager(ms)

	reg.Register("c1", "alice", model.NewWire())
	reg.Register("c2", "bob", model.NewWire())
	m.Join(ctx, "go", "c1")
	m.Join(ctx, "go", "c2")
	sender.reset()

	msg := model.Message{Room: "go", Author: "alice", Message: "hi", Time: "10:30"}
	m.RecordAndBroadcast(ctx, msg)

	req.Len(sender.events, 2)
	targets := []string{sender.events[0].connID, sender.events[1].connID}
	req.ElementsMatch([]string{"c1", "c2"}, targets)

	stored, err := ms.LoadHistory(ctx, "go")
	req.NoError(err)
	req.Equal([]model.Message{msg}, stored)
}

func TestRecordAndBroadcastSurvivesPersistenceFailure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, reg, sender := newTestManager(brokenHistory{})

	reg.Register("c1", "alice", model.NewWire())
	m.Join(ctx, "go", "c1")
	sender.reset()

	m.RecordAndBroadcast(ctx, model.Message{Room: "go", Author: "alice", Message: "hi"})
	req.Len(sender.events, 1)
	req.IsType(&model.MessageReceived{}, sender.events[0].event)
}
