package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event type tags as they appear on the wire.
const (
	TypeJoinRoom           = "join-room"
	TypeLeaveRoom          = "leave-room"
	TypeSendRoomMessage    = "send-room-message"
	TypeTyping             = "typing"
	TypeStartDirectSession = "start-direct-session"
	TypeDirectMessage      = "direct-message"

	TypeHistoryLoaded         = "history-loaded"
	TypeMessageReceived       = "message-received"
	TypeTypingStatus          = "typing-status"
	TypeSessionStarted        = "session-started"
	TypeSessionError          = "session-error"
	TypeDirectMessageReceived = "direct-message-received"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
)

// Inbound is a client-originated event. One variant exists per event kind,
// the router matches them exhaustively.
type Inbound interface {
	inbound() string
}

// Outbound is a server-originated event addressed to a single connection.
type Outbound interface {
	outbound() string
}

type JoinRoom struct {
	Room string `json:"room"`
}

type LeaveRoom struct {
	Room string `json:"room"`
}

type SendRoomMessage struct {
	Message
}

type Typing struct {
	Room    string `json:"room"`
	Author  string `json:"author"`
	Message string `json:"message"`
}

type StartDirectSession struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DirectMessage is a 1:1 chat message. It is relayed, never persisted.
type DirectMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

func (*JoinRoom) inbound() string           { return TypeJoinRoom }
func (*LeaveRoom) inbound() string          { return TypeLeaveRoom }
func (*SendRoomMessage) inbound() string    { return TypeSendRoomMessage }
func (*Typing) inbound() string             { return TypeTyping }
func (*StartDirectSession) inbound() string { return TypeStartDirectSession }
func (*DirectMessage) inbound() string      { return TypeDirectMessage }

type HistoryLoaded struct {
	Messages []Message `json:"messages"`
}

type MessageReceived struct {
	Message
}

type TypingStatus struct {
	Author  string `json:"author"`
	Message string `json:"message"`
}

type SessionStarted struct {
	SessionID        string `json:"sessionId"`
	ParticipantCount int    `json:"participantCount"`
}

type SessionError struct {
	Message string `json:"message"`
}

type DirectMessageReceived struct {
	DirectMessage
}

func (*HistoryLoaded) outbound() string         { return TypeHistoryLoaded }
func (*MessageReceived) outbound() string       { return TypeMessageReceived }
func (*TypingStatus) outbound() string          { return TypeTypingStatus }
func (*SessionStarted) outbound() string        { return TypeSessionStarted }
func (*SessionError) outbound() string          { return TypeSessionError }
func (*DirectMessageReceived) outbound() string { return TypeDirectMessageReceived }

// DecodeInbound parses one wire frame into its tagged variant.
func DecodeInbound(b []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}

	var ev Inbound
	switch env.Type {
	case TypeJoinRoom:
		ev = &JoinRoom{}
	case TypeLeaveRoom:
		ev = &LeaveRoom{}
	case TypeSendRoomMessage:
		ev = &SendRoomMessage{}
	case TypeTyping:
		ev = &Typing{}
	case TypeStartDirectSession:
		ev = &StartDirectSession{}
	case TypeDirectMessage:
		ev = &DirectMessage{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}

	if err := json.Unmarshal(b, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// EncodeOutbound serializes an outbound event with its type tag grafted onto
// the object.
func EncodeOutbound(ev Outbound) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err = json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	fields["type"] = ev.outbound()
	return json.Marshal(fields)
}
