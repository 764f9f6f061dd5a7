package model

// Message is a single room chat message. Time is the client-supplied
// wall-clock string, kept opaque by the relay.
type Message struct {
	Room    string `json:"room"`
	Author  string `json:"author"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// User is a registered account. Only the hash of the password is ever stored.
type User struct {
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
}

const defaultWireBuffer = 32

// Wire is the outbound half of a connection. The transport drains TX and
// writes frames; the router side never blocks on a slow consumer because
// delivery drops when the buffer is full.
type Wire struct {
	TX chan Outbound
}

func NewWire() Wire {
	return Wire{
		TX: make(chan Outbound, defaultWireBuffer),
	}
}
