package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/avolkov/devchat/backend/model"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// MemStore keeps room history and user accounts in process memory. It
// satisfies the same contracts as the badger store and is used by tests and
// as a no-durability fallback.
type MemStore struct {
	mx      *sync.Mutex
	history map[string][]model.Message
	users   map[string]model.User
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx:      &sync.Mutex{},
		history: make(map[string][]model.Message),
		users:   make(map[string]model.User),
	}
}

func (ms *MemStore) RecordMessage(_ context.Context, room string, msg model.Message) error {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	ms.history[room] = append(ms.history[room], msg)
	return nil
}

func (ms *MemStore) LoadHistory(_ context.Context, room string) ([]model.Message, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	msgs := make([]model.Message, len(ms.history[room]))
	copy(msgs, ms.history[room])
	return msgs, nil
}

func (ms *MemStore) CreateUser(_ context.Context, user model.User) error {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	if _, ok := ms.users[user.Name]; ok {
		return ErrUserExists
	}
	ms.users[user.Name] = user
	return nil
}

func (ms *MemStore) GetUser(_ context.Context, name string) (model.User, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	user, ok := ms.users[name]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return user, nil
}
