package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/devchat/backend/model"
	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	historyKeyPrefix = "history:"
	userKeyPrefix    = "user:"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// Store is the durable backing for room history and user accounts. History
// keys embed the record time as a fixed-width nanosecond timestamp, so a
// plain prefix iteration yields messages in ascending send order.
type Store struct {
	logger zerolog.Logger
	db     *badgerdb.DB
}

func NewStore(path string, logger *zerolog.Logger) (*Store, error) {
	db, err := badgerdb.Open(badgerdb.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("cannot open badger db at %s: %w", path, err)
	}
	return &Store{
		logger: logger.With().Str("component", "badger-store").Logger(),
		db:     db,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func historyKey(room string, at int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", historyKeyPrefix, room, at, id))
}

func (s *Store) RecordMessage(_ context.Context, room string, msg model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := historyKey(room, time.Now().UnixNano(), uuid.NewString())
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *Store) LoadHistory(_ context.Context, room string) ([]model.Message, error) {
	var msgs []model.Message
	prefix := []byte(historyKeyPrefix + room + ":")

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var msg model.Message
				if uErr := json.Unmarshal(v, &msg); uErr != nil {
					return uErr
				}
				msgs = append(msgs, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot load history for room %s: %w", room, err)
	}
	return msgs, nil
}

func (s *Store) CreateUser(_ context.Context, user model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	key := []byte(userKeyPrefix + user.Name)
	return s.db.Update(func(txn *badgerdb.Txn) error {
		_, gErr := txn.Get(key)
		if gErr == nil {
			return ErrUserExists
		}
		if !errors.Is(gErr, badgerdb.ErrKeyNotFound) {
			return gErr
		}
		return txn.Set(key, data)
	})
}

func (s *Store) GetUser(_ context.Context, name string) (model.User, error) {
	var user model.User
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, gErr := txn.Get([]byte(userKeyPrefix + name))
		if errors.Is(gErr, badgerdb.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if gErr != nil {
			return gErr
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &user)
		})
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}
