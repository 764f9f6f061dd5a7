package memory

import (
	"context"
	"testing"

	"github.com/avolkov/devchat/backend/model"
	"github.com/stretchr/testify/require"
)

func TestHistoryRoundTrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ms := NewMemStore()

	first := model.Message{Room: "go", Author: "alice", Message: "first"}
	second := model.Message{Room: "go", Author: "bob", Message: "second"}
	req.NoError(ms.RecordMessage(ctx, "go", first))
	req.NoError(ms.RecordMessage(ctx, "go", second))

	got, err := ms.LoadHistory(ctx, "go")
	req.NoError(err)
	req.Equal([]model.Message{first, second}, got)

	empty, err := ms.LoadHistory(ctx, "rust")
	req.NoError(err)
	req.Empty(empty)
}

func TestUserLifecycle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ms := NewMemStore()

	user := model.User{Name: "alice", PasswordHash: "hash"}
	req.NoError(ms.CreateUser(ctx, user))
	req.ErrorIs(ms.CreateUser(ctx, user), ErrUserExists)

	got, err := ms.GetUser(ctx, "alice")
	req.NoError(err)
	req.Equal(user, got)

	_, err = ms.GetUser(ctx, "bob")
	req.ErrorIs(err, ErrUserNotFound)
}
