package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"messagely/internal/common"
	"messagely/internal/storage"
	mytesting "messagely/internal/testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func bootstrapLedger(t *testing.T, users ...string) (*Ledger, *mytesting.MemStore) {
	t.Helper()

	store := mytesting.NewMemStore()
	for _, u := range users {
		_, err := store.CreateUser(context.Background(), storage.NewUser{
			Username:     u,
			PasswordHash: "hash",
			FirstName:    u + "-first",
			LastName:     u + "-last",
			Phone:        "+10000000000",
		})
		require.NoError(t, err)
	}

	return New(zap.NewNop().Sugar(), store), store
}

func TestCanView(t *testing.T) {
	t.Parallel()

	m := storage.MessageDetail{
		FromUser: storage.UserSummary{Username: "alice"},
		ToUser:   storage.UserSummary{Username: "bob"},
	}

	require.True(t, CanView(m, "alice"))
	require.True(t, CanView(m, "bob"))
	require.False(t, CanView(m, "carol"))
	require.False(t, CanView(m, ""))

	require.True(t, CanMarkRead(m, "bob"))
	require.False(t, CanMarkRead(m, "alice"))
	require.False(t, CanMarkRead(m, "carol"))
	require.False(t, CanMarkRead(m, ""))
}

func TestCreate(t *testing.T) {
	t.Parallel()

	l, _ := bootstrapLedger(t, "alice", "bob")

	m, err := l.Create(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)
	require.Equal(t, "alice", m.FromUsername)
	require.Equal(t, "bob", m.ToUsername)
	require.Equal(t, "hi", m.Body)
	require.False(t, m.SentAt.IsZero())
	require.Nil(t, m.ReadAt)
}

func TestCreateUnknownRecipient(t *testing.T) {
	t.Parallel()

	l, store := bootstrapLedger(t, "alice")

	_, err := l.Create(context.Background(), "alice", "nobody", "hi")
	require.True(t, errors.Is(err, common.ErrUnknownRecipient))
	require.Equal(t, 0, store.MessageCount())
}

func TestCreateStoreFailure(t *testing.T) {
	t.Parallel()

	l, store := bootstrapLedger(t, "alice", "bob")
	boom := errors.New("connection reset")
	store.Fail("CreateMessage", boom)

	_, err := l.Create(context.Background(), "alice", "bob", "hi")
	require.True(t, errors.Is(err, boom))
	require.False(t, errors.Is(err, common.ErrUnknownRecipient))
}

func TestGetVisibility(t *testing.T) {
	t.Parallel()

	l, _ := bootstrapLedger(t, "alice", "bob", "carol")
	m, err := l.Create(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)

	for _, caller := range []string{"alice", "bob"} {
		got, err := l.Get(context.Background(), caller, m.ID)
		require.NoError(t, err)
		require.Equal(t, m.ID, got.ID)
		require.Equal(t, "alice", got.FromUser.Username)
		require.Equal(t, "alice-first", got.FromUser.FirstName)
		require.Equal(t, "bob", got.ToUser.Username)
	}

	_, err = l.Get(context.Background(), "carol", m.ID)
	require.True(t, errors.Is(err, common.ErrUnauthorized))
	require.False(t, errors.Is(err, common.ErrNotFound))
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	l, _ := bootstrapLedger(t, "alice")

	_, err := l.Get(context.Background(), "alice", 42)
	require.True(t, errors.Is(err, common.ErrNotFound))
	require.False(t, errors.Is(err, common.ErrUnauthorized))
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	l, store := bootstrapLedger(t, "alice", "bob")
	readAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return readAt })

	m, err := l.Create(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)

	_, err = l.MarkRead(context.Background(), "alice", m.ID)
	require.True(t, errors.Is(err, common.ErrUnauthorized))

	r, err := l.MarkRead(context.Background(), "bob", m.ID)
	require.NoError(t, err)
	require.Equal(t, m.ID, r.ID)
	require.Equal(t, readAt, r.ReadAt)

	got, err := l.Get(context.Background(), "alice", m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadAt)
	require.Equal(t, readAt, *got.ReadAt)
}

func TestMarkReadTwiceKeepsFirstTime(t *testing.T) {
	t.Parallel()

	l, store := bootstrapLedger(t, "alice", "bob")
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	m, err := l.Create(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)

	first, err := l.MarkRead(context.Background(), "bob", m.ID)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	second, err := l.MarkRead(context.Background(), "bob", m.ID)
	require.NoError(t, err)
	require.Equal(t, first.ReadAt, second.ReadAt)
}

func TestMarkReadNotFound(t *testing.T) {
	t.Parallel()

	l, _ := bootstrapLedger(t, "bob")

	_, err := l.MarkRead(context.Background(), "bob", 7)
	require.True(t, errors.Is(err, common.ErrNotFound))
}

func TestMessagesFromAndTo(t *testing.T) {
	t.Parallel()

	l, _ := bootstrapLedger(t, "alice", "bob", "carol")
	for _, pair := range [][2]string{{"alice", "bob"}, {"alice", "carol"}, {"bob", "alice"}} {
		_, err := l.Create(context.Background(), pair[0], pair[1], "hi")
		require.NoError(t, err)
	}

	sent, err := l.MessagesFrom(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, sent, 2)
	for _, m := range sent {
		require.NotNil(t, m.ToUser)
		require.Nil(t, m.FromUser)
	}

	received, err := l.MessagesTo(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Equal(t, "bob", received[0].FromUser.Username)

	none, err := l.MessagesTo(context.Background(), "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}

// alice and bob exchange a message, bob reads it, carol is refused
func TestConversationScenario(t *testing.T) {
	t.Parallel()

	l, _ := bootstrapLedger(t, "alice", "bob", "carol")
	ctx := context.Background()

	m, err := l.Create(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	got, err := l.Get(ctx, "bob", m.ID)
	require.NoError(t, err)
	require.Nil(t, got.ReadAt)

	_, err = l.MarkRead(ctx, "bob", m.ID)
	require.NoError(t, err)

	got, err = l.Get(ctx, "bob", m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadAt)

	_, err = l.Get(ctx, "alice", m.ID)
	require.NoError(t, err)

	_, err = l.Get(ctx, "carol", m.ID)
	require.True(t, errors.Is(err, common.ErrUnauthorized))
}
