package domain_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rafaelmorch/platform-sports/internal/domain"
	"github.com/rafaelmorch/platform-sports/internal/persistence/memory"
)

func newChatFixture(t *testing.T) (*memory.Store, *domain.ChatService, *countingDirectory, string) {
	t.Helper()
	store := memory.NewStore()
	clock := newStepClock()
	directory := &countingDirectory{profiles: map[string]domain.Profile{
		"alice": {UserID: "alice", DisplayName: "Alice", Email: "alice@example.com"},
		"bruno": {UserID: "bruno", DisplayName: "Bruno", Email: "bruno@example.com"},
	}}

	activities := domain.NewActivityService(store.Activities(), store.Attendance(), nil, domain.WithClock(clock.Now))
	created, err := activities.Publish(context.Background(), domain.PublishInput{
		OwnerID: "owner",
		Content: validContent(),
		Dates:   []string{"2030-02-01T18:00"},
	})
	require.NoError(t, err)

	chat := domain.NewChatService(store.Activities(), store.Chat(), directory, domain.WithClock(clock.Now))
	return store, chat, directory, created[0].ID
}

func TestPostValidatesAndStamps(t *testing.T) {
	ctx := context.Background()
	_, chat, _, id := newChatFixture(t)

	_, err := chat.Post(ctx, id, "", "hello")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = chat.Post(ctx, id, "alice", "   \n\t")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = chat.Post(ctx, id, "alice", strings.Repeat("a", 2001))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = chat.Post(ctx, "missing", "alice", "hello")
	require.ErrorIs(t, err, domain.ErrNotFound)

	msg, err := chat.Post(ctx, id, "alice", "  see you there  ")
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.Equal(t, "see you there", msg.Body)
	require.False(t, msg.PostedAt.IsZero())
	require.Positive(t, msg.Seq)
}

func TestListReturnsTimestampOrderRegardlessOfInsertion(t *testing.T) {
	ctx := context.Background()
	store, chat, directory, id := newChatFixture(t)

	t1 := time.Date(2030, 1, 5, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t2.Add(time.Minute)
	for _, msg := range []domain.ChatMessage{
		{ID: "m3", ActivityID: id, UserID: "alice", Body: "third", PostedAt: t3},
		{ID: "m1", ActivityID: id, UserID: "bruno", Body: "first", PostedAt: t1},
		{ID: "m2", ActivityID: id, UserID: "alice", Body: "second", PostedAt: t2},
	} {
		_, err := store.Chat().Append(ctx, msg)
		require.NoError(t, err)
	}

	page, err := chat.List(ctx, id, "carla", nil, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	require.Equal(t, "first", page.Messages[0].Body)
	require.Equal(t, "second", page.Messages[1].Body)
	require.Equal(t, "third", page.Messages[2].Body)
	require.Equal(t, "Bruno", page.Messages[0].SenderName)
	require.Equal(t, "Alice", page.Messages[1].SenderName)
	require.Nil(t, page.Next)

	require.Len(t, directory.calls, 1, "senders must be resolved with a single batch lookup")
	require.ElementsMatch(t, []string{"alice", "bruno"}, directory.calls[0])
}

func TestListPagesWithCursor(t *testing.T) {
	ctx := context.Background()
	_, chat, _, id := newChatFixture(t)

	for _, body := range []string{"one", "two", "three"} {
		_, err := chat.Post(ctx, id, "alice", body)
		require.NoError(t, err)
	}

	first, err := chat.List(ctx, id, "bruno", nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Messages, 2)
	require.NotNil(t, first.Next)

	second, err := chat.List(ctx, id, "bruno", first.Next, 2)
	require.NoError(t, err)
	require.Len(t, second.Messages, 1)
	require.Equal(t, "three", second.Messages[0].Body)
}

func TestListDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	_, chat, directory, id := newChatFixture(t)

	_, err := chat.Post(ctx, id, "alice", "hello")
	require.NoError(t, err)

	anonymous, err := chat.List(ctx, id, "", nil, 10)
	require.NoError(t, err)
	require.Empty(t, anonymous.Messages)

	directory.err = errors.New("directory down")
	page, err := chat.List(ctx, id, "bruno", nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Empty(t, page.Messages[0].SenderName)

	_, err = chat.List(ctx, "missing", "bruno", nil, 10)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatHidesUnpublishedActivityFromOthers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newStepClock()
	activities := domain.NewActivityService(store.Activities(), store.Attendance(), nil, domain.WithClock(clock.Now))
	chat := domain.NewChatService(store.Activities(), store.Chat(), &countingDirectory{}, domain.WithClock(clock.Now))

	content := validContent()
	content.Published = boolPtr(false)
	created, err := activities.Publish(ctx, domain.PublishInput{OwnerID: "owner", Content: content, Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)
	id := created[0].ID

	_, err = chat.Post(ctx, id, "owner", "secret plan")
	require.NoError(t, err)

	_, err = chat.Post(ctx, id, "stranger", "hello?")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = chat.List(ctx, id, "stranger", nil, 10)
	require.ErrorIs(t, err, domain.ErrNotFound)

	page, err := chat.List(ctx, id, "owner", nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
}
