package notifications_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/notifications"
)

func seed(t *testing.T, s notifications.Storage, userID uuid.UUID, age time.Duration, typ notifications.Type, read bool) notifications.Notification {
	t.Helper()
	n := notifications.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     "title",
		Content:   "content",
		Read:      read,
		CreatedAt: time.Now().Add(-age),
	}
	require.NoError(t, s.Create(context.Background(), n))
	return n
}

func TestMemoryStorage_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()
	user := uuid.New()

	oldest := seed(t, s, user, 3*time.Hour, notifications.TypeInfo, true)
	middle := seed(t, s, user, 2*time.Hour, notifications.TypeSystem, false)
	newest := seed(t, s, user, time.Hour, notifications.TypeInfo, false)
	seed(t, s, uuid.New(), time.Minute, notifications.TypeInfo, false)

	t.Run("newest first and scoped to user", func(t *testing.T) {
		list, err := s.List(ctx, user, notifications.ListOptions{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []uuid.UUID{newest.ID, middle.ID, oldest.ID}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("only unread", func(t *testing.T) {
		list, err := s.List(ctx, user, notifications.ListOptions{OnlyUnread: true})
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("types", func(t *testing.T) {
		list, err := s.List(ctx, user, notifications.ListOptions{Types: []notifications.Type{notifications.TypeSystem}})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, middle.ID, list[0].ID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		list, err := s.List(ctx, user, notifications.ListOptions{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, middle.ID, list[0].ID)

		list, err = s.List(ctx, user, notifications.ListOptions{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("since", func(t *testing.T) {
		since := time.Now().Add(-90 * time.Minute)
		list, err := s.List(ctx, user, notifications.ListOptions{Since: &since})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, newest.ID, list[0].ID)
	})
}

func TestMemoryStorage_Mutations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("mark read returns only changed rows", func(t *testing.T) {
		t.Parallel()
		s := notifications.NewMemoryStorage()
		user := uuid.New()
		unread := seed(t, s, user, time.Hour, notifications.TypeInfo, false)
		read := seed(t, s, user, time.Hour, notifications.TypeInfo, true)

		updated, err := s.MarkRead(ctx, user, unread.ID, read.ID)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.True(t, updated[0].Read)
		assert.NotNil(t, updated[0].ReadAt)

		count, err := s.CountUnread(ctx, user)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("mark read is scoped to the owner", func(t *testing.T) {
		t.Parallel()
		s := notifications.NewMemoryStorage()
		owner := uuid.New()
		n := seed(t, s, owner, time.Hour, notifications.TypeInfo, false)

		updated, err := s.MarkRead(ctx, uuid.New(), n.ID)
		require.NoError(t, err)
		assert.Empty(t, updated)

		count, err := s.CountUnread(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("mark all read", func(t *testing.T) {
		t.Parallel()
		s := notifications.NewMemoryStorage()
		user := uuid.New()
		seed(t, s, user, time.Hour, notifications.TypeInfo, false)
		seed(t, s, user, time.Hour, notifications.TypeInfo, false)

		updated, err := s.MarkAllRead(ctx, user)
		require.NoError(t, err)
		assert.Len(t, updated, 2)
	})

	t.Run("delete returns prior state", func(t *testing.T) {
		t.Parallel()
		s := notifications.NewMemoryStorage()
		user := uuid.New()
		n := seed(t, s, user, time.Hour, notifications.TypeInfo, true)
		seed(t, s, user, time.Hour, notifications.TypeInfo, false)

		removed, err := s.Delete(ctx, user, n.ID)
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.True(t, removed[0].Read)

		_, err = s.Get(ctx, user, n.ID)
		assert.ErrorIs(t, err, notifications.ErrNotificationNotFound)

		removed, err = s.DeleteAll(ctx, user)
		require.NoError(t, err)
		assert.Len(t, removed, 1)
	})

	t.Run("purge read", func(t *testing.T) {
		t.Parallel()
		s := notifications.NewMemoryStorage()
		user := uuid.New()
		seed(t, s, user, 100*24*time.Hour, notifications.TypeInfo, true)
		seed(t, s, user, 100*24*time.Hour, notifications.TypeInfo, false)
		seed(t, s, user, time.Hour, notifications.TypeInfo, true)

		purged, err := s.PurgeRead(ctx, time.Now().Add(-90*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		list, err := s.List(ctx, user, notifications.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("create requires ids", func(t *testing.T) {
		t.Parallel()
		s := notifications.NewMemoryStorage()
		err := s.Create(ctx, notifications.Notification{UserID: uuid.New()})
		assert.ErrorIs(t, err, notifications.ErrInvalidNotification)
	})
}

func TestParseType(t *testing.T) {
	t.Parallel()

	typ, err := notifications.ParseType(" system ")
	require.NoError(t, err)
	assert.Equal(t, notifications.TypeSystem, typ)

	_, err = notifications.ParseType("alert")
	assert.ErrorIs(t, err, notifications.ErrInvalidType)
}
