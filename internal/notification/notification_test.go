package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmaster/internal/docstore"
)

type staticViews View

func (v staticViews) View() View { return View(v) }

// flakyStore fails updates for the listed document ids.
type flakyStore struct {
	*docstore.Memory
	failUpdates map[string]bool
}

func (s *flakyStore) Update(ctx context.Context, collection, id string, updates []docstore.Update) error {
	if s.failUpdates[id] {
		return errors.New("deadline exceeded")
	}
	return s.Memory.Update(ctx, collection, id, updates)
}

func seed(t *testing.T, store docstore.Store, id string, read bool) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), Collection, id, map[string]interface{}{
		"userId":    "u1",
		"title":     "t",
		"read":      read,
		"createdAt": time.Now(),
	}))
}

func readFlag(t *testing.T, store docstore.Store, id string) bool {
	t.Helper()
	doc, err := store.Get(context.Background(), Collection, id)
	require.NoError(t, err)
	return doc.Data["read"].(bool)
}

func TestSendCreatesUnreadNotification(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc := NewNotificationService(store, staticViews{})

	id := svc.Send(ctx, &NotificationRequest{UserID: "u2", Title: "Hello", Message: "World"})
	require.NotEmpty(t, id)

	doc, err := store.Get(ctx, Collection, id)
	require.NoError(t, err)

	var n Notification
	require.NoError(t, doc.DataTo(&n))
	assert.Equal(t, "u2", n.UserID)
	assert.Equal(t, TypeInfo, n.Type)
	assert.False(t, n.Read)
	assert.Nil(t, n.Link)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestSendKeepsTypeAndLink(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	svc := NewNotificationService(store, staticViews{})
	link := "/projects/p1"

	id, err := svc.SendNotification(ctx, &NotificationRequest{
		UserID: "u2", Title: "Done", Message: "ok", Type: TypeSuccess, Link: &link,
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, Collection, id)
	require.NoError(t, err)
	assert.Equal(t, "success", doc.Data["type"])
	assert.Equal(t, "/projects/p1", doc.Data["link"])
}

func TestSendRejectsInvalidRequest(t *testing.T) {
	ctx := context.Background()
	svc := NewNotificationService(docstore.NewMemory(), staticViews{})

	_, err := svc.SendNotification(ctx, &NotificationRequest{UserID: "u2"})
	assert.Error(t, err)

	_, err = svc.SendNotification(ctx, &NotificationRequest{UserID: "u2", Title: "x", Type: "urgent"})
	assert.Error(t, err)

	assert.Empty(t, svc.Send(ctx, &NotificationRequest{Title: "no user"}))
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seed(t, store, "n1", false)
	svc := NewNotificationService(store, staticViews{})

	svc.MarkAsRead(ctx, "n1")
	assert.True(t, readFlag(t, store, "n1"))

	svc.MarkAsRead(ctx, "n1")
	assert.True(t, readFlag(t, store, "n1"))
}

func TestMarkAsReadSwallowsErrors(t *testing.T) {
	svc := NewNotificationService(docstore.NewMemory(), staticViews{})
	assert.NotPanics(t, func() { svc.MarkAsRead(context.Background(), "missing") })
}

func TestDeleteNotification(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seed(t, store, "n1", false)
	svc := NewNotificationService(store, staticViews{})

	svc.DeleteNotification(ctx, "n1")

	_, err := store.Get(ctx, Collection, "n1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMarkAllAsReadUsesViewUnreadSubset(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seed(t, store, "a", false)
	seed(t, store, "b", false)
	seed(t, store, "outside-view", false)

	views := staticViews{Notifications: []Notification{{ID: "a"}, {ID: "b"}, {ID: "c", Read: true}}, UnreadCount: 2}
	svc := NewNotificationService(store, views)

	require.NoError(t, svc.MarkAllAsRead(ctx))

	assert.True(t, readFlag(t, store, "a"))
	assert.True(t, readFlag(t, store, "b"))
	assert.False(t, readFlag(t, store, "outside-view"))
}

func TestMarkAllAsReadReportsPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Memory: docstore.NewMemory(), failUpdates: map[string]bool{"b": true}}
	seed(t, store, "a", false)
	seed(t, store, "b", false)
	seed(t, store, "c", false)

	views := staticViews{Notifications: []Notification{{ID: "a"}, {ID: "b"}, {ID: "c"}}, UnreadCount: 3}
	svc := NewNotificationService(store, views)

	err := svc.MarkAllAsRead(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification b")

	assert.True(t, readFlag(t, store, "a"))
	assert.False(t, readFlag(t, store, "b"))
	assert.True(t, readFlag(t, store, "c"))
}

func TestMarkAllAsReadWithNothingUnread(t *testing.T) {
	svc := NewNotificationService(docstore.NewMemory(), staticViews{})
	assert.NoError(t, svc.MarkAllAsRead(context.Background()))
}
