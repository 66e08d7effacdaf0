package invitation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmaster/internal/docstore"
	"eventmaster/internal/journal"
	"eventmaster/internal/notification"
)

type recordingJournal struct {
	mu      sync.Mutex
	entries []*journal.Entry
	err     error
}

func (j *recordingJournal) Record(_ context.Context, e *journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return j.err
}

type failingSender struct{}

func (failingSender) SendNotification(context.Context, *notification.NotificationRequest) (string, error) {
	return "", errors.New("unavailable")
}

// query returns the current result set of q.
func query(t *testing.T, store docstore.Store, q docstore.Query) []docstore.Document {
	t.Helper()
	var docs []docstore.Document
	sub, err := store.Watch(context.Background(), q, func(s docstore.Snapshot) { docs = s.Docs }, func(error) {})
	require.NoError(t, err)
	sub.Stop()
	return docs
}

func notificationsFor(t *testing.T, store docstore.Store, userID string) []notification.Notification {
	t.Helper()
	docs := query(t, store, docstore.Query{Collection: notification.Collection}.Where("userId", "==", userID))
	out := make([]notification.Notification, 0, len(docs))
	for _, d := range docs {
		var n notification.Notification
		require.NoError(t, d.DataTo(&n))
		n.ID = d.ID
		out = append(out, n)
	}
	return out
}

func seedInvitation(t *testing.T, store docstore.Store, id, email, projectID string) Invitation {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), Collection, id, map[string]interface{}{
		"email":         email,
		"invitedBy":     "owner",
		"invitedByName": "Olivia",
		"projectId":     projectID,
		"projectName":   "Apollo",
		"status":        "pending",
	}))
	inv, err := Load(context.Background(), store, id)
	require.NoError(t, err)
	return inv
}

func seedProject(t *testing.T, store docstore.Store, id string, members ...string) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), ProjectsCollection, id, map[string]interface{}{
		"name":    "Apollo",
		"members": members,
	}))
}

func members(t *testing.T, store docstore.Store, projectID string) []string {
	t.Helper()
	doc, err := store.Get(context.Background(), ProjectsCollection, projectID)
	require.NoError(t, err)
	var p Project
	require.NoError(t, doc.DataTo(&p))
	return p.Members
}

func newWorkflow(store docstore.Store, j Journal) *Workflow {
	return NewWorkflow(store, notification.NewNotificationService(store, nil), j)
}

var bob = Responder{ID: "bob", Email: "bob@example.com", DisplayName: "Bob"}

func TestFeedListsOnlyPendingForEmail(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedInvitation(t, store, "i1", "bob@example.com", "p1")
	seedInvitation(t, store, "i2", "alice@example.com", "p1")
	require.NoError(t, store.Set(ctx, Collection, "i3", map[string]interface{}{
		"email": "bob@example.com", "status": "accepted",
	}))

	feed := NewFeed(store)
	require.NoError(t, feed.Start(ctx, "  Bob@Example.COM "))
	defer feed.Stop()

	list := feed.Invitations()
	require.Len(t, list, 1)
	assert.Equal(t, "i1", list[0].ID)
	assert.Equal(t, StatusPending, list[0].Status)

	_, ok := feed.Lookup("i1")
	assert.True(t, ok)
	_, ok = feed.Lookup("i3")
	assert.False(t, ok)
}

func TestFeedEmptyEmailStaysEmpty(t *testing.T) {
	store := docstore.NewMemory()
	seedInvitation(t, store, "i1", "bob@example.com", "p1")

	feed := NewFeed(store)
	require.NoError(t, feed.Start(context.Background(), ""))
	assert.Empty(t, feed.Invitations())
}

func TestFeedStopResetsAndIgnoresLaterWrites(t *testing.T) {
	store := docstore.NewMemory()
	seedInvitation(t, store, "i1", "bob@example.com", "p1")

	feed := NewFeed(store)
	require.NoError(t, feed.Start(context.Background(), "bob@example.com"))

	var calls int
	var last []Invitation
	feed.OnChange(func(list []Invitation) {
		calls++
		last = list
	})

	feed.Stop()
	assert.Equal(t, 1, calls)
	assert.Empty(t, last)

	seedInvitation(t, store, "i2", "bob@example.com", "p1")
	assert.Empty(t, feed.Invitations())
	assert.Equal(t, 1, calls)
}

func TestFeedKeepsListOnError(t *testing.T) {
	store := docstore.NewMemory()
	seedInvitation(t, store, "i1", "bob@example.com", "p1")

	feed := NewFeed(store)
	require.NoError(t, feed.Start(context.Background(), "bob@example.com"))
	defer feed.Stop()

	store.Interrupt(Collection, errors.New("stream reset"))
	assert.Len(t, feed.Invitations(), 1)
}

func TestAcceptAddsMemberAndNotifiesInviter(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedProject(t, store, "p1", "owner")
	inv := seedInvitation(t, store, "i1", "bob@example.com", "p1")
	j := &recordingJournal{}

	feed := NewFeed(store)
	require.NoError(t, feed.Start(ctx, "bob@example.com"))
	defer feed.Stop()
	require.Len(t, feed.Invitations(), 1)

	require.NoError(t, newWorkflow(store, j).Accept(ctx, inv, bob))

	assert.ElementsMatch(t, []string{"owner", "bob"}, members(t, store, "p1"))

	got, err := Load(ctx, store, "i1")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	require.NotNil(t, got.AcceptedAt)

	sent := notificationsFor(t, store, "owner")
	require.Len(t, sent, 1)
	assert.Equal(t, notification.TypeSuccess, sent[0].Type)
	assert.Equal(t, "Invitation accepted", sent[0].Title)
	assert.Equal(t, "Bob accepted your invitation to Apollo", sent[0].Message)
	require.NotNil(t, sent[0].Link)
	assert.Equal(t, "/projects/p1", *sent[0].Link)

	assert.Empty(t, feed.Invitations())

	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.ActionAccept, j.entries[0].Action)
	assert.Equal(t, []string{"membership", "status", "notify"}, []string(j.entries[0].Steps))
	assert.False(t, j.entries[0].Failed())
}

func TestAcceptDoesNotDuplicateMember(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedProject(t, store, "p1", "owner", "bob")
	inv := seedInvitation(t, store, "i1", "bob@example.com", "p1")

	require.NoError(t, newWorkflow(store, nil).Accept(ctx, inv, bob))
	assert.Equal(t, []string{"owner", "bob"}, members(t, store, "p1"))
}

func TestAcceptWithMissingProjectStillResolves(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	inv := seedInvitation(t, store, "i1", "bob@example.com", "gone")
	j := &recordingJournal{}

	require.NoError(t, newWorkflow(store, j).Accept(ctx, inv, bob))

	got, err := Load(ctx, store, "i1")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.Len(t, notificationsFor(t, store, "owner"), 1)

	_, err = store.Get(ctx, ProjectsCollection, "gone")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.Len(t, j.entries, 1)
	assert.Equal(t, []string{"membership_skipped", "status", "notify"}, []string(j.entries[0].Steps))
}

func TestDeclineNotifiesWithoutLink(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedProject(t, store, "p1", "owner")
	inv := seedInvitation(t, store, "i1", "bob@example.com", "p1")

	feed := NewFeed(store)
	require.NoError(t, feed.Start(ctx, "bob@example.com"))
	defer feed.Stop()

	who := Responder{ID: "bob", Email: "bob@example.com"}
	require.NoError(t, newWorkflow(store, nil).Decline(ctx, inv, who))

	got, err := Load(ctx, store, "i1")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, got.Status)
	require.NotNil(t, got.DeclinedAt)
	assert.Equal(t, []string{"owner"}, members(t, store, "p1"))

	sent := notificationsFor(t, store, "owner")
	require.Len(t, sent, 1)
	assert.Equal(t, notification.TypeWarning, sent[0].Type)
	assert.Equal(t, "bob@example.com declined your invitation to Apollo", sent[0].Message)
	assert.Nil(t, sent[0].Link)

	assert.Empty(t, feed.Invitations())
}

func TestRespondingTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	inv := seedInvitation(t, store, "i1", "bob@example.com", "p1")
	w := newWorkflow(store, nil)

	require.NoError(t, w.Decline(ctx, inv, bob))

	again, err := Load(ctx, store, "i1")
	require.NoError(t, err)
	assert.ErrorIs(t, w.Accept(ctx, again, bob), ErrNotPending)
	assert.ErrorIs(t, w.Decline(ctx, again, bob), ErrNotPending)
	assert.Len(t, notificationsFor(t, store, "owner"), 1)
}

func TestAcceptPropagatesNotifyFailureAfterStatusChange(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seedProject(t, store, "p1", "owner")
	inv := seedInvitation(t, store, "i1", "bob@example.com", "p1")
	j := &recordingJournal{err: errors.New("db down")}

	err := NewWorkflow(store, failingSender{}, j).Accept(ctx, inv, bob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to notify inviter owner")

	got, lerr := Load(ctx, store, "i1")
	require.NoError(t, lerr)
	assert.Equal(t, StatusAccepted, got.Status)

	require.Len(t, j.entries, 1)
	assert.True(t, j.entries[0].Failed())
	assert.Equal(t, []string{"membership", "status"}, []string(j.entries[0].Steps))
}

func TestResponderName(t *testing.T) {
	assert.Equal(t, "Bob", Responder{Email: "b@x.io", DisplayName: "Bob"}.Name())
	assert.Equal(t, "b@x.io", Responder{Email: "b@x.io"}.Name())
}
