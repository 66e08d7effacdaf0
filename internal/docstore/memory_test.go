package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	errs  []error
}

func (r *recorder) onSnapshot(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func fixedClock(start time.Time) func() time.Time {
	return func() time.Time { return start }
}

func TestMemoryWatchFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryWithClock(fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	first, err := m.Create(ctx, "notifications", map[string]interface{}{"userId": "u1", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	second, err := m.Create(ctx, "notifications", map[string]interface{}{"userId": "u1", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	_, err = m.Create(ctx, "notifications", map[string]interface{}{"userId": "u2", "createdAt": ServerTimestamp})
	require.NoError(t, err)

	rec := &recorder{}
	q := Query{Collection: "notifications", OrderBy: "createdAt", Descending: true}.Where("userId", "==", "u1")
	sub, err := m.Watch(ctx, q, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer sub.Stop()

	snap := rec.last()
	require.Len(t, snap.Docs, 2)
	assert.Equal(t, second, snap.Docs[0].ID)
	assert.Equal(t, first, snap.Docs[1].ID)

	a := snap.Docs[0].Data["createdAt"].(time.Time)
	b := snap.Docs[1].Data["createdAt"].(time.Time)
	assert.True(t, a.After(b), "server timestamps must be strictly increasing")
}

func TestMemoryStopHaltsDelivery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := &recorder{}

	sub, err := m.Watch(ctx, Query{Collection: "invitations"}, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	require.Len(t, rec.snaps, 1)

	sub.Stop()
	sub.Stop()

	_, err = m.Create(ctx, "invitations", map[string]interface{}{"status": "pending"})
	require.NoError(t, err)
	m.Interrupt("invitations", errors.New("stream reset"))

	assert.Len(t, rec.snaps, 1)
	assert.Empty(t, rec.errs)
}

func TestMemoryUpdateNestedAndMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "users", "u1", map[string]interface{}{"displayName": "Ada"}))
	require.NoError(t, m.Update(ctx, "users", "u1", []Update{{Path: "preferences.browserPush", Value: true}}))

	doc, err := m.Get(ctx, "users", "u1")
	require.NoError(t, err)

	var profile struct {
		DisplayName string `firestore:"displayName"`
		Preferences struct {
			BrowserPush bool `firestore:"browserPush"`
		} `firestore:"preferences"`
	}
	require.NoError(t, doc.DataTo(&profile))
	assert.Equal(t, "Ada", profile.DisplayName)
	assert.True(t, profile.Preferences.BrowserPush)

	err = m.Update(ctx, "users", "nobody", []Update{{Path: "x", Value: 1}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get(ctx, "users", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "projects", "p1", map[string]interface{}{"members": []string{"u1"}}))

	doc, err := m.Get(ctx, "projects", "p1")
	require.NoError(t, err)
	doc.Data["members"] = append(doc.Data["members"].([]interface{}), "intruder")

	again, err := m.Get(ctx, "projects", "p1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"u1"}, again.Data["members"])
}

func TestMemoryInterruptReachesWatchers(t *testing.T) {
	m := NewMemory()
	rec := &recorder{}
	sub, err := m.Watch(context.Background(), Query{Collection: "notifications"}, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer sub.Stop()

	m.Interrupt("notifications", errors.New("unavailable"))
	m.Interrupt("invitations", errors.New("other collection"))

	require.Len(t, rec.errs, 1)
	assert.EqualError(t, rec.errs[0], "unavailable")
}
