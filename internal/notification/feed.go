package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"eventmaster/internal/docstore"
	"eventmaster/internal/push"
)

type FeedOptions struct {
	Alerter     Alerter
	Permissions PermissionSource
	// Icon is attached to every device alert.
	Icon   string
	Window time.Duration
	Clock  func() time.Time
}

// Feed keeps a live, newest-first view of one user's notifications.
//
// Each snapshot replaces the view wholesale. Every Start and Stop bumps the
// generation; callbacks from an older generation are dropped on entry.
type Feed struct {
	store       docstore.Store
	alerter     Alerter
	permissions PermissionSource
	icon        string
	window      time.Duration
	now         func() time.Time

	mu          sync.Mutex
	gen         uint64
	sub         docstore.Subscription
	userID      string
	browserPush bool
	view        View
	seen        map[string]struct{}
	listeners   map[int]func(View)
	nextID      int
}

func NewFeed(store docstore.Store, opts FeedOptions) *Feed {
	if opts.Window <= 0 {
		opts.Window = FreshnessWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Feed{
		store:       store,
		alerter:     opts.Alerter,
		permissions: opts.Permissions,
		icon:        opts.Icon,
		window:      opts.Window,
		now:         opts.Clock,
		listeners:   make(map[int]func(View)),
	}
}

// Start replaces any running subscription with one for userID. An empty
// userID leaves the feed empty and unsubscribed.
func (f *Feed) Start(ctx context.Context, userID string, browserPush bool) error {
	f.Stop()
	if userID == "" {
		return nil
	}

	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.userID = userID
	f.browserPush = browserPush
	f.mu.Unlock()

	q := docstore.Query{
		Collection: Collection,
		OrderBy:    "createdAt",
		Descending: true,
	}.Where("userId", "==", userID)

	sub, err := f.store.Watch(ctx, q,
		func(snap docstore.Snapshot) { f.handleSnapshot(ctx, gen, snap) },
		func(err error) { f.handleError(gen, err) },
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		sub.Stop()
		return nil
	}
	f.sub = sub
	f.mu.Unlock()

	slog.Info("notification feed started", "user_id", userID)
	return nil
}

// Stop cancels the subscription and resets the view to empty.
func (f *Feed) Stop() {
	f.mu.Lock()
	f.gen++
	sub := f.sub
	f.sub = nil
	wasActive := f.userID != ""
	userID := f.userID
	f.userID = ""
	f.browserPush = false
	f.view = View{}
	f.seen = nil
	listeners := f.listenersLocked()
	f.mu.Unlock()

	if sub != nil {
		sub.Stop()
		slog.Info("notification feed stopped", "user_id", userID)
	}
	if wasActive {
		for _, l := range listeners {
			l(View{})
		}
	}
}

func (f *Feed) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view.clone()
}

func (f *Feed) UserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID
}

// SetBrowserPush updates the alert preference without resubscribing.
func (f *Feed) SetBrowserPush(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.browserPush = enabled
}

// OnChange registers fn to receive every new view. The returned func
// unregisters it.
func (f *Feed) OnChange(fn func(View)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *Feed) listenersLocked() []func(View) {
	out := make([]func(View), 0, len(f.listeners))
	for _, l := range f.listeners {
		out = append(out, l)
	}
	return out
}

func (f *Feed) handleSnapshot(ctx context.Context, gen uint64, snap docstore.Snapshot) {
	view := buildView(snap)

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	previous := f.seen
	f.view = view
	f.seen = snap.IDs()
	userID := f.userID
	browserPush := f.browserPush
	listeners := f.listenersLocked()
	f.mu.Unlock()

	// A listener may stop the feed; later listeners and alerts must then
	// see nothing from this snapshot.
	for _, l := range listeners {
		if !f.current(gen) {
			return
		}
		l(view.clone())
	}

	var added []Notification
	for _, n := range view.Notifications {
		if _, ok := previous[n.ID]; !ok {
			added = append(added, n)
		}
	}
	f.raiseAlerts(ctx, gen, userID, browserPush, added)
}

func (f *Feed) current(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.gen
}

func (f *Feed) handleError(gen uint64, err error) {
	f.mu.Lock()
	current := gen == f.gen
	userID := f.userID
	f.mu.Unlock()

	if !current {
		return
	}
	slog.Error("notification subscription error, keeping last view", "user_id", userID, "error", err)
}

// raiseAlerts is best effort: nothing here may change the view.
func (f *Feed) raiseAlerts(ctx context.Context, gen uint64, userID string, browserPush bool, added []Notification) {
	if f.alerter == nil || !browserPush || len(added) == 0 {
		return
	}

	observedAt := f.now()
	var fresh []Notification
	for _, n := range added {
		if isFresh(n, observedAt, f.window) {
			fresh = append(fresh, n)
		}
	}
	if len(fresh) == 0 {
		return
	}

	if !f.current(gen) {
		return
	}

	permission := push.PermissionDefault
	if f.permissions != nil {
		p, err := f.permissions.Permission(ctx, userID)
		if err != nil {
			slog.Warn("failed to read push permission", "user_id", userID, "error", err)
			return
		}
		permission = p
	}

	for _, n := range fresh {
		if !shouldAlert(n, observedAt, f.window, browserPush, permission) {
			continue
		}
		if !f.current(gen) {
			return
		}
		if err := f.alerter.Alert(ctx, alertFor(n, f.icon)); err != nil {
			slog.Warn("failed to raise push alert", "user_id", userID, "notification_id", n.ID, "error", err)
		}
	}
}

// buildView derives the whole view from one snapshot.
func buildView(snap docstore.Snapshot) View {
	view := View{Notifications: make([]Notification, 0, len(snap.Docs))}
	for _, doc := range snap.Docs {
		var n Notification
		if err := doc.DataTo(&n); err != nil {
			slog.Warn("skipping malformed notification", "notification_id", doc.ID, "error", err)
			continue
		}
		n.ID = doc.ID
		if n.Type == "" {
			n.Type = TypeInfo
		}
		view.Notifications = append(view.Notifications, n)
	}

	// A zero createdAt is a write the server has not stamped yet; it is the
	// newest entry by definition.
	sort.SliceStable(view.Notifications, func(i, j int) bool {
		a, b := view.Notifications[i].CreatedAt, view.Notifications[j].CreatedAt
		if a.IsZero() || b.IsZero() {
			return a.IsZero() && !b.IsZero()
		}
		return a.After(b)
	})

	for _, n := range view.Notifications {
		if !n.Read {
			view.UnreadCount++
		}
	}
	return view
}
