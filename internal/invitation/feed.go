package invitation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"eventmaster/internal/docstore"
	"eventmaster/utils"
)

// Feed keeps the live list of pending invitations addressed to one email.
type Feed struct {
	store docstore.Store

	mu          sync.Mutex
	gen         uint64
	sub         docstore.Subscription
	email       string
	invitations []Invitation
	listeners   map[int]func([]Invitation)
	nextID      int
}

func NewFeed(store docstore.Store) *Feed {
	return &Feed{
		store:     store,
		listeners: make(map[int]func([]Invitation)),
	}
}

// Start replaces any running subscription with one for email. An empty
// email leaves the feed empty and unsubscribed.
func (f *Feed) Start(ctx context.Context, email string) error {
	f.Stop()

	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil
	}

	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.email = email
	f.mu.Unlock()

	q := docstore.Query{Collection: Collection}.
		Where("email", "==", email).
		Where("status", "==", string(StatusPending))

	sub, err := f.store.Watch(ctx, q,
		func(snap docstore.Snapshot) { f.handleSnapshot(gen, snap) },
		func(err error) { f.handleError(gen, err) },
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to invitations: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		sub.Stop()
		return nil
	}
	f.sub = sub
	return nil
}

func (f *Feed) Stop() {
	f.mu.Lock()
	f.gen++
	sub := f.sub
	f.sub = nil
	wasActive := f.email != ""
	f.email = ""
	f.invitations = nil
	listeners := f.listenersLocked()
	f.mu.Unlock()

	if sub != nil {
		sub.Stop()
	}
	if wasActive {
		for _, l := range listeners {
			l(nil)
		}
	}
}

func (f *Feed) Invitations() []Invitation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Invitation, len(f.invitations))
	copy(out, f.invitations)
	return out
}

// Lookup finds a pending invitation in the current list.
func (f *Feed) Lookup(id string) (Invitation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.ID == id {
			return inv, true
		}
	}
	return Invitation{}, false
}

func (f *Feed) OnChange(fn func([]Invitation)) func() {
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

func (f *Feed) listenersLocked() []func([]Invitation) {
	out := make([]func([]Invitation), 0, len(f.listeners))
	for _, l := range f.listeners {
		out = append(out, l)
	}
	return out
}

func (f *Feed) handleSnapshot(gen uint64, snap docstore.Snapshot) {
	invitations := make([]Invitation, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var inv Invitation
		if err := doc.DataTo(&inv); err != nil {
			slog.Warn("skipping malformed invitation", "invitation_id", doc.ID, "error", err)
			continue
		}
		if inv.Status != StatusPending {
			continue
		}
		inv.ID = doc.ID
		invitations = append(invitations, inv)
	}

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.invitations = invitations
	listeners := f.listenersLocked()
	f.mu.Unlock()

	for _, l := range listeners {
		out := make([]Invitation, len(invitations))
		copy(out, invitations)
		l(out)
	}
}

func (f *Feed) handleError(gen uint64, err error) {
	f.mu.Lock()
	current := gen == f.gen
	email := f.email
	f.mu.Unlock()

	if current {
		slog.Error("invitation subscription error, keeping last list", "email", email, "error", err)
	}
}
