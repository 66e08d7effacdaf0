package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"eventmaster/internal/docstore"
	"eventmaster/internal/invitation"
	"eventmaster/internal/notification"
	"eventmaster/utils"
)

const UsersCollection = "users"

var ErrNoSession = errors.New("no active session")

// Identity is what the authentication layer knows about the caller.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

type Preferences struct {
	BrowserPush bool `firestore:"browserPush" json:"browserPush"`
}

type Profile struct {
	DisplayName string      `firestore:"displayName" json:"displayName"`
	Email       string      `firestore:"email" json:"email"`
	Preferences Preferences `firestore:"preferences" json:"preferences"`
}

// Session owns everything scoped to one signed-in user. It is built on
// login and torn down with Close.
type Session struct {
	identity Identity
	store    docstore.Store

	mu      sync.Mutex
	profile Profile

	Notifications *notification.Feed
	Invitations   *invitation.Feed
	API           *notification.NotificationService
	workflow      *invitation.Workflow

	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

func (s *Session) Identity() Identity { return s.identity }

func (s *Session) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) responder() invitation.Responder {
	return invitation.Responder{
		ID:          s.identity.UserID,
		Email:       s.identity.Email,
		DisplayName: s.identity.DisplayName,
	}
}

// SetBrowserPush stores the preference and applies it to the live feed.
func (s *Session) SetBrowserPush(ctx context.Context, enabled bool) error {
	err := s.store.Set(ctx, UsersCollection, s.identity.UserID, map[string]interface{}{
		"preferences": map[string]interface{}{"browserPush": enabled},
	})
	if err != nil {
		return fmt.Errorf("failed to save push preference: %w", err)
	}
	s.mu.Lock()
	s.profile.Preferences.BrowserPush = enabled
	s.mu.Unlock()
	s.Notifications.SetBrowserPush(enabled)
	return nil
}

func (s *Session) Accept(ctx context.Context, invitationID string) error {
	inv, err := s.invitation(ctx, invitationID)
	if err != nil {
		return err
	}
	return s.workflow.Accept(ctx, inv, s.responder())
}

func (s *Session) Decline(ctx context.Context, invitationID string) error {
	inv, err := s.invitation(ctx, invitationID)
	if err != nil {
		return err
	}
	return s.workflow.Decline(ctx, inv, s.responder())
}

// invitation resolves an id from the live list, falling back to the store
// so that an already answered invitation reports ErrNotPending. Invitations
// addressed to someone else read as not found.
func (s *Session) invitation(ctx context.Context, id string) (invitation.Invitation, error) {
	if inv, ok := s.Invitations.Lookup(id); ok {
		return inv, nil
	}
	inv, err := invitation.Load(ctx, s.store, id)
	if err != nil {
		return invitation.Invitation{}, err
	}
	if utils.NormalizeEmail(inv.Email) != utils.NormalizeEmail(s.identity.Email) {
		return invitation.Invitation{}, fmt.Errorf("invitation %s: %w", id, docstore.ErrNotFound)
	}
	return inv, nil
}

// Done is closed once the session has been closed, whether by End, by a
// restart for the same user or by manager shutdown.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops both subscriptions. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Notifications.Stop()
		s.Invitations.Stop()
		s.cancel()
		close(s.done)
		slog.Info("session closed", "user_id", s.identity.UserID)
	})
}

func loadProfile(ctx context.Context, store docstore.Store, id Identity) (Profile, error) {
	profile := Profile{DisplayName: id.DisplayName, Email: id.Email}

	doc, err := store.Get(ctx, UsersCollection, id.UserID)
	if errors.Is(err, docstore.ErrNotFound) {
		return profile, nil
	}
	if err != nil {
		return profile, fmt.Errorf("failed to load profile for %s: %w", id.UserID, err)
	}
	if err := doc.DataTo(&profile); err != nil {
		return profile, err
	}
	if profile.DisplayName == "" {
		profile.DisplayName = id.DisplayName
	}
	if profile.Email == "" {
		profile.Email = id.Email
	}
	return profile, nil
}
