package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"eventmaster/internal/docstore"
	"eventmaster/internal/invitation"
	"eventmaster/internal/notification"
)

type Options struct {
	Alerter     notification.Alerter
	Permissions notification.PermissionSource
	Journal     invitation.Journal
	Icon        string
	Window      time.Duration
}

// Manager keeps one session per signed-in user.
type Manager struct {
	store docstore.Store
	opts  Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store docstore.Store, opts Options) *Manager {
	return &Manager{
		store:    store,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Start signs id in. Any session the user already had is torn down first,
// so both subscriptions are re-established for the new identity.
func (m *Manager) Start(ctx context.Context, id Identity) (*Session, error) {
	if id.UserID == "" {
		return nil, fmt.Errorf("cannot start session: %w", ErrNoSession)
	}

	profile, err := loadProfile(ctx, m.store, id)
	if err != nil {
		return nil, err
	}
	if id.DisplayName == "" {
		id.DisplayName = profile.DisplayName
	}

	m.mu.Lock()
	old := m.sessions[id.UserID]
	delete(m.sessions, id.UserID)
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	s, err := m.build(id, profile)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if raced := m.sessions[id.UserID]; raced != nil {
		raced.Close()
	}
	m.sessions[id.UserID] = s
	m.mu.Unlock()

	slog.Info("session started", "user_id", id.UserID, "browser_push", profile.Preferences.BrowserPush)
	return s, nil
}

func (m *Manager) build(id Identity, profile Profile) (*Session, error) {
	// Subscriptions outlive the request that created the session.
	ctx, cancel := context.WithCancel(context.Background())

	feed := notification.NewFeed(m.store, notification.FeedOptions{
		Alerter:     m.opts.Alerter,
		Permissions: m.opts.Permissions,
		Icon:        m.opts.Icon,
		Window:      m.opts.Window,
	})
	api := notification.NewNotificationService(m.store, feed)

	s := &Session{
		identity:      id,
		profile:       profile,
		store:         m.store,
		Notifications: feed,
		Invitations:   invitation.NewFeed(m.store),
		API:           api,
		workflow:      invitation.NewWorkflow(m.store, api, m.opts.Journal),
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	if err := s.Notifications.Start(ctx, id.UserID, profile.Preferences.BrowserPush); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Invitations.Start(ctx, id.Email); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (m *Manager) Get(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

func (m *Manager) End(userID string) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	s.Close()
	return nil
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
