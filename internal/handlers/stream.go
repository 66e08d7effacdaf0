package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"eventmaster/internal/invitation"
	"eventmaster/internal/notification"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type notificationsFrame struct {
	Kind string `json:"kind"`
	notification.View
}

type invitationsFrame struct {
	Kind        string                  `json:"kind"`
	Invitations []invitation.Invitation `json:"invitations"`
}

// pending holds the newest unsent state per kind. Feed listeners run on the
// store's delivery path and must not block, so they only overwrite it.
type pending struct {
	mu            sync.Mutex
	notifications *notificationsFrame
	invitations   *invitationsFrame
	ready         chan struct{}
}

func newPending() *pending {
	return &pending{ready: make(chan struct{}, 1)}
}

func (p *pending) signal() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

func (p *pending) setNotifications(v notification.View) {
	p.mu.Lock()
	p.notifications = &notificationsFrame{Kind: "notifications", View: v}
	p.mu.Unlock()
	p.signal()
}

func (p *pending) setInvitations(list []invitation.Invitation) {
	if list == nil {
		list = []invitation.Invitation{}
	}
	p.mu.Lock()
	p.invitations = &invitationsFrame{Kind: "invitations", Invitations: list}
	p.mu.Unlock()
	p.signal()
}

func (p *pending) take() []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	var frames []interface{}
	if p.notifications != nil {
		frames = append(frames, p.notifications)
		p.notifications = nil
	}
	if p.invitations != nil {
		frames = append(frames, p.invitations)
		p.invitations = nil
	}
	return frames
}

// Stream pushes the session's notification and invitation state over a
// WebSocket whenever either feed changes.
func (h *Handler) Stream(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return errorResponse(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	p := newPending()
	defer s.Notifications.OnChange(p.setNotifications)()
	defer s.Invitations.OnChange(p.setInvitations)()
	p.setNotifications(s.Notifications.View())
	p.setInvitations(s.Invitations.Invitations())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-s.Done():
			// A restarted or ended session no longer feeds this socket.
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(writeWait))
			return nil
		case <-p.ready:
			for _, frame := range p.take() {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(frame); err != nil {
					slog.Warn("stream write failed", "user_id", s.Identity().UserID, "error", err)
					return nil
				}
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}
