package notification

import "time"

const Collection = "notifications"

type NotificationType string

const (
	TypeInfo    NotificationType = "info"
	TypeSuccess NotificationType = "success"
	TypeWarning NotificationType = "warning"
	TypeError   NotificationType = "error"
)

type Notification struct {
	ID        string           `firestore:"-" json:"id"`
	UserID    string           `firestore:"userId" json:"userId"`
	Type      NotificationType `firestore:"type" json:"type"`
	Title     string           `firestore:"title" json:"title"`
	Message   string           `firestore:"message" json:"message"`
	Link      *string          `firestore:"link" json:"link"`
	Read      bool             `firestore:"read" json:"read"`
	CreatedAt time.Time        `firestore:"createdAt" json:"createdAt"`
}

type NotificationRequest struct {
	UserID  string           `json:"userId" validate:"required"`
	Type    NotificationType `json:"type" validate:"omitempty,oneof=info success warning error"`
	Title   string           `json:"title" validate:"required,max=200"`
	Message string           `json:"message" validate:"max=2000"`
	Link    *string          `json:"link,omitempty"`
}

// View is the feed state handed to consumers: the ordered list and its
// unread count, always computed from the same snapshot.
type View struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

func (v View) clone() View {
	out := View{UnreadCount: v.UnreadCount, Notifications: make([]Notification, len(v.Notifications))}
	copy(out.Notifications, v.Notifications)
	return out
}

// Has reports whether the view holds a notification with the given id.
func (v View) Has(id string) bool {
	for _, n := range v.Notifications {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Unread returns the ids of unread notifications in the view.
func (v View) Unread() []string {
	var ids []string
	for _, n := range v.Notifications {
		if !n.Read {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
