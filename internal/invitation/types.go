package invitation

import (
	"errors"
	"time"
)

const (
	Collection         = "invitations"
	ProjectsCollection = "projects"
)

var ErrNotPending = errors.New("invitation is no longer pending")

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

type Invitation struct {
	ID            string     `firestore:"-" json:"id"`
	Email         string     `firestore:"email" json:"email"`
	InvitedBy     string     `firestore:"invitedBy" json:"invitedBy"`
	InvitedByName string     `firestore:"invitedByName" json:"invitedByName"`
	ProjectID     string     `firestore:"projectId" json:"projectId"`
	ProjectName   string     `firestore:"projectName" json:"projectName"`
	Status        Status     `firestore:"status" json:"status"`
	AcceptedAt    *time.Time `firestore:"acceptedAt" json:"acceptedAt,omitempty"`
	DeclinedAt    *time.Time `firestore:"declinedAt" json:"declinedAt,omitempty"`
}

type Project struct {
	Name    string   `firestore:"name"`
	Members []string `firestore:"members"`
}

// Responder is the signed-in user answering an invitation.
type Responder struct {
	ID          string
	Email       string
	DisplayName string
}

// Name is what the inviter sees: the display name, else the email.
func (r Responder) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Email
}
