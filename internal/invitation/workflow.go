package invitation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"eventmaster/internal/docstore"
	"eventmaster/internal/journal"
	"eventmaster/internal/notification"
)

// Sender creates the notification that tells the inviter about a response.
type Sender interface {
	SendNotification(ctx context.Context, req *notification.NotificationRequest) (string, error)
}

type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
}

// Workflow runs the accept and decline sequences. The steps are separate
// writes; a failure part way leaves the earlier ones applied and is
// returned to the caller.
type Workflow struct {
	store   docstore.Store
	sender  Sender
	journal Journal
	now     func() time.Time
}

// NewWorkflow builds a workflow. j may be nil.
func NewWorkflow(store docstore.Store, sender Sender, j Journal) *Workflow {
	return &Workflow{
		store:   store,
		sender:  sender,
		journal: j,
		now:     time.Now,
	}
}

func (w *Workflow) Accept(ctx context.Context, inv Invitation, who Responder) error {
	if inv.Status != StatusPending {
		return fmt.Errorf("invitation %s: %w", inv.ID, ErrNotPending)
	}

	entry := journal.NewEntry(inv.ID, who.ID, journal.ActionAccept, w.now())
	err := w.accept(ctx, inv, who, entry)
	w.record(ctx, entry, err)
	return err
}

func (w *Workflow) accept(ctx context.Context, inv Invitation, who Responder, entry *journal.Entry) error {
	member, err := w.addMember(ctx, inv.ProjectID, who.ID)
	if err != nil {
		return err
	}
	if member {
		entry.Step("membership")
	} else {
		entry.Step("membership_skipped")
	}

	err = w.store.Update(ctx, Collection, inv.ID, []docstore.Update{
		{Path: "status", Value: string(StatusAccepted)},
		{Path: "acceptedAt", Value: docstore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("failed to mark invitation %s accepted: %w", inv.ID, err)
	}
	entry.Step("status")

	link := "/projects/" + inv.ProjectID
	_, err = w.sender.SendNotification(ctx, &notification.NotificationRequest{
		UserID:  inv.InvitedBy,
		Title:   "Invitation accepted",
		Message: fmt.Sprintf("%s accepted your invitation to %s", who.Name(), inv.ProjectName),
		Type:    notification.TypeSuccess,
		Link:    &link,
	})
	if err != nil {
		return fmt.Errorf("failed to notify inviter %s: %w", inv.InvitedBy, err)
	}
	entry.Step("notify")

	return nil
}

// addMember appends userID to the project's members and reports whether the
// user is a member afterwards. A project that no longer exists is logged and
// skipped so the invitation still resolves.
func (w *Workflow) addMember(ctx context.Context, projectID, userID string) (bool, error) {
	if projectID == "" {
		slog.Warn("invitation has no project, skipping membership", "user_id", userID)
		return false, nil
	}

	doc, err := w.store.Get(ctx, ProjectsCollection, projectID)
	if errors.Is(err, docstore.ErrNotFound) {
		// TODO: confirm with product whether accepting into a deleted project should fail instead.
		slog.Warn("project not found, skipping membership", "project_id", projectID, "user_id", userID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}

	var project Project
	if err := doc.DataTo(&project); err != nil {
		return false, fmt.Errorf("failed to read project %s: %w", projectID, err)
	}
	if slices.Contains(project.Members, userID) {
		return true, nil
	}

	members := append(slices.Clone(project.Members), userID)
	err = w.store.Update(ctx, ProjectsCollection, projectID, []docstore.Update{
		{Path: "members", Value: members},
	})
	if err != nil {
		return false, fmt.Errorf("failed to add member to project %s: %w", projectID, err)
	}
	return true, nil
}

func (w *Workflow) Decline(ctx context.Context, inv Invitation, who Responder) error {
	if inv.Status != StatusPending {
		return fmt.Errorf("invitation %s: %w", inv.ID, ErrNotPending)
	}

	entry := journal.NewEntry(inv.ID, who.ID, journal.ActionDecline, w.now())
	err := w.decline(ctx, inv, who, entry)
	w.record(ctx, entry, err)
	return err
}

func (w *Workflow) decline(ctx context.Context, inv Invitation, who Responder, entry *journal.Entry) error {
	err := w.store.Update(ctx, Collection, inv.ID, []docstore.Update{
		{Path: "status", Value: string(StatusDeclined)},
		{Path: "declinedAt", Value: docstore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("failed to mark invitation %s declined: %w", inv.ID, err)
	}
	entry.Step("status")

	_, err = w.sender.SendNotification(ctx, &notification.NotificationRequest{
		UserID:  inv.InvitedBy,
		Title:   "Invitation declined",
		Message: fmt.Sprintf("%s declined your invitation to %s", who.Name(), inv.ProjectName),
		Type:    notification.TypeWarning,
	})
	if err != nil {
		return fmt.Errorf("failed to notify inviter %s: %w", inv.InvitedBy, err)
	}
	entry.Step("notify")

	return nil
}

func (w *Workflow) record(ctx context.Context, entry *journal.Entry, err error) {
	entry.Finish(err, w.now())
	if err != nil {
		slog.Error("invitation response failed",
			"invitation_id", entry.InvitationID,
			"action", entry.Action,
			"steps", []string(entry.Steps),
			"error", err,
		)
	}
	if w.journal == nil {
		return
	}
	if jerr := w.journal.Record(context.WithoutCancel(ctx), entry); jerr != nil {
		slog.Error("failed to journal invitation response", "invitation_id", entry.InvitationID, "error", jerr)
	}
}

// Load reads one invitation by id.
func Load(ctx context.Context, store docstore.Store, id string) (Invitation, error) {
	doc, err := store.Get(ctx, Collection, id)
	if err != nil {
		return Invitation{}, fmt.Errorf("failed to load invitation %s: %w", id, err)
	}
	var inv Invitation
	if err := doc.DataTo(&inv); err != nil {
		return Invitation{}, err
	}
	inv.ID = id
	return inv, nil
}
