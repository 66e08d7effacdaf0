package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var Migrations embed.FS

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

// Entry records one invitation response attempt and how far it got.
type Entry struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	InvitationID string         `db:"invitation_id" json:"invitation_id"`
	UserID       string         `db:"user_id" json:"user_id"`
	Action       Action         `db:"action" json:"action"`
	Steps        pq.StringArray `db:"steps_completed" json:"steps_completed"`
	Error        sql.NullString `db:"error" json:"error"`
	StartedAt    time.Time      `db:"started_at" json:"started_at"`
	FinishedAt   time.Time      `db:"finished_at" json:"finished_at"`
}

func NewEntry(invitationID, userID string, action Action, startedAt time.Time) *Entry {
	return &Entry{
		ID:           uuid.New(),
		InvitationID: invitationID,
		UserID:       userID,
		Action:       action,
		Steps:        pq.StringArray{},
		StartedAt:    startedAt,
	}
}

func (e *Entry) Step(name string) {
	e.Steps = append(e.Steps, name)
}

// Finish stamps the entry and records err, if any.
func (e *Entry) Finish(err error, at time.Time) {
	e.FinishedAt = at
	if err != nil {
		e.Error = sql.NullString{String: err.Error(), Valid: true}
	}
}

func (e *Entry) Failed() bool {
	return e.Error.Valid
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func Connect(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	return NewStore(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e == nil {
		return errors.New("nil journal entry")
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO invitation_responses (
			id, invitation_id, user_id, action,
			steps_completed, error, started_at, finished_at
		)
		VALUES (
			:id, :invitation_id, :user_id, :action,
			:steps_completed, :error, :started_at, :finished_at
		)
	`, e)
	if err != nil {
		return fmt.Errorf("failed to record invitation response: %w", err)
	}
	return nil
}

// Failures lists attempts that stopped part way, newest first.
func (s *Store) Failures(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []Entry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, invitation_id, user_id, action, steps_completed, error, started_at, finished_at
		FROM invitation_responses
		WHERE error IS NOT NULL
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed invitation responses: %w", err)
	}
	return entries, nil
}

// WriteFailures prints entries as an aligned table, one attempt per row,
// listing the steps that completed before the error.
func WriteFailures(w io.Writer, entries []Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tINVITATION\tUSER\tACTION\tSTEPS\tERROR")
	for _, e := range entries {
		steps := strings.Join(e.Steps, ",")
		if steps == "" {
			steps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.UTC().Format(time.RFC3339), e.InvitationID, e.UserID, e.Action, steps, e.Error.String)
	}
	return tw.Flush()
}
