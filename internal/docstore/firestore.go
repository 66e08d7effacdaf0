package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"cloud.google.com/go/firestore"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore implements Store on top of a Cloud Firestore client.
type Firestore struct {
	client     *firestore.Client
	retryEvery time.Duration
}

func NewFirestore(client *firestore.Client, retryEvery time.Duration) *Firestore {
	if retryEvery <= 0 {
		retryEvery = 5 * time.Second
	}
	return &Firestore{
		client:     client,
		retryEvery: retryEvery,
	}
}

type firestoreSubscription struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
}

func (s *firestoreSubscription) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.cancel()
}

// Watch listens to q. A broken stream is reported through onError and then
// re-opened, at most once per retry interval, until the subscription stops.
func (s *Firestore) Watch(ctx context.Context, q Query, onSnapshot func(Snapshot), onError func(error)) (Subscription, error) {
	if q.Collection == "" {
		return nil, errors.New("query collection is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &firestoreSubscription{cancel: cancel}
	fq := s.query(q)
	limiter := rate.NewLimiter(rate.Every(s.retryEvery), 1)

	go func() {
		defer cancel()
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			it := fq.Snapshots(ctx)
			err := s.drain(ctx, it, sub, onSnapshot)
			it.Stop()

			if ctx.Err() != nil || sub.stopped.Load() {
				return
			}
			if err != nil {
				slog.Warn("firestore listener interrupted", "collection", q.Collection, "error", err)
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return sub, nil
}

func (s *Firestore) drain(ctx context.Context, it *firestore.QuerySnapshotIterator, sub *firestoreSubscription, onSnapshot func(Snapshot)) error {
	for {
		qs, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
				return nil
			}
			return err
		}

		docs, err := qs.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("failed to read snapshot documents: %w", err)
		}

		snap := Snapshot{
			Docs:     make([]Document, 0, len(docs)),
			ReadTime: qs.ReadTime,
		}
		for _, doc := range docs {
			snap.Docs = append(snap.Docs, Document{ID: doc.Ref.ID, Data: doc.Data()})
		}

		if sub.stopped.Load() {
			return nil
		}
		onSnapshot(snap)
	}
}

func (s *Firestore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	if !snap.Exists() {
		return Document{}, ErrNotFound
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *Firestore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestoreFields(fields))
	if err != nil {
		return "", fmt.Errorf("failed to create document in %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *Firestore) Set(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, toFirestoreFields(fields), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Firestore) Update(ctx context.Context, collection, id string, updates []Update) error {
	fu := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		fu = append(fu, firestore.Update{Path: u.Path, Value: toFirestoreValue(u.Value)})
	}

	_, err := s.client.Collection(collection).Doc(id).Update(ctx, fu)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Firestore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Firestore) query(q Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, f.Op, toFirestoreValue(f.Value))
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	return fq
}

func toFirestoreFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = toFirestoreValue(v)
	}
	return out
}

func toFirestoreValue(v interface{}) interface{} {
	switch val := v.(type) {
	case serverTimestamp:
		return firestore.ServerTimestamp
	case map[string]interface{}:
		return toFirestoreFields(val)
	default:
		return v
	}
}
