package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var ErrNotFound = errors.New("document not found")

// ServerTimestamp is replaced by the store's own clock when a write is applied.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

type Filter struct {
	Field string
	Op    string
	Value interface{}
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
}

// Where returns a copy of q with an additional equality filter.
func (q Query) Where(field, op string, value interface{}) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

type Update struct {
	Path  string
	Value interface{}
}

type Document struct {
	ID   string
	Data map[string]interface{}
}

// DataTo decodes the document fields into v using its `firestore` struct tags.
func (d Document) DataTo(v interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "firestore",
		Result:           v,
		WeaklyTypedInput: false,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(d.Data); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

// Snapshot is a full, consistent view of a query result set.
type Snapshot struct {
	Docs     []Document
	ReadTime time.Time
}

// IDs returns the set of document ids in the snapshot.
func (s Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Docs))
	for _, doc := range s.Docs {
		ids[doc.ID] = struct{}{}
	}
	return ids
}

type Subscription interface {
	// Stop cancels the subscription. It is safe to call more than once; once it
	// returns no further callbacks are delivered.
	Stop()
}

type Store interface {
	Watch(ctx context.Context, q Query, onSnapshot func(Snapshot), onError func(error)) (Subscription, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	Set(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Update(ctx context.Context, collection, id string, updates []Update) error
	Delete(ctx context.Context, collection, id string) error
}
