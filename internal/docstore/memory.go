package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"eventmaster/utils"
)

// autoIDLength matches the length of Firestore generated document ids.
const autoIDLength = 20

// Memory is an in-process Store. Writes are applied under a single lock and
// every affected watcher receives a fresh snapshot before the write returns,
// so callbacks must not write back to the store.
type Memory struct {
	mu          sync.Mutex
	deliverMu   sync.Mutex
	now         func() time.Time
	lastStamp   time.Time
	collections map[string]map[string]map[string]interface{}
	watchers    map[int]*memoryWatcher
	nextWatcher int
}

type memoryWatcher struct {
	id         int
	query      Query
	onSnapshot func(Snapshot)
	onError    func(error)
	stopped    atomic.Bool
	store      *Memory
}

func (w *memoryWatcher) Stop() {
	if w.stopped.Swap(true) {
		return
	}
	w.store.mu.Lock()
	delete(w.store.watchers, w.id)
	w.store.mu.Unlock()
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		now:         now,
		collections: make(map[string]map[string]map[string]interface{}),
		watchers:    make(map[int]*memoryWatcher),
	}
}

func (m *Memory) Watch(ctx context.Context, q Query, onSnapshot func(Snapshot), onError func(error)) (Subscription, error) {
	if q.Collection == "" {
		return nil, errors.New("query collection is required")
	}

	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	w := &memoryWatcher{
		id:         m.nextWatcher,
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
		store:      m,
	}
	m.nextWatcher++
	m.watchers[w.id] = w
	snap := m.snapshotLocked(q)
	m.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			w.Stop()
		}()
	}

	onSnapshot(snap)
	return w, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: cloneMap(data)}, nil
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id, err := utils.GenerateRandomAlphaNumeric(autoIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate document id: %w", err)
	}

	err = m.write(collection, func(docs map[string]map[string]interface{}) error {
		docs[id] = m.resolveMap(fields)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	return m.write(collection, func(docs map[string]map[string]interface{}) error {
		doc, ok := docs[id]
		if !ok {
			doc = make(map[string]interface{})
			docs[id] = doc
		}
		for k, v := range m.resolveMap(fields) {
			doc[k] = v
		}
		return nil
	})
}

func (m *Memory) Update(ctx context.Context, collection, id string, updates []Update) error {
	return m.write(collection, func(docs map[string]map[string]interface{}) error {
		doc, ok := docs[id]
		if !ok {
			return ErrNotFound
		}
		for _, u := range updates {
			setPath(doc, u.Path, m.resolve(u.Value))
		}
		return nil
	})
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	return m.write(collection, func(docs map[string]map[string]interface{}) error {
		delete(docs, id)
		return nil
	})
}

// Interrupt reports err to every watcher of collection, as a dropped listen
// stream would.
func (m *Memory) Interrupt(collection string, err error) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	for _, w := range m.watchersFor(collection) {
		if w.onError != nil && !w.stopped.Load() {
			w.onError(err)
		}
	}
}

func (m *Memory) write(collection string, apply func(map[string]map[string]interface{}) error) error {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]interface{})
		m.collections[collection] = docs
	}
	if err := apply(docs); err != nil {
		m.mu.Unlock()
		return err
	}

	type delivery struct {
		w    *memoryWatcher
		snap Snapshot
	}
	var pending []delivery
	for _, w := range m.watchers {
		if w.query.Collection == collection {
			pending = append(pending, delivery{w: w, snap: m.snapshotLocked(w.query)})
		}
	}
	m.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].w.id < pending[j].w.id })
	for _, d := range pending {
		if !d.w.stopped.Load() {
			d.w.onSnapshot(d.snap)
		}
	}
	return nil
}

func (m *Memory) watchersFor(collection string) []*memoryWatcher {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*memoryWatcher
	for _, w := range m.watchers {
		if w.query.Collection == collection {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (m *Memory) snapshotLocked(q Query) Snapshot {
	var docs []Document
	for id, data := range m.collections[q.Collection] {
		if !matches(data, q.Filters) {
			continue
		}
		if q.OrderBy != "" {
			if _, ok := getPath(data, q.OrderBy); !ok {
				continue
			}
		}
		docs = append(docs, Document{ID: id, Data: cloneMap(data)})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy == "" {
			return docs[i].ID < docs[j].ID
		}
		a, _ := getPath(docs[i].Data, q.OrderBy)
		b, _ := getPath(docs[j].Data, q.OrderBy)
		c := compareValues(a, b)
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	return Snapshot{Docs: docs, ReadTime: m.now()}
}

func (m *Memory) stamp() time.Time {
	ts := m.now().UTC().Truncate(time.Microsecond)
	if !ts.After(m.lastStamp) {
		ts = m.lastStamp.Add(time.Microsecond)
	}
	m.lastStamp = ts
	return ts
}

func (m *Memory) resolveMap(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = m.resolve(v)
	}
	return out
}

func (m *Memory) resolve(v interface{}) interface{} {
	switch val := v.(type) {
	case serverTimestamp:
		return m.stamp()
	case map[string]interface{}:
		return m.resolveMap(val)
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = m.resolve(item)
		}
		return out
	case int:
		return int64(val)
	default:
		return v
	}
}

func matches(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v, ok := getPath(data, f.Field)
		if !ok {
			return false
		}
		switch f.Op {
		case "==":
			if compareValues(v, f.Value) != 0 {
				return false
			}
		case "!=":
			if compareValues(v, f.Value) == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func getPath(data map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = data
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(data map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	cur := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// compareValues orders values of the same kind; mismatched kinds compare by
// their formatted representation.
func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case int64, int, float64:
		if bf, ok := toFloat(b); ok {
			af, _ := toFloat(a)
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cloneMap(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
