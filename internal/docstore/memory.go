// README: In-memory document store with serialised transactions and ordered watch delivery.
package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"newber/internal/notify"
)

type Memory struct {
	mu       sync.Mutex
	docs     map[string]map[string]Record
	watchers map[string]map[int]*notify.Subscription[Snapshot]
	nextID   int
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]map[string]Record),
		watchers: make(map[string]map[int]*notify.Subscription[Snapshot]),
	}
}

func watchKey(collection, id string) string {
	return collection + "/" + id
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, collection, id string, rec Record) error {
	return m.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
		return tx.Set(collection, id, rec)
	})
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields Record) error {
	return m.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
		return tx.Update(collection, id, fields)
	})
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	return m.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
		return tx.Delete(collection, id)
	})
}

func (m *Memory) Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Snapshot
	for id, rec := range m.docs[collection] {
		if matches(rec, filters) {
			out = append(out, Snapshot{Collection: collection, ID: id, Data: rec.Clone(), Exists: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matches(rec Record, filters []Filter) bool {
	for _, f := range filters {
		eq := reflect.DeepEqual(normalize(rec[f.Field]), normalize(f.Value))
		switch f.Op {
		case OpEqual:
			if !eq {
				return false
			}
		case OpNotEqual:
			if eq {
				return false
			}
		default:
			return false
		}
	}
	return true
}

type memoryHandle struct {
	cancel func()
}

func (h *memoryHandle) Cancel() {
	h.cancel()
}

func (m *Memory) Watch(ctx context.Context, collection, id string, fn func(Snapshot)) (Handle, error) {
	sub := notify.New[Snapshot]()
	key := watchKey(collection, id)

	m.mu.Lock()
	m.nextID++
	wid := m.nextID
	if m.watchers[key] == nil {
		m.watchers[key] = make(map[int]*notify.Subscription[Snapshot])
	}
	m.watchers[key][wid] = sub
	sub.Publish(m.snapshotLocked(collection, id))
	m.mu.Unlock()

	go func() {
		for snap := range sub.C() {
			select {
			case <-sub.Done():
				return
			default:
			}
			fn(snap)
		}
	}()

	h := &memoryHandle{cancel: func() {
		m.mu.Lock()
		delete(m.watchers[key], wid)
		if len(m.watchers[key]) == 0 {
			delete(m.watchers, key)
		}
		m.mu.Unlock()
		sub.Cancel()
	}}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.Cancel()
			case <-sub.Done():
			}
		}()
	}
	return h, nil
}

func (m *Memory) snapshotLocked(collection, id string) Snapshot {
	rec, ok := m.docs[collection][id]
	return Snapshot{Collection: collection, ID: id, Data: rec.Clone(), Exists: ok}
}

type memWrite struct {
	kind       string // set, update, delete
	collection string
	id         string
	fields     Record
}

type memoryTx struct {
	m      *Memory
	writes []memWrite
}

func (t *memoryTx) Get(collection, id string) (Record, error) {
	if len(t.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	rec, ok := t.m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (t *memoryTx) Set(collection, id string, rec Record) error {
	t.writes = append(t.writes, memWrite{kind: "set", collection: collection, id: id, fields: rec.Clone()})
	return nil
}

func (t *memoryTx) Update(collection, id string, fields Record) error {
	t.writes = append(t.writes, memWrite{kind: "update", collection: collection, id: id, fields: fields.Clone()})
	return nil
}

func (t *memoryTx) Delete(collection, id string) error {
	t.writes = append(t.writes, memWrite{kind: "delete", collection: collection, id: id})
	return nil
}

// RunTransaction holds the store lock for the whole of fn, so fn must only use tx.
func (m *Memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{m: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return m.commitLocked(tx.writes)
}

func (m *Memory) commitLocked(writes []memWrite) error {
	type docKey struct{ collection, id string }
	pending := make(map[docKey]Record)
	var order []docKey

	current := func(k docKey) (Record, bool) {
		if rec, ok := pending[k]; ok {
			return rec, rec != nil
		}
		rec, ok := m.docs[k.collection][k.id]
		return rec, ok
	}

	for _, w := range writes {
		k := docKey{w.collection, w.id}
		if _, seen := pending[k]; !seen {
			order = append(order, k)
		}
		switch w.kind {
		case "set":
			rec := w.fields.Clone()
			for f, v := range rec {
				if inc, ok := v.(Increment); ok {
					rec[f] = inc.By
				}
			}
			pending[k] = rec
		case "update":
			base, ok := current(k)
			if !ok {
				return fmt.Errorf("update %s/%s: %w", w.collection, w.id, ErrNotFound)
			}
			rec := base.Clone()
			for f, v := range w.fields {
				if inc, isInc := v.(Increment); isInc {
					rec[f] = rec.Int64(f) + inc.By
					continue
				}
				rec[f] = v
			}
			pending[k] = rec
		case "delete":
			pending[k] = nil
		}
	}

	for _, k := range order {
		rec := pending[k]
		if rec == nil {
			delete(m.docs[k.collection], k.id)
		} else {
			if m.docs[k.collection] == nil {
				m.docs[k.collection] = make(map[string]Record)
			}
			m.docs[k.collection][k.id] = rec
		}
		for _, sub := range m.watchers[watchKey(k.collection, k.id)] {
			sub.Publish(m.snapshotLocked(k.collection, k.id))
		}
	}
	return nil
}
