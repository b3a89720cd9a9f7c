package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and by dev mode when no
// database is configured. It keeps the same ordering and change-feed
// semantics as the Postgres implementation.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string]json.RawMessage
	broker *broker
}

func NewMemory() *Memory {
	return &Memory{
		data:   make(map[string]map[string]json.RawMessage),
		broker: newBroker(),
	}
}

func (m *Memory) Append(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	m.mu.Lock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]json.RawMessage)
	}
	m.data[collection][id] = raw
	m.mu.Unlock()

	m.broker.publish(Event{Collection: collection, Type: EventCreated, ID: id, Doc: raw})
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, id string, out any) error {
	m.mu.RLock()
	raw, ok := m.data[collection][id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (m *Memory) GetPage(ctx context.Context, collection string, cursor *Cursor, limit int) ([]Document, error) {
	m.mu.RLock()
	docs := make([]Document, 0, len(m.data[collection]))
	for id, raw := range m.data[collection] {
		docs = append(docs, Document{ID: id, Data: raw})
	}
	m.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		ti, tj := publishAtOf(docs[i].Data), publishAtOf(docs[j].Data)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return docs[i].ID > docs[j].ID
	})

	if cursor != nil {
		// Skip everything at or before the cursor position in the
		// descending total order.
		start := len(docs)
		for i, d := range docs {
			at := publishAtOf(d.Data)
			if at.Before(cursor.PublishAt) || (at.Equal(cursor.PublishAt) && d.ID < cursor.ID) {
				start = i
				break
			}
		}
		docs = docs[start:]
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *Memory) Find(ctx context.Context, collection string, filter map[string]string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for id, raw := range m.data[collection] {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		match := true
		for k, want := range filter {
			got, ok := fields[k].(string)
			if !ok || got != want {
				match = false
				break
			}
		}
		if match {
			out = append(out, Document{ID: id, Data: raw})
		}
	}
	return out, nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.data[collection]))
	for id, raw := range m.data[collection] {
		out = append(out, Document{ID: id, Data: raw})
	}
	return out, nil
}

func (m *Memory) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := m.mutate(collection, id, func(doc map[string]any) {
		for k, v := range fields {
			doc[k] = v
		}
	})
	if err != nil {
		return err
	}
	m.broker.publish(Event{Collection: collection, Type: EventUpdated, ID: id, Doc: raw})
	return nil
}

func (m *Memory) AddToSet(ctx context.Context, collection, id, field, value string) error {
	raw, err := m.mutate(collection, id, func(doc map[string]any) {
		set, _ := doc[field].([]any)
		for _, v := range set {
			if v == value {
				return
			}
		}
		doc[field] = append(set, value)
	})
	if err != nil {
		return err
	}
	m.broker.publish(Event{Collection: collection, Type: EventUpdated, ID: id, Doc: raw})
	return nil
}

func (m *Memory) RemoveFromSet(ctx context.Context, collection, id, field, value string) error {
	raw, err := m.mutate(collection, id, func(doc map[string]any) {
		set, _ := doc[field].([]any)
		kept := set[:0]
		for _, v := range set {
			if v != value {
				kept = append(kept, v)
			}
		}
		doc[field] = kept
	})
	if err != nil {
		return err
	}
	m.broker.publish(Event{Collection: collection, Type: EventUpdated, ID: id, Doc: raw})
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	if _, ok := m.data[collection][id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.data[collection], id)
	m.mu.Unlock()

	m.broker.publish(Event{Collection: collection, Type: EventDeleted, ID: id})
	return nil
}

func (m *Memory) Subscribe(collection string) (<-chan Event, func()) {
	return m.broker.subscribe(collection)
}

func (m *Memory) Close() {
	m.broker.close()
}

// mutate applies fn to the decoded document under the write lock and stores
// the re-encoded result.
func (m *Memory) mutate(collection, id string, fn func(doc map[string]any)) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	fn(doc)
	updated, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	m.data[collection][id] = updated
	return updated, nil
}
