package docstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// watcherBuffer bounds how many undelivered snapshots a single subscriber can
// queue before intermediate ones are dropped. The latest write is re-read on
// the next delivery, so a lagging subscriber converges on the current state.
const watcherBuffer = 16

// Memory is an in-process Store used by tests and single-node deployments.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string]map[string][]byte     // collection -> id -> data
	watchers map[string]map[int]chan Snapshot // collection/id -> token -> chan
	nextTok  int
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]map[string][]byte),
		watchers: make(map[string]map[int]chan Snapshot),
	}
}

func watchKey(collection, id string) string { return collection + "/" + id }

func (m *Memory) Create(ctx context.Context, collection string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.docs[collection][id] = cp
	m.notifyLocked(collection, id, Snapshot{ID: id, Data: cp, Exists: true})
	return id, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, transform Transform) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := transform(current)
	if err != nil {
		return nil, err
	}
	cp := make([]byte, len(next))
	copy(cp, next)
	m.docs[collection][id] = cp
	m.notifyLocked(collection, id, Snapshot{ID: id, Data: cp, Exists: true})
	return cp, nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.docs[collection], id)
	m.notifyLocked(collection, id, Snapshot{ID: id, Exists: false})
	return nil
}

func (m *Memory) Watch(ctx context.Context, collection, id string) (<-chan Snapshot, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := watchKey(collection, id)
	if m.watchers[key] == nil {
		m.watchers[key] = make(map[int]chan Snapshot)
	}
	tok := m.nextTok
	m.nextTok++

	ch := make(chan Snapshot, watcherBuffer)
	m.watchers[key][tok] = ch

	// Initial snapshot so a rejoining client reconstructs state immediately.
	initial := Snapshot{ID: id, Exists: false}
	if data, ok := m.docs[collection][id]; ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		initial = Snapshot{ID: id, Data: cp, Exists: true}
	}
	ch <- initial

	stop := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subs, ok := m.watchers[key]; ok {
			if c, ok := subs[tok]; ok {
				delete(subs, tok)
				close(c)
			}
			if len(subs) == 0 {
				delete(m.watchers, key)
			}
		}
	}
	return ch, stop, nil
}

func (m *Memory) Query(ctx context.Context, collection, field, value string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for id, data := range m.docs[collection] {
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			continue
		}
		if s, ok := fields[field].(string); ok && s == value {
			cp := make([]byte, len(data))
			copy(cp, data)
			out = append(out, Document{ID: id, Data: cp})
		}
	}
	return out, nil
}

func (m *Memory) notifyLocked(collection, id string, snap Snapshot) {
	for _, ch := range m.watchers[watchKey(collection, id)] {
		select {
		case ch <- snap:
		default:
			// Lagging subscriber; it catches up on the next delivery.
		}
	}
}
