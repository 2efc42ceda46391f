// Package journal keeps a record of the game events a client applied and the
// last authoritative snapshot it merged.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/model"
)

// Entry is one journaled event in wire form.
type Entry struct {
	Kind    events.Kind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func newEntry(e events.Event) (Entry, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	return Entry{Kind: e.Kind(), Payload: payload}, nil
}

// Event decodes the entry back into a typed event.
func (en Entry) Event() (events.Event, error) {
	return events.Decode(string(en.Kind), []json.RawMessage{en.Payload})
}

// Memory is an in-process journal. It keeps at most limit events per game,
// dropping the oldest.
type Memory struct {
	limit int

	mu        sync.Mutex
	events    map[string][]Entry
	snapshots map[string]model.Snapshot
}

func NewMemory(limit int) *Memory {
	return &Memory{limit: limit, events: map[string][]Entry{}, snapshots: map[string]model.Snapshot{}}
}

func (m *Memory) Append(_ context.Context, gameID string, e events.Event) error {
	en, err := newEntry(e)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.events[gameID], en)
	if m.limit > 0 && len(list) > m.limit {
		list = list[len(list)-m.limit:]
	}
	m.events[gameID] = list
	return nil
}

func (m *Memory) SaveSnapshot(_ context.Context, gameID string, s model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[gameID] = s.Clone()
	return nil
}

func (m *Memory) LoadSnapshot(_ context.Context, gameID string) (model.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[gameID]
	if !ok {
		return model.Snapshot{}, false, nil
	}
	return s.Clone(), true, nil
}

func (m *Memory) Entries(_ context.Context, gameID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.events[gameID]...), nil
}
