package store

import (
	"context"
	"sync"

	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// Memory is a volatile Store, used in tests and when persistence is off.
type Memory struct {
	mu      sync.RWMutex
	persons map[string]model.Person
}

func NewMemory() *Memory {
	return &Memory{persons: make(map[string]model.Person)}
}

func (m *Memory) ListPersons(ctx context.Context) ([]model.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Person, 0, len(m.persons))
	for _, p := range m.persons {
		out = append(out, p.Clone())
	}
	sortPersons(out)
	return out, nil
}

func (m *Memory) GetPerson(ctx context.Context, id string) (model.Person, error) {
	if err := ctx.Err(); err != nil {
		return model.Person{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.persons[id]
	if !ok {
		return model.Person{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) SavePerson(ctx context.Context, p model.Person) (model.Person, error) {
	if err := ctx.Err(); err != nil {
		return model.Person{}, err
	}
	p, err := prepare(p)
	if err != nil {
		return model.Person{}, err
	}

	m.mu.Lock()
	m.persons[p.ID] = p
	m.mu.Unlock()
	return p.Clone(), nil
}

func (m *Memory) DeletePerson(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.persons[id]; !ok {
		return ErrNotFound
	}
	delete(m.persons, id)
	return nil
}

func (m *Memory) Close() error { return nil }
