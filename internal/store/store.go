// Package store persists persons and their reminder configuration.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

var (
	ErrNotFound      = errors.New(config.ErrPersonNotFound)
	ErrUnknownDriver = errors.New(config.ErrStoreDriver)
)

// Store is the persistence API used by the application service.
type Store interface {
	ListPersons(ctx context.Context) ([]model.Person, error)
	GetPerson(ctx context.Context, id string) (model.Person, error)
	// SavePerson validates p, assigns an ID when it has none and upserts it.
	SavePerson(ctx context.Context, p model.Person) (model.Person, error)
	DeletePerson(ctx context.Context, id string) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg config.StoreSettings) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	slog.Debug(config.MsgStoreOpen,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyDriver, driver,
		config.LogKeyPath, cfg.Path,
	)

	switch driver {
	case config.StoreDriverMemory:
		return NewMemory(), nil
	case config.StoreDriverSQLite:
		s, err := openSQLite(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// prepare validates p and assigns a fresh ID when needed.
func prepare(p model.Person) (model.Person, error) {
	if err := p.Validate(); err != nil {
		return model.Person{}, err
	}
	p = p.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p, nil
}

// sortPersons orders by display name, then ID, so listings are stable.
func sortPersons(ps []model.Person) {
	slices.SortFunc(ps, func(a, b model.Person) int {
		if c := strings.Compare(strings.ToLower(a.FullName()), strings.ToLower(b.FullName())); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
