package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/contacts"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
	"github.com/tartampluch/go-birthday-reminders/internal/reconcile"
)

// ImportReport tells what an import changed and what it left to the user.
type ImportReport struct {
	Added  int
	Merged int
	// Pending are name matches that were not applied because confirm was false.
	Pending []reconcile.Proposal
	// Conflicts are never applied automatically.
	Conflicts []reconcile.Proposal
}

// Import pulls candidates from src, reconciles them against the store and
// applies new persons and safe merges. Name matches are applied only when
// confirm is set. New persons without reminders get the default reminders.
// A single recompute follows, even when a save fails halfway.
func (s *Service) Import(ctx context.Context, src contacts.Source, confirm bool) (ImportReport, error) {
	candidates, err := contacts.Collect(ctx, src)
	if err != nil {
		return ImportReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.ListPersons(ctx)
	if err != nil {
		return ImportReport{}, fmt.Errorf("%s: %w", config.ErrPersonsList, err)
	}
	res := reconcile.Reconcile(existing, candidates)

	rep, applyErr := s.applyImport(ctx, res, confirm)

	slog.Info(config.MsgImportDone,
		config.LogKeyComponent, config.CompImport,
		config.LogKeyAdded, rep.Added,
		config.LogKeyMerged, rep.Merged,
		config.LogKeyPending, len(rep.Pending),
		config.LogKeyConflicts, len(rep.Conflicts),
	)

	_, recomputeErr := s.recomputeLocked(ctx)
	return rep, errors.Join(applyErr, recomputeErr)
}

// applyImport writes the accepted proposals. It stops at the first failed save.
func (s *Service) applyImport(ctx context.Context, res reconcile.Result, confirm bool) (ImportReport, error) {
	rep := ImportReport{Conflicts: res.Conflicts}
	defaults := s.defaultReminders()

	added := make([]model.Person, len(res.New))
	for i, p := range res.New {
		person := p.Merged
		if len(person.Reminders) == 0 && len(defaults) > 0 {
			person.Reminders = cloneReminders(defaults)
		}
		saved, err := s.store.SavePerson(ctx, person)
		if err != nil {
			return rep, fmt.Errorf("%s: %w", config.ErrPersonSave, err)
		}
		added[i] = saved
		rep.Added++
	}

	for _, d := range res.Duplicates {
		if !d.AutoMerge && !confirm {
			rep.Pending = append(rep.Pending, d)
			continue
		}
		person := d.Merged
		if d.NewIndex >= 0 {
			// Matched a person added above: keep its id and reminders.
			person.ID = added[d.NewIndex].ID
			person.Reminders = cloneReminders(added[d.NewIndex].Reminders)
		}
		if _, err := s.store.SavePerson(ctx, person); err != nil {
			return rep, fmt.Errorf("%s: %w", config.ErrPersonSave, err)
		}
		rep.Merged++
	}
	return rep, nil
}
