package engine

import (
	"database/sql"
	"log/slog"

	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/remote"
)

// Fetch returns the records of a kind for display. Online, it refreshes the
// mirror from the server first; offline (or when the refresh fails), it
// serves the mirror as-is. Reads never block on connectivity.
func (e *Engine) Fetch(kind models.EntityKind) ([]models.Record, error) {
	if e.online() {
		if err := e.refresh(kind); err != nil {
			slog.Warn("refresh failed, serving mirror", "kind", kind, "err", err)
		}
	}
	return e.db.ListByKind(kind)
}

// refresh merges a server listing into the mirror. Server state wins for
// confirmed records; records with local unconfirmed edits keep their
// optimistic data until the queue drains. Confirmed records the server no
// longer returns are dropped.
func (e *Engine) refresh(kind models.EntityKind) error {
	entities, err := e.remote.List(kind)
	if err != nil {
		return err
	}

	local, err := e.db.ListByKind(kind)
	if err != nil {
		return err
	}
	pending := make(map[string]bool, len(local))
	confirmed := make(map[string]bool, len(local))
	for _, rec := range local {
		if rec.Pending {
			pending[rec.ID] = true
		} else {
			confirmed[rec.ID] = true
		}
	}

	// A record with a queued delete is already gone locally; the server
	// listing must not resurrect it before the queue drains.
	deleting := make(map[string]bool)
	queued, err := e.db.ListActions(models.StatusPending, models.StatusInFlight)
	if err != nil {
		return err
	}
	for _, a := range queued {
		if a.Op != models.OpDelete || a.Kind != kind {
			continue
		}
		deleting[a.TargetID] = true
		if id, err := e.db.ResolveIdentity(a.TargetID); err == nil {
			deleting[id] = true
		}
	}

	now := e.now()
	return e.db.WithTx(func(tx *sql.Tx) error {
		seen := make(map[string]bool, len(entities))
		for _, ent := range entities {
			seen[ent.ID] = true
			if pending[ent.ID] || deleting[ent.ID] {
				continue
			}
			rec := models.Record{
				Kind:         kind,
				ID:           ent.ID,
				Data:         ent.Data,
				LastSyncedAt: &now,
			}
			if err := db.PutRecordTx(tx, rec); err != nil {
				return err
			}
		}
		for id := range confirmed {
			if seen[id] {
				continue
			}
			if err := db.DeleteRecordTx(tx, kind, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Status is a point-in-time snapshot of sync state for status screens.
type Status struct {
	Counts          map[models.ActionStatus]int64
	Reconciliations []models.Reconciliation
	Failed          []models.Action
}

// Snapshot collects queue depths, failed actions, and recorded identity
// mappings.
func (e *Engine) Snapshot() (*Status, error) {
	counts, err := e.db.CountByStatus()
	if err != nil {
		return nil, err
	}
	failed, err := e.db.ListActions(models.StatusFailed)
	if err != nil {
		return nil, err
	}
	recs, err := e.db.ListReconciliations()
	if err != nil {
		return nil, err
	}
	return &Status{Counts: counts, Reconciliations: recs, Failed: failed}, nil
}

var _ Remote = (*remote.Client)(nil)
