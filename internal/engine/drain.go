package engine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/identity"
	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/remote"
)

// drainPass walks the due actions in strict sequence order. It stops early
// when the device goes offline, a backoff window has not elapsed, or a
// transient failure occurs: later actions must never overtake an earlier one.
func (e *Engine) drainPass() (Report, error) {
	var rep Report

	if !e.online() {
		rep.Paused = true
		return rep, nil
	}

	actions, err := e.db.DueActions()
	if err != nil {
		return rep, err
	}

	for _, a := range actions {
		if !e.online() {
			rep.Paused = true
			return rep, nil
		}
		if a.NextAttemptAt != nil && a.NextAttemptAt.After(e.now()) {
			// Backoff window still open. Order forbids skipping ahead.
			rep.Paused = true
			return rep, nil
		}

		// A cascade earlier in this pass may have failed actions we are still
		// holding a stale snapshot of.
		cur, err := e.db.GetAction(a.SeqID)
		if err != nil {
			return rep, err
		}
		if cur == nil || (cur.Status != models.StatusPending && cur.Status != models.StatusInFlight) {
			continue
		}
		a = *cur

		rep.Processed++
		stop, err := e.processAction(a, &rep)
		if err != nil {
			return rep, err
		}
		if stop {
			if serr := e.sweepPending(); serr != nil {
				return rep, serr
			}
			return rep, nil
		}
	}
	if err := e.sweepPending(); err != nil {
		return rep, err
	}
	return rep, nil
}

// sweepPending clears the pending flag on every mirror record that no queued
// action still references, under either of its identities, and whose own
// dependent fields are fully resolved. Runs at the end of each pass: a
// record's last blocking action may complete long after the record's own.
func (e *Engine) sweepPending() error {
	entries, err := e.db.ListReconciliations()
	if err != nil {
		return err
	}
	alias := make(map[string]string, len(entries)) // server id -> temp id
	for _, entry := range entries {
		alias[entry.ServerID] = entry.TempID
	}

	for _, kind := range models.Kinds {
		records, err := e.db.ListByKind(kind)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if !rec.Pending {
				continue
			}
			quiet, err := e.recordQuiet(rec, alias)
			if err != nil {
				return err
			}
			if !quiet {
				continue
			}
			err = e.db.WithTx(func(tx *sql.Tx) error {
				return db.SetRecordSyncedTx(tx, rec.Kind, rec.ID, e.now())
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// recordQuiet reports whether a record has no live queue references and no
// unresolved dependent fields.
func (e *Engine) recordQuiet(rec models.Record, alias map[string]string) (bool, error) {
	if id, err := identity.Parse(rec.ID); err == nil && id.IsTemporary() {
		return false, nil // create not confirmed yet
	}

	for _, f := range models.DependentFields(rec.Kind) {
		var m map[string]any
		if err := json.Unmarshal(rec.Data, &m); err != nil {
			return false, nil
		}
		if v, ok := m[f].(string); ok && v != "" {
			if id, err := identity.Parse(v); err == nil && id.IsTemporary() {
				return false, nil
			}
		}
	}

	ids := []string{rec.ID}
	if tmp, ok := alias[rec.ID]; ok {
		ids = append(ids, tmp)
	}
	for _, id := range ids {
		refs, err := e.db.ActionsReferencing(id)
		if err != nil {
			return false, err
		}
		for _, r := range refs {
			if r.Status != models.StatusDone {
				return false, nil
			}
		}
	}
	return true, nil
}

// processAction sends one action and applies its outcome. Returns stop=true
// when the pass must not continue past this action.
func (e *Engine) processAction(a models.Action, rep *Report) (stop bool, err error) {
	// An in_flight create found at drain start means the process died between
	// send and acknowledgment. The correlation token tells us whether the
	// server already accepted it.
	if a.Status == models.StatusInFlight && a.Op == models.OpCreate {
		ent, err := e.remote.LookupByRef(a.Kind, a.TargetID)
		if err != nil {
			return e.handleFailure(a, err, rep)
		}
		if ent != nil {
			slog.Info("recovered in-flight create", "seq", a.SeqID, "kind", a.Kind, "server_id", ent.ID)
			if err := e.completeCreate(a, ent.ID, rep); err != nil {
				return true, err
			}
			return false, nil
		}
		// Never reached the server; fall through and send it.
	}

	res, blocked, err := e.resolveReferences(a)
	if err != nil {
		return true, err
	}
	if blocked != "" {
		return e.handleUnresolvable(a, blocked, rep)
	}

	err = e.db.WithTx(func(tx *sql.Tx) error {
		return db.MarkInFlightTx(tx, a.SeqID, res.target, res.payload)
	})
	if err != nil {
		return true, err
	}

	switch a.Op {
	case models.OpCreate:
		created, err := e.remote.Create(a.Kind, a.TargetID, res.payload)
		if err != nil {
			return e.handleFailure(a, err, rep)
		}
		if err := e.completeCreate(a, created.ID, rep); err != nil {
			return true, err
		}

	case models.OpUpdate:
		if err := e.remote.Update(a.Kind, res.target, res.payload); err != nil {
			return e.handleFailure(a, err, rep)
		}
		if err := e.completeMutation(a, rep); err != nil {
			return true, err
		}

	case models.OpDelete:
		err := e.remote.Delete(a.Kind, res.target)
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			// Already-gone is success: a replayed delete must not fail.
			return e.handleFailure(a, err, rep)
		}
		if err := e.completeDelete(a, res.target, rep); err != nil {
			return true, err
		}
	}
	return false, nil
}

// resolved holds an action's wire form after identity substitution.
type resolved struct {
	target  string
	payload json.RawMessage
}

// resolveReferences substitutes reconciled server identities into the
// action's target and dependent payload fields. blocked names the first
// temporary identity with no mapping, if any; a create's own target is
// exempt — it is supposed to be temporary.
func (e *Engine) resolveReferences(a models.Action) (resolved, string, error) {
	res := resolved{target: a.TargetID, payload: a.Payload}

	if a.Op != models.OpCreate {
		target, err := e.db.ResolveIdentity(a.TargetID)
		if err != nil {
			return res, "", err
		}
		if id, perr := identity.Parse(target); perr == nil && id.IsTemporary() {
			return res, target, nil
		}
		res.target = target
	}

	fields := models.DependentFields(a.Kind)
	if len(fields) == 0 || len(a.Payload) == 0 {
		return res, "", nil
	}

	var m map[string]any
	if err := json.Unmarshal(a.Payload, &m); err != nil {
		return res, "", fmt.Errorf("action %d: unmarshal payload: %w", a.SeqID, err)
	}

	changed := false
	for _, f := range fields {
		v, ok := m[f].(string)
		if !ok || v == "" {
			continue
		}
		id, err := identity.Parse(v)
		if err != nil || !id.IsTemporary() {
			continue
		}
		mapped, err := e.db.ResolveIdentity(v)
		if err != nil {
			return res, "", err
		}
		if mapped == v {
			return res, v, nil
		}
		m[f] = mapped
		changed = true
	}
	if changed {
		out, err := json.Marshal(m)
		if err != nil {
			return res, "", fmt.Errorf("action %d: marshal payload: %w", a.SeqID, err)
		}
		res.payload = out
	}
	return res, "", nil
}

// handleUnresolvable deals with an action referencing a temporary identity
// that has no mapping. If the create that would have minted the mapping
// failed terminally, this action inherits the failure and the pass goes on.
// Anything else — create queued later, or never queued — is a broken ordering
// invariant, and the pass halts rather than send a dangling reference.
func (e *Engine) handleUnresolvable(a models.Action, tempID string, rep *Report) (bool, error) {
	ca, err := e.db.FindCreateAction(tempID)
	if err != nil {
		return true, err
	}

	if ca != nil && ca.Status == models.StatusFailed && ca.SeqID < a.SeqID {
		reason := fmt.Sprintf("dependency %s failed: %s", tempID, ca.LastError)
		err := e.db.WithTx(func(tx *sql.Tx) error {
			return db.MarkFailedTx(tx, a.SeqID, reason)
		})
		if err != nil {
			return true, err
		}
		rep.Failed++
		slog.Warn("action failed on failed dependency", "seq", a.SeqID, "dep", tempID)
		return false, nil
	}

	reason := fmt.Sprintf("unresolvable reference %s", tempID)
	err = e.db.WithTx(func(tx *sql.Tx) error {
		return db.MarkFailedTx(tx, a.SeqID, reason)
	})
	if err != nil {
		return true, err
	}
	rep.Failed++
	rep.Halted = true
	slog.Error("drain halted on ordering violation", "seq", a.SeqID, "ref", tempID)
	return true, fmt.Errorf("action %d references %s: %w", a.SeqID, tempID, ErrOrderingViolation)
}

// completeCreate applies a confirmed create: record the identity mapping,
// rekey the optimistic mirror record, rewrite every mirror reference, and
// retire the action — atomically, so a crash cannot leave the mapping
// recorded but the mirror stale.
func (e *Engine) completeCreate(a models.Action, serverID string, rep *Report) error {
	err := e.db.WithTx(func(tx *sql.Tx) error {
		if err := db.RecordReconciliationTx(tx, a.TargetID, serverID, a.Kind); err != nil {
			return err
		}
		if err := db.RekeyRecordTx(tx, a.Kind, a.TargetID, serverID); err != nil {
			return err
		}
		if err := db.RewriteRecordRefsTx(tx, a.TargetID, serverID); err != nil {
			return err
		}
		return db.MarkDoneTx(tx, a.SeqID)
	})
	if err != nil {
		return fmt.Errorf("complete create %d: %w", a.SeqID, err)
	}
	rep.Completed++
	slog.Info("create confirmed", "seq", a.SeqID, "kind", a.Kind, "temp", a.TargetID, "server_id", serverID)
	return nil
}

// completeMutation retires a confirmed update.
func (e *Engine) completeMutation(a models.Action, rep *Report) error {
	err := e.db.WithTx(func(tx *sql.Tx) error {
		return db.MarkDoneTx(tx, a.SeqID)
	})
	if err != nil {
		return fmt.Errorf("complete action %d: %w", a.SeqID, err)
	}
	rep.Completed++
	return nil
}

// completeDelete retires a confirmed delete and drops the mirror record.
func (e *Engine) completeDelete(a models.Action, target string, rep *Report) error {
	err := e.db.WithTx(func(tx *sql.Tx) error {
		if err := db.DeleteRecordTx(tx, a.Kind, target); err != nil {
			return err
		}
		return db.MarkDoneTx(tx, a.SeqID)
	})
	if err != nil {
		return fmt.Errorf("complete delete %d: %w", a.SeqID, err)
	}
	rep.Completed++
	return nil
}

// handleFailure classifies a send failure and applies the retry policy.
// Transient failures pause the pass; permanent ones are terminal for the
// action (and, for a create, its dependents) but let the pass continue.
func (e *Engine) handleFailure(a models.Action, sendErr error, rep *Report) (bool, error) {
	if remote.Classify(sendErr) == remote.Permanent {
		err := e.db.WithTx(func(tx *sql.Tx) error {
			if err := db.MarkFailedTx(tx, a.SeqID, sendErr.Error()); err != nil {
				return err
			}
			if a.Op == models.OpCreate {
				reason := fmt.Sprintf("dependency %s failed: %s", a.TargetID, sendErr.Error())
				n, err := db.CascadeFailTx(tx, a.SeqID, a.TargetID, reason)
				if err != nil {
					return err
				}
				rep.Cascaded += n
			}
			return nil
		})
		if err != nil {
			return true, err
		}
		rep.Failed++
		slog.Warn("action failed permanently", "seq", a.SeqID, "op", a.Op, "kind", a.Kind, "err", sendErr)
		return false, nil
	}

	attempt := a.AttemptCount + 1
	if attempt >= e.retryCeiling {
		err := e.db.WithTx(func(tx *sql.Tx) error {
			msg := fmt.Sprintf("retry ceiling reached (%d attempts): %s", attempt, sendErr.Error())
			if err := db.MarkFailedTx(tx, a.SeqID, msg); err != nil {
				return err
			}
			if a.Op == models.OpCreate {
				reason := fmt.Sprintf("dependency %s failed: retry ceiling reached", a.TargetID)
				n, err := db.CascadeFailTx(tx, a.SeqID, a.TargetID, reason)
				if err != nil {
					return err
				}
				rep.Cascaded += n
			}
			return nil
		})
		if err != nil {
			return true, err
		}
		rep.Failed++
		rep.Paused = true
		slog.Error("action exhausted retries", "seq", a.SeqID, "attempts", attempt, "err", sendErr)
		return true, nil
	}

	next := e.now().Add(e.Backoff(attempt))
	err := e.db.WithTx(func(tx *sql.Tx) error {
		return db.RequeueTransientTx(tx, a.SeqID, attempt, next, sendErr.Error())
	})
	if err != nil {
		return true, err
	}
	rep.Requeued++
	rep.Paused = true
	slog.Info("transient failure, requeued", "seq", a.SeqID, "attempt", attempt, "next", next, "err", sendErr)
	return true, nil
}
