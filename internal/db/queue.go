package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/renaud/comptoir/internal/identity"
	"github.com/renaud/comptoir/internal/models"
)

// EnqueueAction appends a mutation to the action queue and returns its
// sequence id. The row is durably committed before the call returns: the
// caller may assume the action survives immediate process termination.
//
// A CREATE must target a temporary identity; UPDATE/DELETE may target either
// kind. Status transitions after the append belong to the sync engine alone.
func (db *DB) EnqueueAction(kind models.EntityKind, op models.OpKind, targetID string, payload json.RawMessage) (int64, error) {
	var seqID int64
	err := db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		seqID, err = EnqueueActionTx(tx, kind, op, targetID, payload)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	return seqID, err
}

// EnqueueActionTx is EnqueueAction within an existing transaction, for
// callers that commit the optimistic mirror write and the queue append
// together.
func EnqueueActionTx(tx *sql.Tx, kind models.EntityKind, op models.OpKind, targetID string, payload json.RawMessage) (int64, error) {
	if !models.IsValidKind(kind) {
		return 0, fmt.Errorf("enqueue: invalid kind %q", kind)
	}
	if !models.IsValidOp(op) {
		return 0, fmt.Errorf("enqueue: invalid op %q", op)
	}
	target, err := identity.Parse(targetID)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	if op == models.OpCreate && !target.IsTemporary() {
		return 0, fmt.Errorf("enqueue: create must target a temporary identity, got %q", targetID)
	}
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}

	res, err := tx.Exec(`
		INSERT INTO action_queue (entity_kind, op, target_id, payload, enqueued_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(kind), string(op), targetID, string(payload),
		formatTimestamp(time.Now()), string(models.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("enqueue %s %s: %w", op, kind, err)
	}
	seqID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue: last insert id: %w", err)
	}
	return seqID, nil
}

// DueActions returns all actions a drain pass must consider — pending plus
// any in_flight left over from a crash — in strict sequence order.
func (db *DB) DueActions() ([]models.Action, error) {
	return db.queryActions(`
		SELECT seq_id, entity_kind, op, target_id, payload, enqueued_at,
		       attempt_count, status, last_error, next_attempt_at
		FROM action_queue
		WHERE status IN (?, ?)
		ORDER BY seq_id ASC`,
		string(models.StatusPending), string(models.StatusInFlight))
}

// ListActions returns actions filtered by status (all statuses when empty),
// in sequence order.
func (db *DB) ListActions(statuses ...models.ActionStatus) ([]models.Action, error) {
	if len(statuses) == 0 {
		return db.queryActions(`
			SELECT seq_id, entity_kind, op, target_id, payload, enqueued_at,
			       attempt_count, status, last_error, next_attempt_at
			FROM action_queue ORDER BY seq_id ASC`)
	}

	query := `
		SELECT seq_id, entity_kind, op, target_id, payload, enqueued_at,
		       attempt_count, status, last_error, next_attempt_at
		FROM action_queue WHERE status IN (`
	args := make([]any, len(statuses))
	for i, s := range statuses {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = string(s)
	}
	query += `) ORDER BY seq_id ASC`
	return db.queryActions(query, args...)
}

// GetAction returns a single action by sequence id, or nil if absent.
func (db *DB) GetAction(seqID int64) (*models.Action, error) {
	actions, err := db.queryActions(`
		SELECT seq_id, entity_kind, op, target_id, payload, enqueued_at,
		       attempt_count, status, last_error, next_attempt_at
		FROM action_queue WHERE seq_id = ?`, seqID)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}
	return &actions[0], nil
}

// CountByStatus returns queue depth per status.
func (db *DB) CountByStatus() (map[models.ActionStatus]int64, error) {
	rows, err := db.conn.Query(`SELECT status, COUNT(*) FROM action_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count queue: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ActionStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count queue: %w", err)
		}
		counts[models.ActionStatus(status)] = n
	}
	return counts, rows.Err()
}

// MarkInFlightTx transitions an action to in_flight, persisting the target
// and payload as rewritten by the drain so a retry after a crash re-sends the
// same bytes. For a CREATE the target stays the temporary identity: it is the
// correlation token the server deduplicates on.
func MarkInFlightTx(tx *sql.Tx, seqID int64, targetID string, payload json.RawMessage) error {
	_, err := tx.Exec(`
		UPDATE action_queue SET status = ?, target_id = ?, payload = ? WHERE seq_id = ?`,
		string(models.StatusInFlight), targetID, string(payload), seqID)
	if err != nil {
		return fmt.Errorf("mark in_flight %d: %w", seqID, err)
	}
	return nil
}

// MarkDoneTx transitions an action to done. Done actions are never re-sent.
func MarkDoneTx(tx *sql.Tx, seqID int64) error {
	_, err := tx.Exec(`
		UPDATE action_queue SET status = ?, last_error = '', next_attempt_at = NULL
		WHERE seq_id = ?`,
		string(models.StatusDone), seqID)
	if err != nil {
		return fmt.Errorf("mark done %d: %w", seqID, err)
	}
	return nil
}

// RequeueTransientTx returns an action to pending after a transient failure,
// bumping attempt_count and scheduling the next attempt.
func RequeueTransientTx(tx *sql.Tx, seqID int64, attemptCount int, nextAttempt time.Time, errMsg string) error {
	_, err := tx.Exec(`
		UPDATE action_queue
		SET status = ?, attempt_count = ?, next_attempt_at = ?, last_error = ?
		WHERE seq_id = ?`,
		string(models.StatusPending), attemptCount, formatTimestamp(nextAttempt), errMsg, seqID)
	if err != nil {
		return fmt.Errorf("requeue %d: %w", seqID, err)
	}
	return nil
}

// MarkFailedTx transitions an action to terminal failure. The row stays
// visible until the user retries or acknowledges it.
func MarkFailedTx(tx *sql.Tx, seqID int64, errMsg string) error {
	_, err := tx.Exec(`
		UPDATE action_queue SET status = ?, last_error = ?, next_attempt_at = NULL
		WHERE seq_id = ?`,
		string(models.StatusFailed), errMsg, seqID)
	if err != nil {
		return fmt.Errorf("mark failed %d: %w", seqID, err)
	}
	return nil
}

// RetryAction returns a terminally failed action to pending with a fresh
// attempt budget. User-initiated.
func (db *DB) RetryAction(seqID int64) error {
	return db.withWriteLock(func() error {
		res, err := db.conn.Exec(`
			UPDATE action_queue
			SET status = ?, attempt_count = 0, next_attempt_at = NULL
			WHERE seq_id = ? AND status = ?`,
			string(models.StatusPending), seqID, string(models.StatusFailed))
		if err != nil {
			return fmt.Errorf("retry %d: %w", seqID, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("retry %d: no failed action with that sequence id", seqID)
		}
		return nil
	})
}

// AckAction acknowledges a terminally failed action, marking it done so it no
// longer blocks queue views. The failure reason is retained in last_error.
func (db *DB) AckAction(seqID int64) error {
	return db.withWriteLock(func() error {
		res, err := db.conn.Exec(`
			UPDATE action_queue SET status = ? WHERE seq_id = ? AND status = ?`,
			string(models.StatusDone), seqID, string(models.StatusFailed))
		if err != nil {
			return fmt.Errorf("ack %d: %w", seqID, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("ack %d: no failed action with that sequence id", seqID)
		}
		return nil
	})
}

// FindCreateAction returns the CREATE action targeting the given temporary
// identity regardless of status, or nil if none was ever queued. The drain
// uses it to distinguish a dependency on a failed create from a reference
// that nothing will ever resolve.
func (db *DB) FindCreateAction(tempID string) (*models.Action, error) {
	actions, err := db.queryActions(`
		SELECT seq_id, entity_kind, op, target_id, payload, enqueued_at,
		       attempt_count, status, last_error, next_attempt_at
		FROM action_queue WHERE op = ? AND target_id = ?
		ORDER BY seq_id ASC LIMIT 1`,
		string(models.OpCreate), tempID)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}
	return &actions[0], nil
}

// ActionsReferencing returns non-done actions whose target or dependent
// payload fields reference the given identity, in sequence order.
func (db *DB) ActionsReferencing(id string) ([]models.Action, error) {
	actions, err := db.queryActions(`
		SELECT seq_id, entity_kind, op, target_id, payload, enqueued_at,
		       attempt_count, status, last_error, next_attempt_at
		FROM action_queue WHERE status != ? ORDER BY seq_id ASC`,
		string(models.StatusDone))
	if err != nil {
		return nil, err
	}

	var refs []models.Action
	for _, a := range actions {
		if ActionReferences(a, id) {
			refs = append(refs, a)
		}
	}
	return refs, nil
}

// ActionReferences reports whether an action's target or any of its
// kind's dependent payload fields equals id.
func ActionReferences(a models.Action, id string) bool {
	if a.TargetID == id {
		return true
	}
	fields := models.DependentFields(a.Kind)
	if len(fields) == 0 {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal(a.Payload, &m); err != nil {
		return false
	}
	for _, f := range fields {
		if v, ok := m[f].(string); ok && v == id {
			return true
		}
	}
	return false
}

// CascadeFailTx marks every later non-done action referencing id as
// terminally failed. Used when the action that would have resolved id fails
// permanently: those references can never be satisfied.
func CascadeFailTx(tx *sql.Tx, afterSeq int64, id, reason string) (int64, error) {
	rows, err := tx.Query(`
		SELECT seq_id, entity_kind, op, target_id, payload, enqueued_at,
		       attempt_count, status, last_error, next_attempt_at
		FROM action_queue
		WHERE seq_id > ? AND status != ? ORDER BY seq_id ASC`,
		afterSeq, string(models.StatusDone))
	if err != nil {
		return 0, fmt.Errorf("cascade fail: %w", err)
	}
	actions, err := scanActions(rows)
	if err != nil {
		return 0, fmt.Errorf("cascade fail: %w", err)
	}

	var failed int64
	for _, a := range actions {
		if !ActionReferences(a, id) {
			continue
		}
		if err := MarkFailedTx(tx, a.SeqID, reason); err != nil {
			return failed, err
		}
		failed++
	}
	return failed, nil
}

func (db *DB) queryActions(query string, args ...any) ([]models.Action, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	return scanActions(rows)
}

func scanActions(rows *sql.Rows) ([]models.Action, error) {
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		var a models.Action
		var kind, op, payload, enqueuedAt string
		var status string
		var nextAttempt sql.NullString

		if err := rows.Scan(&a.SeqID, &kind, &op, &a.TargetID, &payload, &enqueuedAt,
			&a.AttemptCount, &status, &a.LastError, &nextAttempt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Kind = models.EntityKind(kind)
		a.Op = models.OpKind(op)
		a.Payload = json.RawMessage(payload)
		a.Status = models.ActionStatus(status)

		t, err := parseTimestamp(enqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", a.SeqID, err)
		}
		a.EnqueuedAt = t

		if nextAttempt.Valid {
			nt, err := parseTimestamp(nextAttempt.String)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", a.SeqID, err)
			}
			a.NextAttemptAt = &nt
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
