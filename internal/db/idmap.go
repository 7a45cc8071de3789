package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/renaud/comptoir/internal/identity"
	"github.com/renaud/comptoir/internal/models"
)

// RecordReconciliationTx records a temporary→server identity mapping. Called
// by the sync engine exactly once, immediately after a confirmed CREATE.
// Entries are immutable: recording a different server id for a known
// temporary identity is an error.
func RecordReconciliationTx(tx *sql.Tx, tempID, serverID string, kind models.EntityKind) error {
	temp, err := identity.Parse(tempID)
	if err != nil {
		return fmt.Errorf("record reconciliation: %w", err)
	}
	if !temp.IsTemporary() {
		return fmt.Errorf("record reconciliation: %q is not a temporary identity", tempID)
	}
	if serverID == "" {
		return fmt.Errorf("record reconciliation %s: empty server id", tempID)
	}

	var existing string
	err = tx.QueryRow(`SELECT server_id FROM id_map WHERE temp_id = ?`, tempID).Scan(&existing)
	if err == nil {
		if existing != serverID {
			return fmt.Errorf("record reconciliation %s: already mapped to %s, refusing %s",
				tempID, existing, serverID)
		}
		return nil // idempotent re-record of the same mapping
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("record reconciliation %s: %w", tempID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO id_map (temp_id, server_id, entity_kind, recorded_at)
		VALUES (?, ?, ?, ?)`,
		tempID, serverID, string(kind), formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("record reconciliation %s: %w", tempID, err)
	}
	return nil
}

// ResolveIdentity returns the server identity mapped to id, or id unchanged
// when no mapping exists. Server identities pass through untouched.
func (db *DB) ResolveIdentity(id string) (string, error) {
	return resolveIdentity(db.conn, id)
}

// queryRower covers *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func resolveIdentity(q queryRower, id string) (string, error) {
	parsed, err := identity.Parse(id)
	if err != nil {
		return "", fmt.Errorf("resolve: %w", err)
	}
	if !parsed.IsTemporary() {
		return id, nil
	}

	var serverID string
	err = q.QueryRow(`SELECT server_id FROM id_map WHERE temp_id = ?`, id).Scan(&serverID)
	if err == sql.ErrNoRows {
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", id, err)
	}
	return serverID, nil
}

// ListReconciliations returns all recorded mappings, most recent first.
func (db *DB) ListReconciliations() ([]models.Reconciliation, error) {
	rows, err := db.conn.Query(`
		SELECT temp_id, server_id, entity_kind, recorded_at
		FROM id_map ORDER BY recorded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	defer rows.Close()

	var entries []models.Reconciliation
	for rows.Next() {
		var e models.Reconciliation
		var kind, recordedAt string
		if err := rows.Scan(&e.TempID, &e.ServerID, &kind, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation: %w", err)
		}
		e.Kind = models.EntityKind(kind)
		t, err := parseTimestamp(recordedAt)
		if err != nil {
			return nil, fmt.Errorf("reconciliation %s: %w", e.TempID, err)
		}
		e.RecordedAt = t
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneReconciliations deletes mappings whose temporary identity is no longer
// referenced by any pending, in_flight, or failed action. Returns the number
// of entries removed. Entries with live references are never pruned.
func (db *DB) PruneReconciliations() (int64, error) {
	entries, err := db.ListReconciliations()
	if err != nil {
		return 0, err
	}

	var pruned int64
	err = db.withWriteLock(func() error {
		for _, e := range entries {
			refs, err := db.ActionsReferencing(e.TempID)
			if err != nil {
				return err
			}
			if len(refs) > 0 {
				continue
			}
			if _, err := db.conn.Exec(`DELETE FROM id_map WHERE temp_id = ?`, e.TempID); err != nil {
				return fmt.Errorf("prune %s: %w", e.TempID, err)
			}
			pruned++
		}
		return nil
	})
	return pruned, err
}
