package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/renaud/comptoir/internal/models"
)

// PutRecord inserts or replaces a mirror record.
func (db *DB) PutRecord(rec models.Record) error {
	return db.withWriteLock(func() error {
		return putRecord(db.conn, rec)
	})
}

// PutRecordTx is PutRecord within an existing transaction.
func PutRecordTx(tx *sql.Tx, rec models.Record) error {
	return putRecord(tx, rec)
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func putRecord(e execer, rec models.Record) error {
	if !models.IsValidKind(rec.Kind) {
		return fmt.Errorf("put record: invalid kind %q", rec.Kind)
	}
	if rec.ID == "" {
		return fmt.Errorf("put record: empty id")
	}
	if rec.Data == nil {
		return fmt.Errorf("put record %s/%s: nil data", rec.Kind, rec.ID)
	}

	var syncedAt any
	if rec.LastSyncedAt != nil {
		syncedAt = formatTimestamp(*rec.LastSyncedAt)
	}
	pending := 0
	if rec.Pending {
		pending = 1
	}

	_, err := e.Exec(`
		INSERT OR REPLACE INTO records (kind, id, data, pending, last_synced_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(rec.Kind), rec.ID, string(rec.Data), pending, syncedAt)
	if err != nil {
		return fmt.Errorf("put record %s/%s: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

// GetRecord returns a mirror record, or nil if not present.
func (db *DB) GetRecord(kind models.EntityKind, id string) (*models.Record, error) {
	row := db.conn.QueryRow(`
		SELECT kind, id, data, pending, last_synced_at
		FROM records WHERE kind = ? AND id = ?`, string(kind), id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", kind, id, err)
	}
	return rec, nil
}

// DeleteRecord removes a mirror record. No-op if absent.
func (db *DB) DeleteRecord(kind models.EntityKind, id string) error {
	return db.withWriteLock(func() error {
		return DeleteRecordTx(db.conn, kind, id)
	})
}

// DeleteRecordTx removes a mirror record within an existing transaction (or
// directly on the connection).
func DeleteRecordTx(e execer, kind models.EntityKind, id string) error {
	if _, err := e.Exec(`DELETE FROM records WHERE kind = ? AND id = ?`, string(kind), id); err != nil {
		return fmt.Errorf("delete record %s/%s: %w", kind, id, err)
	}
	return nil
}

// ListByKind returns all mirror records of a kind, pending first, then by id.
func (db *DB) ListByKind(kind models.EntityKind) ([]models.Record, error) {
	rows, err := db.conn.Query(`
		SELECT kind, id, data, pending, last_synced_at
		FROM records WHERE kind = ?
		ORDER BY pending DESC, id ASC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var recs []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// SetRecordSyncedTx clears the pending flag and stamps last_synced_at.
func SetRecordSyncedTx(tx *sql.Tx, kind models.EntityKind, id string, syncedAt time.Time) error {
	_, err := tx.Exec(`
		UPDATE records SET pending = 0, last_synced_at = ?
		WHERE kind = ? AND id = ?`,
		formatTimestamp(syncedAt), string(kind), id)
	if err != nil {
		return fmt.Errorf("mark synced %s/%s: %w", kind, id, err)
	}
	return nil
}

// RekeyRecordTx moves a mirror record from its temporary identity to the
// server-assigned one: the old key is deleted and the row reinserted under
// the new key in the same transaction, so readers never observe a gap.
func RekeyRecordTx(tx *sql.Tx, kind models.EntityKind, oldID, newID string) error {
	var data string
	var pending int
	var syncedAt sql.NullString
	err := tx.QueryRow(`
		SELECT data, pending, last_synced_at FROM records
		WHERE kind = ? AND id = ?`, string(kind), oldID).Scan(&data, &pending, &syncedAt)
	if err == sql.ErrNoRows {
		return nil // optimistic record already gone; nothing to move
	}
	if err != nil {
		return fmt.Errorf("rekey %s/%s: %w", kind, oldID, err)
	}

	if _, err := tx.Exec(`DELETE FROM records WHERE kind = ? AND id = ?`, string(kind), oldID); err != nil {
		return fmt.Errorf("rekey %s/%s: delete old: %w", kind, oldID, err)
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO records (kind, id, data, pending, last_synced_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(kind), newID, data, pending, nullStringArg(syncedAt))
	if err != nil {
		return fmt.Errorf("rekey %s/%s -> %s: %w", kind, oldID, newID, err)
	}
	return nil
}

// RewriteRecordRefsTx replaces oldID with newID in every dependent field of
// every mirror record. Part of identity replacement: records referencing a
// reconciled temporary identity are rewritten, never left stale.
func RewriteRecordRefsTx(tx *sql.Tx, oldID, newID string) error {
	for _, kind := range models.Kinds {
		fields := models.DependentFields(kind)
		if len(fields) == 0 {
			continue
		}
		for _, field := range fields {
			rows, err := tx.Query(`
				SELECT id, data FROM records
				WHERE kind = ? AND json_extract(data, '$.' || ?) = ?`,
				string(kind), field, oldID)
			if err != nil {
				return fmt.Errorf("rewrite refs %s.%s: %w", kind, field, err)
			}

			type hit struct {
				id   string
				data string
			}
			var hits []hit
			for rows.Next() {
				var h hit
				if err := rows.Scan(&h.id, &h.data); err != nil {
					rows.Close()
					return fmt.Errorf("rewrite refs %s.%s: scan: %w", kind, field, err)
				}
				hits = append(hits, h)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return err
			}
			rows.Close()

			for _, h := range hits {
				rewritten, err := rewriteJSONField([]byte(h.data), field, oldID, newID)
				if err != nil {
					return fmt.Errorf("rewrite refs %s/%s: %w", kind, h.id, err)
				}
				if _, err := tx.Exec(`UPDATE records SET data = ? WHERE kind = ? AND id = ?`,
					string(rewritten), string(kind), h.id); err != nil {
					return fmt.Errorf("rewrite refs %s/%s: %w", kind, h.id, err)
				}
			}
		}
	}
	return nil
}

// rewriteJSONField replaces the value of field with newVal if it currently
// equals oldVal.
func rewriteJSONField(data []byte, field, oldVal, newVal string) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if v, ok := m[field].(string); ok && v == oldVal {
		m[field] = newVal
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return out, nil
}

func nullStringArg(s sql.NullString) any {
	if s.Valid {
		return s.String
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var rec models.Record
	var kind, data string
	var pending int
	var syncedAt sql.NullString

	if err := s.Scan(&kind, &rec.ID, &data, &pending, &syncedAt); err != nil {
		return nil, err
	}
	rec.Kind = models.EntityKind(kind)
	rec.Data = json.RawMessage(data)
	rec.Pending = pending != 0
	if syncedAt.Valid {
		t, err := parseTimestamp(syncedAt.String)
		if err != nil {
			return nil, err
		}
		rec.LastSyncedAt = &t
	}
	return &rec, nil
}
