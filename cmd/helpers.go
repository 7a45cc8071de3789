package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/renaud/comptoir/internal/config"
	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/engine"
	"github.com/renaud/comptoir/internal/identity"
	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/remote"
)

// openDB opens the workspace database, failing with a hint when uninitialized.
func openDB() (*db.DB, error) {
	return db.Open(getBaseDir())
}

// newRemote builds the API client from stored credentials and config.
func newRemote() (*remote.Client, error) {
	deviceID, err := config.GetDeviceID()
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}
	return remote.New(config.GetServerURL(), config.GetAPIKey(), deviceID), nil
}

// newEngine wires the sync engine over the given database. The online check
// is a live health probe so a drain started offline degrades immediately.
func newEngine(database *db.DB) (*engine.Engine, *remote.Client, error) {
	client, err := newRemote()
	if err != nil {
		return nil, nil, err
	}
	eng := engine.New(database, client, engine.Config{
		RetryCeiling: config.GetRetryCeiling(),
		BackoffBase:  config.GetBackoffBase(),
		BackoffMax:   config.GetBackoffMax(),
		Online:       func() bool { return client.HealthCheck() == nil },
	})
	return eng, client, nil
}

// enqueueCreate applies an optimistic create locally and queues it: a fresh
// temporary identity, a pending mirror record, and a CREATE action, committed
// together.
func enqueueCreate(database *db.DB, kind models.EntityKind, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	tempID := identity.NewTemporary().String()
	err = database.WithTx(func(tx *sql.Tx) error {
		rec := models.Record{Kind: kind, ID: tempID, Data: data, Pending: true}
		if err := db.PutRecordTx(tx, rec); err != nil {
			return err
		}
		_, err := db.EnqueueActionTx(tx, kind, models.OpCreate, tempID, data)
		return err
	})
	if err != nil {
		return "", err
	}
	return tempID, nil
}

// enqueueUpdate merges changed fields into the mirror record and queues an
// UPDATE carrying the full new payload.
func enqueueUpdate(database *db.DB, kind models.EntityKind, id string, merge func(data json.RawMessage) (json.RawMessage, error)) error {
	rec, err := database.GetRecord(kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no %s with id %s", kind, id)
	}

	data, err := merge(rec.Data)
	if err != nil {
		return err
	}

	return database.WithTx(func(tx *sql.Tx) error {
		rec.Data = data
		rec.Pending = true
		rec.LastSyncedAt = nil
		if err := db.PutRecordTx(tx, *rec); err != nil {
			return err
		}
		_, err := db.EnqueueActionTx(tx, kind, models.OpUpdate, id, data)
		return err
	})
}

// enqueueDelete drops the mirror record and queues a DELETE.
func enqueueDelete(database *db.DB, kind models.EntityKind, id string) error {
	rec, err := database.GetRecord(kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no %s with id %s", kind, id)
	}

	return database.WithTx(func(tx *sql.Tx) error {
		if err := db.DeleteRecordTx(tx, kind, id); err != nil {
			return err
		}
		_, err := db.EnqueueActionTx(tx, kind, models.OpDelete, id, nil)
		return err
	})
}

// drainAfterMutation runs a quick drain when the server is reachable.
// Runs synchronously with a short timeout; errors are logged, not returned.
// The mutation is already durable, so nothing is lost by skipping.
func drainAfterMutation(database *db.DB) {
	client, err := newRemote()
	if err != nil {
		slog.Debug("post-mutation drain: remote", "err", err)
		return
	}
	client.HTTP.Timeout = 5 * time.Second

	if client.HealthCheck() != nil {
		return // offline; the next sync or monitor tick picks it up
	}

	eng := engine.New(database, client, engine.Config{
		RetryCeiling: config.GetRetryCeiling(),
		BackoffBase:  config.GetBackoffBase(),
		BackoffMax:   config.GetBackoffMax(),
	})
	if _, err := eng.Drain(); err != nil {
		slog.Debug("post-mutation drain", "err", err)
	}
}

// mergeJSON unmarshals data into dst (a payload struct pointer), lets apply
// mutate it, and marshals it back.
func mergeJSON[T any](data json.RawMessage, apply func(*T)) (json.RawMessage, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	apply(&p)
	out, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return out, nil
}
