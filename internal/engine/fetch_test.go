package engine

import (
	"encoding/json"
	"testing"

	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/models"
)

func putConfirmed(t *testing.T, database *db.DB, kind models.EntityKind, id, data string) {
	t.Helper()
	err := database.PutRecord(models.Record{
		Kind: kind,
		ID:   id,
		Data: json.RawMessage(data),
	})
	if err != nil {
		t.Fatalf("PutRecord %s/%s: %v", kind, id, err)
	}
}

func TestFetchMergesServerState(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	// Confirmed locally, edited on the server: server wins.
	putConfirmed(t, database, models.KindClients, "srv_1", `{"name":"Old"}`)
	fake.seed(models.KindClients, "srv_1", `{"name":"New"}`)

	// Pending local edit: the optimistic data survives the refresh.
	putPending(t, database, models.KindClients, "srv_2", `{"name":"Local edit"}`)
	fake.seed(models.KindClients, "srv_2", `{"name":"Server copy"}`)

	// Confirmed locally, gone on the server: dropped.
	putConfirmed(t, database, models.KindClients, "srv_3", `{"name":"Removed"}`)

	// New on the server: appears.
	fake.seed(models.KindClients, "srv_4", `{"name":"Fresh"}`)

	recs, err := eng.Fetch(models.KindClients)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	byID := make(map[string]models.Record, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}

	name := func(id string) string {
		rec, ok := byID[id]
		if !ok {
			return ""
		}
		var p models.ClientPayload
		json.Unmarshal(rec.Data, &p)
		return p.Name
	}

	if got := name("srv_1"); got != "New" {
		t.Errorf("srv_1: got %q, want server copy", got)
	}
	if got := name("srv_2"); got != "Local edit" {
		t.Errorf("srv_2: got %q, want local optimistic data", got)
	}
	if _, ok := byID["srv_3"]; ok {
		t.Error("srv_3 should be dropped after the server stopped listing it")
	}
	if got := name("srv_4"); got != "Fresh" {
		t.Errorf("srv_4: got %q, want server copy", got)
	}
	if byID["srv_1"].LastSyncedAt == nil {
		t.Error("refreshed record should carry a sync timestamp")
	}
}

func TestFetchDoesNotResurrectQueuedDelete(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	fake.seed(models.KindOrders, "srv_1", `{"reference":"CMD-1"}`)
	enqueue(t, database, models.KindOrders, models.OpDelete, "srv_1", "")

	recs, err := eng.Fetch(models.KindOrders)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	for _, rec := range recs {
		if rec.ID == "srv_1" {
			t.Error("server listing must not resurrect a record with a queued delete")
		}
	}
}

func TestFetchOfflineServesMirror(t *testing.T) {
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer database.Close()

	fake := newFakeRemote()
	eng := New(database, fake, Config{Online: func() bool { return false }})

	putPending(t, database, models.KindClients, "tmp_c", `{"name":"Dupont"}`)

	recs, err := eng.Fetch(models.KindClients)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "tmp_c" {
		t.Errorf("records: %+v", recs)
	}
	if len(fake.calls) != 0 {
		t.Errorf("offline fetch must not call the server: %v", fake.calls)
	}
}

func TestFetchDegradesWhenListFails(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	putConfirmed(t, database, models.KindStock, "srv_1", `{"sku":"X"}`)
	fake.failNext("list", string(models.KindStock), transientErr())

	recs, err := eng.Fetch(models.KindStock)
	if err != nil {
		t.Fatalf("Fetch should degrade to the mirror, got: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "srv_1" {
		t.Errorf("records: %+v", recs)
	}
}

func TestSnapshot(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_a", `{"name":""}`)
	enqueue(t, database, models.KindClients, models.OpCreate, "tmp_a", `{"name":""}`)
	putPending(t, database, models.KindClients, "tmp_b", `{"name":"B"}`)
	enqueue(t, database, models.KindClients, models.OpCreate, "tmp_b", `{"name":"B"}`)

	fake.failNext("create", "tmp_a", permanentErr())
	if _, err := eng.Drain(); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	st, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if st.Counts[models.StatusFailed] != 1 || st.Counts[models.StatusDone] != 1 {
		t.Errorf("counts: %+v", st.Counts)
	}
	if len(st.Failed) != 1 || st.Failed[0].TargetID != "tmp_a" {
		t.Errorf("failed actions: %+v", st.Failed)
	}
	if len(st.Reconciliations) != 1 || st.Reconciliations[0].TempID != "tmp_b" {
		t.Errorf("reconciliations: %+v", st.Reconciliations)
	}
}
