package engine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/netmon"
	"github.com/renaud/comptoir/internal/remote"
)

// fakeRemote is an in-memory server. Creates are idempotent on the client
// reference, mirroring the real API contract.
type fakeRemote struct {
	mu      sync.Mutex
	seq     int
	store   map[models.EntityKind]map[string]json.RawMessage
	refToID map[string]string
	failing map[string][]error // "op:target" -> queued errors, consumed in order
	calls   []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		store:   make(map[models.EntityKind]map[string]json.RawMessage),
		refToID: make(map[string]string),
		failing: make(map[string][]error),
	}
}

func (f *fakeRemote) failNext(op, target string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + target
	f.failing[key] = append(f.failing[key], errs...)
}

func (f *fakeRemote) takeErr(op, target string) error {
	key := op + ":" + target
	queue := f.failing[key]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.failing[key] = queue[1:]
	return err
}

func (f *fakeRemote) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRemote) seed(kind models.EntityKind, id string, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store[kind] == nil {
		f.store[kind] = make(map[string]json.RawMessage)
	}
	f.store[kind][id] = json.RawMessage(data)
}

func (f *fakeRemote) Create(kind models.EntityKind, clientRef string, payload json.RawMessage) (*remote.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create %s %s", kind, clientRef)

	if err := f.takeErr("create", clientRef); err != nil {
		return nil, err
	}
	if id, ok := f.refToID[clientRef]; ok {
		return &remote.CreateResult{ID: id, Data: f.store[kind][id]}, nil
	}

	f.seq++
	id := fmt.Sprintf("srv_%d", f.seq)
	if f.store[kind] == nil {
		f.store[kind] = make(map[string]json.RawMessage)
	}
	f.store[kind][id] = payload
	f.refToID[clientRef] = id
	return &remote.CreateResult{ID: id, Data: payload}, nil
}

func (f *fakeRemote) Update(kind models.EntityKind, id string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update %s %s", kind, id)

	if err := f.takeErr("update", id); err != nil {
		return err
	}
	if f.store[kind] == nil || f.store[kind][id] == nil {
		return fmt.Errorf("%w: no %s %s", remote.ErrNotFound, kind, id)
	}
	f.store[kind][id] = payload
	return nil
}

func (f *fakeRemote) Delete(kind models.EntityKind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete %s %s", kind, id)

	if err := f.takeErr("delete", id); err != nil {
		return err
	}
	if f.store[kind] == nil || f.store[kind][id] == nil {
		return fmt.Errorf("%w: no %s %s", remote.ErrNotFound, kind, id)
	}
	delete(f.store[kind], id)
	return nil
}

func (f *fakeRemote) List(kind models.EntityKind) ([]remote.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list %s", kind)

	if err := f.takeErr("list", string(kind)); err != nil {
		return nil, err
	}
	var out []remote.Entity
	for id, data := range f.store[kind] {
		out = append(out, remote.Entity{ID: id, Data: data})
	}
	return out, nil
}

func (f *fakeRemote) LookupByRef(kind models.EntityKind, clientRef string) (*remote.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("lookup %s %s", kind, clientRef)

	if err := f.takeErr("lookup", clientRef); err != nil {
		return nil, err
	}
	id, ok := f.refToID[clientRef]
	if !ok {
		return nil, nil
	}
	return &remote.Entity{ID: id, Data: f.store[kind][id]}, nil
}

func transientErr() error {
	return &remote.APIError{Code: "unavailable", Message: "try later", Status: 503}
}

func permanentErr() error {
	return &remote.APIError{Code: "validation_error", Message: "name required", Status: 422}
}

// clock is a controllable time source for backoff tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupEngine(t *testing.T) (*Engine, *fakeRemote, *db.DB, *clock) {
	t.Helper()
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	fake := newFakeRemote()
	clk := &clock{now: time.Now()}
	eng := New(database, fake, Config{
		RetryCeiling: 3,
		BackoffBase:  2 * time.Second,
		BackoffMax:   time.Minute,
		Now:          clk.Now,
	})
	return eng, fake, database, clk
}

func enqueue(t *testing.T, database *db.DB, kind models.EntityKind, op models.OpKind, target, payload string) int64 {
	t.Helper()
	var data json.RawMessage
	if payload != "" {
		data = json.RawMessage(payload)
	}
	seqID, err := database.EnqueueAction(kind, op, target, data)
	if err != nil {
		t.Fatalf("enqueue %s %s %s: %v", op, kind, target, err)
	}
	return seqID
}

func putPending(t *testing.T, database *db.DB, kind models.EntityKind, id, data string) {
	t.Helper()
	err := database.PutRecord(models.Record{
		Kind:    kind,
		ID:      id,
		Data:    json.RawMessage(data),
		Pending: true,
	})
	if err != nil {
		t.Fatalf("PutRecord %s/%s: %v", kind, id, err)
	}
}

func actionStatus(t *testing.T, database *db.DB, seqID int64) models.ActionStatus {
	t.Helper()
	a, err := database.GetAction(seqID)
	if err != nil {
		t.Fatalf("GetAction %d: %v", seqID, err)
	}
	if a == nil {
		t.Fatalf("action %d not found", seqID)
	}
	return a.Status
}

func TestDrainConfirmsInOrderAndRewritesIdentities(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	// Offline session: client, then an order for that client, then a payment
	// for that order — a chain of forward references.
	putPending(t, database, models.KindClients, "tmp_c", `{"name":"Dupont"}`)
	clientSeq := enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":"Dupont"}`)
	putPending(t, database, models.KindOrders, "tmp_o", `{"client_id":"tmp_c","reference":"CMD-1","total_cents":4250}`)
	orderSeq := enqueue(t, database, models.KindOrders, models.OpCreate, "tmp_o", `{"client_id":"tmp_c","reference":"CMD-1","total_cents":4250}`)
	putPending(t, database, models.KindPayments, "tmp_p", `{"order_id":"tmp_o","amount_cents":4250}`)
	paymentSeq := enqueue(t, database, models.KindPayments, models.OpCreate, "tmp_p", `{"order_id":"tmp_o","amount_cents":4250}`)

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Completed != 3 || rep.Failed != 0 {
		t.Fatalf("report: %+v", rep)
	}

	for _, seqID := range []int64{clientSeq, orderSeq, paymentSeq} {
		if got := actionStatus(t, database, seqID); got != models.StatusDone {
			t.Errorf("action %d: got %s, want done", seqID, got)
		}
	}

	// Creates were dispatched in sequence order.
	wantCalls := []string{
		"create clients tmp_c",
		"create orders tmp_o",
		"create payments tmp_p",
	}
	if len(fake.calls) != len(wantCalls) {
		t.Fatalf("calls: %v", fake.calls)
	}
	for i, want := range wantCalls {
		if fake.calls[i] != want {
			t.Errorf("call %d: got %q, want %q", i, fake.calls[i], want)
		}
	}

	// The order reached the server with the client's real identity.
	var sent models.OrderPayload
	orderID := fake.refToID["tmp_o"]
	json.Unmarshal(fake.store[models.KindOrders][orderID], &sent)
	if sent.ClientID != fake.refToID["tmp_c"] {
		t.Errorf("order sent with client_id %q, want %q", sent.ClientID, fake.refToID["tmp_c"])
	}

	// Mirror records were rekeyed, rewritten, and marked synced.
	if rec, _ := database.GetRecord(models.KindClients, "tmp_c"); rec != nil {
		t.Error("client record still under temporary identity")
	}
	rec, err := database.GetRecord(models.KindOrders, orderID)
	if err != nil || rec == nil {
		t.Fatalf("order record missing under %s: %v", orderID, err)
	}
	var mirrored models.OrderPayload
	json.Unmarshal(rec.Data, &mirrored)
	if mirrored.ClientID != fake.refToID["tmp_c"] {
		t.Errorf("mirror order client_id: %q", mirrored.ClientID)
	}
	if rec.Pending {
		t.Error("order record should no longer be pending")
	}
	if rec.LastSyncedAt == nil {
		t.Error("order record should be stamped synced")
	}

	// The reconciliation map has all three mappings.
	entries, err := database.ListReconciliations()
	if err != nil {
		t.Fatalf("ListReconciliations failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d reconciliations, want 3", len(entries))
	}
}

func TestRedrainIsIdempotent(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_c", `{"name":"Dupont"}`)
	enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":"Dupont"}`)

	if _, err := eng.Drain(); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	sent := len(fake.calls)
	before, _ := database.ListReconciliations()

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("second Drain failed: %v", err)
	}
	if rep.Processed != 0 {
		t.Errorf("second drain processed %d actions", rep.Processed)
	}
	if len(fake.calls) != sent {
		t.Errorf("second drain re-sent: %v", fake.calls[sent:])
	}
	after, _ := database.ListReconciliations()
	if len(after) != len(before) {
		t.Error("second drain changed the reconciliation map")
	}
}

func TestUpdateAfterUnconfirmedCreate(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_c", `{"name":"Dupont"}`)
	enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":"Dupont"}`)
	enqueue(t, database, models.KindClients, models.OpUpdate, "tmp_c", `{"name":"Dupont & Fils"}`)

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Completed != 2 {
		t.Fatalf("report: %+v", rep)
	}

	serverID := fake.refToID["tmp_c"]
	if fake.calls[1] != "update clients "+serverID {
		t.Errorf("update dispatched as %q, want target %s", fake.calls[1], serverID)
	}
	var p models.ClientPayload
	json.Unmarshal(fake.store[models.KindClients][serverID], &p)
	if p.Name != "Dupont & Fils" {
		t.Errorf("server state: %q", p.Name)
	}
}

func TestInFlightCreateRecoveredByLookup(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_c", `{"name":"A"}`)
	seqID := enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":"A"}`)

	// Simulate a crash after the send was accepted: action in_flight, server
	// already holds the entity under the correlation token.
	err := database.WithTx(func(tx *sql.Tx) error {
		return db.MarkInFlightTx(tx, seqID, "tmp_c", json.RawMessage(`{"name":"A"}`))
	})
	if err != nil {
		t.Fatalf("MarkInFlightTx failed: %v", err)
	}
	fake.seed(models.KindClients, "srv_9", `{"name":"A"}`)
	fake.refToID["tmp_c"] = "srv_9"

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Completed != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if got := actionStatus(t, database, seqID); got != models.StatusDone {
		t.Errorf("status: got %s, want done", got)
	}

	// No duplicate create was sent.
	for _, call := range fake.calls {
		if call == "create clients tmp_c" {
			t.Error("recovered create must not be re-sent")
		}
	}

	resolved, _ := database.ResolveIdentity("tmp_c")
	if resolved != "srv_9" {
		t.Errorf("mapping: got %q, want srv_9", resolved)
	}
}

func TestInFlightCreateNeverReachedServerIsResent(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_c", `{"name":"A"}`)
	seqID := enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":"A"}`)
	err := database.WithTx(func(tx *sql.Tx) error {
		return db.MarkInFlightTx(tx, seqID, "tmp_c", json.RawMessage(`{"name":"A"}`))
	})
	if err != nil {
		t.Fatalf("MarkInFlightTx failed: %v", err)
	}

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Completed != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if len(fake.calls) != 2 || fake.calls[0] != "lookup clients tmp_c" || fake.calls[1] != "create clients tmp_c" {
		t.Errorf("calls: %v", fake.calls)
	}
}

func TestTransientFailureRequeuesWithBackoff(t *testing.T) {
	eng, fake, database, clk := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_a", `{"name":"A"}`)
	first := enqueue(t, database, models.KindClients, models.OpCreate, "tmp_a", `{"name":"A"}`)
	putPending(t, database, models.KindClients, "tmp_b", `{"name":"B"}`)
	second := enqueue(t, database, models.KindClients, models.OpCreate, "tmp_b", `{"name":"B"}`)

	fake.failNext("create", "tmp_a", transientErr())

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Requeued != 1 || !rep.Paused {
		t.Fatalf("report: %+v", rep)
	}

	a, _ := database.GetAction(first)
	if a.Status != models.StatusPending || a.AttemptCount != 1 {
		t.Errorf("first action: status %s, attempts %d", a.Status, a.AttemptCount)
	}
	if a.NextAttemptAt == nil || !a.NextAttemptAt.After(clk.Now()) {
		t.Error("backoff window not scheduled")
	}

	// The later action must not overtake the failed one.
	if got := actionStatus(t, database, second); got != models.StatusPending {
		t.Errorf("second action: got %s, want pending", got)
	}
	if len(fake.calls) != 1 {
		t.Errorf("calls: %v", fake.calls)
	}

	// Before the window opens, nothing is sent.
	rep, err = eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !rep.Paused || len(fake.calls) != 1 {
		t.Errorf("premature retry: report %+v, calls %v", rep, fake.calls)
	}

	// After the window, both drain in order.
	clk.Advance(5 * time.Second)
	rep, err = eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Completed != 2 {
		t.Fatalf("report: %+v", rep)
	}
	if actionStatus(t, database, first) != models.StatusDone ||
		actionStatus(t, database, second) != models.StatusDone {
		t.Error("both actions should be done")
	}
}

func TestRetryCeilingFailsTerminally(t *testing.T) {
	eng, fake, database, clk := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_a", `{"name":"A"}`)
	seqID := enqueue(t, database, models.KindClients, models.OpCreate, "tmp_a", `{"name":"A"}`)
	fake.failNext("create", "tmp_a", transientErr(), transientErr(), transientErr())

	for i := 0; i < 3; i++ {
		if _, err := eng.Drain(); err != nil {
			t.Fatalf("Drain %d failed: %v", i, err)
		}
		clk.Advance(time.Minute)
	}

	a, _ := database.GetAction(seqID)
	if a.Status != models.StatusFailed {
		t.Fatalf("status: got %s, want failed", a.Status)
	}
	if a.LastError == "" {
		t.Error("terminal failure should record a reason")
	}
}

func TestPermanentFailureCascades(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_c", `{"name":""}`)
	clientSeq := enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":""}`)
	putPending(t, database, models.KindOrders, "tmp_o", `{"client_id":"tmp_c","reference":"CMD-1"}`)
	orderSeq := enqueue(t, database, models.KindOrders, models.OpCreate, "tmp_o", `{"client_id":"tmp_c","reference":"CMD-1"}`)
	putPending(t, database, models.KindStock, "tmp_s", `{"sku":"X","name":"Widget"}`)
	stockSeq := enqueue(t, database, models.KindStock, models.OpCreate, "tmp_s", `{"sku":"X","name":"Widget"}`)

	fake.failNext("create", "tmp_c", permanentErr())

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Failed != 1 || rep.Cascaded != 1 {
		t.Fatalf("report: %+v", rep)
	}

	if actionStatus(t, database, clientSeq) != models.StatusFailed {
		t.Error("rejected create should be failed")
	}
	if actionStatus(t, database, orderSeq) != models.StatusFailed {
		t.Error("dependent order should cascade to failed")
	}
	// Unrelated work continues past the failure.
	if actionStatus(t, database, stockSeq) != models.StatusDone {
		t.Error("unrelated create should still complete")
	}
}

func TestUserRetryAfterDependencyFailure(t *testing.T) {
	eng, fake, database, _ := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_c", `{"name":""}`)
	enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":""}`)
	putPending(t, database, models.KindOrders, "tmp_o", `{"client_id":"tmp_c","reference":"CMD-1"}`)
	orderSeq := enqueue(t, database, models.KindOrders, models.OpCreate, "tmp_o", `{"client_id":"tmp_c","reference":"CMD-1"}`)

	fake.failNext("create", "tmp_c", permanentErr())
	if _, err := eng.Drain(); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	// Retrying only the dependent cannot succeed while the create stays
	// failed; it fails again without halting the drain.
	if err := database.RetryAction(orderSeq); err != nil {
		t.Fatalf("RetryAction failed: %v", err)
	}
	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Halted {
		t.Error("dependency-on-failed-create must not halt the drain")
	}
	if actionStatus(t, database, orderSeq) != models.StatusFailed {
		t.Error("order should fail again")
	}
}

func TestOrderingViolationHaltsDrain(t *testing.T) {
	eng, _, database, _ := setupEngine(t)

	// An order referencing a temporary identity no CREATE ever minted.
	putPending(t, database, models.KindOrders, "tmp_o", `{"client_id":"tmp_ghost","reference":"CMD-1"}`)
	orderSeq := enqueue(t, database, models.KindOrders, models.OpCreate, "tmp_o", `{"client_id":"tmp_ghost","reference":"CMD-1"}`)
	putPending(t, database, models.KindStock, "tmp_s", `{"sku":"X"}`)
	stockSeq := enqueue(t, database, models.KindStock, models.OpCreate, "tmp_s", `{"sku":"X"}`)

	rep, err := eng.Drain()
	if !errors.Is(err, ErrOrderingViolation) {
		t.Fatalf("err: %v, want ErrOrderingViolation", err)
	}
	if !rep.Halted {
		t.Error("report should be marked halted")
	}
	if actionStatus(t, database, orderSeq) != models.StatusFailed {
		t.Error("violating action should be failed")
	}
	// Nothing after the violation was sent.
	if actionStatus(t, database, stockSeq) != models.StatusPending {
		t.Error("drain must halt before later actions")
	}
}

func TestDeleteAlreadyGoneIsSuccess(t *testing.T) {
	eng, _, database, _ := setupEngine(t)

	seqID := enqueue(t, database, models.KindOrders, models.OpDelete, "srv_9", "")

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if rep.Completed != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if actionStatus(t, database, seqID) != models.StatusDone {
		t.Error("delete of an absent entity should complete")
	}
}

func TestDrainOfflinePauses(t *testing.T) {
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer database.Close()

	fake := newFakeRemote()
	eng := New(database, fake, Config{Online: func() bool { return false }})

	enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":"A"}`)

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !rep.Paused || rep.Processed != 0 {
		t.Errorf("report: %+v", rep)
	}
	if len(fake.calls) != 0 {
		t.Errorf("offline drain must not call the server: %v", fake.calls)
	}
}

func TestDrainReentrancyDefers(t *testing.T) {
	eng, _, _, _ := setupEngine(t)

	eng.mu.Lock()
	eng.draining = true
	eng.mu.Unlock()

	rep, err := eng.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !rep.Deferred {
		t.Error("concurrent drain should defer")
	}

	eng.mu.Lock()
	if !eng.rerun {
		t.Error("re-run flag should be set")
	}
	eng.draining = false
	eng.rerun = false
	eng.mu.Unlock()
}

func TestWatchDrainsOnOnlineTransition(t *testing.T) {
	eng, _, database, _ := setupEngine(t)

	putPending(t, database, models.KindClients, "tmp_c", `{"name":"A"}`)
	seqID := enqueue(t, database, models.KindClients, models.OpCreate, "tmp_c", `{"name":"A"}`)

	events := make(chan netmon.Event, 1)
	stop := make(chan struct{})
	defer close(stop)
	eng.Watch(events, stop)

	events <- netmon.Event{Online: true, At: time.Now()}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if actionStatus(t, database, seqID) == models.StatusDone {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("online transition did not drain the queue")
}

func TestBackoffGrowth(t *testing.T) {
	eng := New(nil, nil, Config{BackoffBase: 2 * time.Second, BackoffMax: 30 * time.Second})

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, c := range cases {
		if got := eng.Backoff(c.attempt); got != c.want {
			t.Errorf("Backoff(%d): got %v, want %v", c.attempt, got, c.want)
		}
	}
}
