package models

import (
	"encoding/json"
	"time"
)

// EntityKind tags every record and queued action with the remote collection
// it belongs to. The string values double as remote endpoint path segments
// and as mirror-store kind keys.
type EntityKind string

const (
	KindOrders   EntityKind = "orders"
	KindClients  EntityKind = "clients"
	KindStock    EntityKind = "stock_items"
	KindPayments EntityKind = "payments"
)

// Kinds lists all entity kinds in a stable order.
var Kinds = []EntityKind{KindOrders, KindClients, KindStock, KindPayments}

// IsValidKind checks if an entity kind is known.
func IsValidKind(k EntityKind) bool {
	switch k {
	case KindOrders, KindClients, KindStock, KindPayments:
		return true
	}
	return false
}

// OpKind is the mutation operation carried by a queued action.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// IsValidOp checks if an operation kind is known.
func IsValidOp(op OpKind) bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ActionStatus is the replay state of a queued action.
//
//	pending   — waiting for the next drain pass
//	in_flight — dispatched to the server, outcome unknown
//	done      — confirmed by the server, never re-sent
//	failed    — terminal; stays visible until retried or acknowledged
type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusInFlight ActionStatus = "in_flight"
	StatusDone     ActionStatus = "done"
	StatusFailed   ActionStatus = "failed"
)

// dependentFields names, per entity kind, the payload fields whose value is
// another entity's identity and may need rewriting during a drain. The list
// is fixed per kind so the rewrite step never depends on caller-supplied
// field names.
var dependentFields = map[EntityKind][]string{
	KindOrders:   {"client_id"},
	KindPayments: {"order_id"},
}

// DependentFields returns the identity-bearing payload fields for a kind.
// Callers must not modify the returned slice.
func DependentFields(kind EntityKind) []string {
	return dependentFields[kind]
}

// OrderPayload is the wire payload for orders.
type OrderPayload struct {
	ClientID   string `json:"client_id,omitempty"`
	Reference  string `json:"reference"`
	TotalCents int64  `json:"total_cents"`
	Status     string `json:"status,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ClientPayload is the wire payload for clients.
type ClientPayload struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// StockItemPayload is the wire payload for stock items.
type StockItemPayload struct {
	Name           string `json:"name"`
	SKU            string `json:"sku"`
	QuantityOnHand int64  `json:"quantity_on_hand"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// PaymentPayload is the wire payload for payments.
type PaymentPayload struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method,omitempty"`
	PaidAt      string `json:"paid_at,omitempty"`
}

// Record is a mirror-store snapshot of an entity as last known to the device.
// Pending is true while any queued action for its identity, or for an
// identity it depends on, is unresolved; LastSyncedAt is nil while pending.
type Record struct {
	Kind         EntityKind      `json:"kind"`
	ID           string          `json:"id"`
	Data         json.RawMessage `json:"data"`
	Pending      bool            `json:"pending"`
	LastSyncedAt *time.Time      `json:"last_synced_at,omitempty"`
}

// Action is a queued mutation awaiting replay against the server. SeqID is
// assigned by the store and defines total replay order; actions are never
// reordered, only skipped (done) or retried.
type Action struct {
	SeqID         int64           `json:"seq_id"`
	Kind          EntityKind      `json:"entity_kind"`
	Op            OpKind          `json:"op"`
	TargetID      string          `json:"target_id"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	AttemptCount  int             `json:"attempt_count"`
	Status        ActionStatus    `json:"status"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
}

// Reconciliation maps a client-minted temporary identity to the permanent
// identity the server assigned when the CREATE was confirmed. Entries are
// immutable once recorded.
type Reconciliation struct {
	TempID     string     `json:"temp_id"`
	ServerID   string     `json:"server_id"`
	Kind       EntityKind `json:"entity_kind"`
	RecordedAt time.Time  `json:"recorded_at"`
}
