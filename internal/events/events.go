// Package events defines the notification payloads the engine emits and
// the publisher interface collaborators implement.
package events

// Topics the engine publishes to.
const (
	TopicSettlementCreated = "settlement_created"
	TopicSettlementDeleted = "settlement_deleted"
)

// Publisher delivers an event to interested collaborators. Publishing is
// fire-and-forget from the engine's point of view: failures are logged by
// the caller, never propagated into the ledger operation.
type Publisher interface {
	Publish(topic string, event any) error
}

// SettlementCreated is emitted after a settlement is recorded.
type SettlementCreated struct {
	SettlementID string  `json:"settlement_id"`
	GroupID      string  `json:"group_id"`
	Borrower     string  `json:"borrower"`
	BorrowerName string  `json:"borrower_name,omitempty"`
	Lender       string  `json:"lender"`
	LenderName   string  `json:"lender_name,omitempty"`
	Amount       float64 `json:"amount"`
	SettledAt    int64   `json:"settled_at"`
}

// SettlementDeleted is emitted after a settlement is deleted and its
// entries reversed.
type SettlementDeleted struct {
	SettlementID    string  `json:"settlement_id"`
	GroupID         string  `json:"group_id"`
	Borrower        string  `json:"borrower"`
	Lender          string  `json:"lender"`
	Amount          float64 `json:"amount"`
	UnsettledSplits int     `json:"unsettled_splits"`
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(string, any) error { return nil }
