package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the ledger exchange.
const (
	KindExpenseRecorded = "expense_recorded"
	KindCategoryDeleted = "category_deleted"
	KindImportReplaced  = "import_replaced"
)

// LedgerEvent is a lightweight notification of a ledger mutation. It
// carries ids only; consumers fetch the full records from the store.
type LedgerEvent struct {
	Kind          string    `json:"kind"`
	TransactionID int64     `json:"transactionId,omitempty"`
	CategoryID    string    `json:"categoryId,omitempty"`
	Removed       int64     `json:"removed,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewExpenseRecorded(transactionID int64) *LedgerEvent {
	return &LedgerEvent{Kind: KindExpenseRecorded, TransactionID: transactionID, Timestamp: time.Now()}
}

func NewCategoryDeleted(categoryID string, removed int64) *LedgerEvent {
	return &LedgerEvent{Kind: KindCategoryDeleted, CategoryID: categoryID, Removed: removed, Timestamp: time.Now()}
}

func NewImportReplaced() *LedgerEvent {
	return &LedgerEvent{Kind: KindImportReplaced, Timestamp: time.Now()}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
