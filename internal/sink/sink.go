// Package sink appends an audit row for every issued receipt.
package sink

import (
	"context"
	"time"
)

// OperationRecord is one audit row. Spreadsheet-style sinks write the first
// four columns only.
type OperationRecord struct {
	OperationID string            `json:"operation_id"`
	Sender      string            `json:"sender"`
	Timestamp   time.Time         `json:"timestamp"`
	ProofURL    string            `json:"proof_url"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Sink is an append-only destination for operation records.
type Sink interface {
	Append(ctx context.Context, rec OperationRecord) error
}
