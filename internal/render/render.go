package render

import (
	"context"
	"time"

	"github.com/joseph-ayodele/proof-receipts/constants"
)

// Receipt is everything printed on a rendered receipt.
type Receipt struct {
	OperationID string
	Sender      string
	IssuedAt    time.Time
	Fields      map[constants.Field]string
}

// Renderer produces an encoded receipt image.
type Renderer interface {
	Render(ctx context.Context, r Receipt) ([]byte, error)
}
