package port

import (
	"context"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// CurrencyGateway looks up exchange rates from an external provider.
// Rate returns 1 for from == to without contacting the provider.
type CurrencyGateway interface {
	Rate(ctx context.Context, from, to string) (float64, error)

	// Rates returns base-relative rates for targets, or every known currency
	// when targets is empty.
	Rates(ctx context.Context, base string, targets []string) (map[string]float64, error)
}

// ReceiptExtraction is the structured data read off a receipt image
type ReceiptExtraction struct {
	Amount      float64  `json:"amount"`
	Currency    string   `json:"currency"`
	Date        string   `json:"date"`
	Merchant    string   `json:"merchant"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Items       []string `json:"items,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// ReceiptScanner extracts claim fields from a receipt image or PDF
type ReceiptScanner interface {
	Scan(ctx context.Context, data []byte, mimeType string) (*ReceiptExtraction, error)
}

// ClaimExporter renders claims into a downloadable report
type ClaimExporter interface {
	Export(ctx context.Context, claims []*entity.Claim) ([]byte, error)
}
