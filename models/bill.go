package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend stores amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Bill is a payable utility charge from the backend catalogue. The client
// never writes bills.
type Bill struct {
	ID          string          `json:"_id"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Location    string          `json:"location"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

// DueDate renders the bill date as DD/MM/YYYY, falling back to the raw value
// when it cannot be parsed.
func (b Bill) DueDate() string {
	if b.Date == "" {
		return "N/A"
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, b.Date); err == nil {
			return t.Format(PaymentDateLayout)
		}
	}
	return b.Date
}
