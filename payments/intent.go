package payments

import (
	"math/rand/v2"
	"strconv"
	"time"

	"billpay/web/models"
)

// Bounds of a generated bills id: nine decimal digits.
const (
	MinBillsID = 100000000
	MaxBillsID = 999999999
)

// Intent identifies one payment attempt. A new one is drawn every time the
// payment dialog opens.
type Intent struct {
	BillsID     string
	PaymentDate string
}

// Generator draws intents. The zero value uses the wall clock and
// math/rand/v2.
type Generator struct {
	Now  func() time.Time
	Draw func(n int64) int64 // uniform in [0, n)
}

// NewIntent returns a fresh id in [MinBillsID, MaxBillsID] and today's date
// as DD/MM/YYYY.
func (g Generator) NewIntent() Intent {
	now := g.Now
	if now == nil {
		now = time.Now
	}
	draw := g.Draw
	if draw == nil {
		draw = rand.Int64N
	}

	id := MinBillsID + draw(MaxBillsID-MinBillsID+1)
	return Intent{
		BillsID:     strconv.FormatInt(id, 10),
		PaymentDate: now().Format(models.PaymentDateLayout),
	}
}
