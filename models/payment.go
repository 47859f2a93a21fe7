package models

import "github.com/shopspring/decimal"

// PaymentDateLayout is the DD/MM/YYYY layout used for payment and due dates.
const PaymentDateLayout = "02/01/2006"

// PaymentRecord is a user's record of having paid a bill. Title, category and
// amount are copied from the bill at payment time.
type PaymentRecord struct {
	ID          string          `json:"_id,omitempty"`
	BillsID     string          `json:"billsId"`
	Username    string          `json:"username"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	Email       string          `json:"email"`
	PaymentDate string          `json:"paymentDate"`
	Amount      decimal.Decimal `json:"amount"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
}

// ShortBillsID truncates the bill id to nine characters for display.
func (p PaymentRecord) ShortBillsID() string {
	if len(p.BillsID) > 9 {
		return p.BillsID[:9] + "..."
	}
	return p.BillsID
}

// PaymentUpdate carries the only fields of a PaymentRecord that may change
// after creation.
type PaymentUpdate struct {
	Username string `json:"username"`
	Address  string `json:"address"`
}

// PaymentRecordList is the envelope of GET /mybills/{email}.
type PaymentRecordList struct {
	MyBills []PaymentRecord `json:"myBills"`
}

// UpdateResult is the body of PUT /mybills/{id}.
type UpdateResult struct {
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult is the body of DELETE /mybills/{id}.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}
