package normalization

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// RawTransaction is the canonical input record as produced by merchants.
// Amount fields accept both JSON numbers and numeric strings.
type RawTransaction struct {
	ID             RecordID           `json:"id"`
	Datetime       string             `json:"datetime"`
	URL            string             `json:"url"`
	OrderStatus    string             `json:"order_status"`
	PaymentMethods []RawPaymentMethod `json:"payment_methods"`
	Price          RawPrice           `json:"price"`
	Products       []RawProduct       `json:"products"`
}

// RecordID is a record id that may arrive as a JSON string or number.
// Any other JSON value decodes to the empty id, which the normalizer
// replaces with a derived one.
type RecordID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	*id = ""
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RecordID(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*id = RecordID(num.String())
	}
	return nil
}

// RawPaymentMethod is one payment instrument in an input record.
type RawPaymentMethod struct {
	Type              string              `json:"type"`
	Brand             string              `json:"brand"`
	LastFour          string              `json:"last_four"`
	TransactionAmount decimal.NullDecimal `json:"transaction_amount"`
}

// RawPrice holds order-level amounts. Total is kept raw so that an
// unparseable value is reported as such instead of failing the decode.
type RawPrice struct {
	SubTotal decimal.NullDecimal `json:"sub_total"`
	Total    json.RawMessage     `json:"total"`
	Currency string              `json:"currency"`
}

// RawProduct is one line item in an input record.
type RawProduct struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    RawProductPrice `json:"price"`
}

// RawProductPrice holds line-item amounts.
type RawProductPrice struct {
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	SubTotal  decimal.NullDecimal `json:"sub_total"`
	Total     decimal.NullDecimal `json:"total"`
}

// CorpusDocument is one per-customer file of the transaction corpus.
type CorpusDocument struct {
	CustomerID   string            `json:"customer_id"`
	CustomerType string            `json:"customer_type"`
	Transactions []json.RawMessage `json:"transactions"`
}
