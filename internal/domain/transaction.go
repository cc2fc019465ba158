package domain

import (
	"sort"
	"time"
)

// OrderStatus is the fulfilment state reported for a transaction.
type OrderStatus string

// Order status values accepted in input records.
const (
	OrderStatusOrdered   OrderStatus = "ORDERED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// CategoryOther is assigned when no keyword rule matches.
const CategoryOther = "other"

// LineItem is one purchased product within a transaction.
type LineItem struct {
	Name      string  // product name as reported by the merchant
	Category  string  // inferred category key
	UnitPrice float64 // price per unit
	Quantity  int     // units purchased
}

// PaymentSplit is one payment instrument charged for a transaction.
type PaymentSplit struct {
	InstrumentType  string   // e.g. CARD, PAYPAL, GIFT_CARD
	InstrumentBrand string   // e.g. VISA, MASTERCARD; used as the instrument key
	LastFour        string   // masked account suffix
	Amount          *float64 // charged amount, nil when not reported
}

// Transaction is a normalized purchase. Values are immutable after normalization.
type Transaction struct {
	ID            string
	CustomerID    string
	Timestamp     time.Time // carries the offset of the source record
	MerchantID    string    // derived from URL
	URL           string
	OrderStatus   OrderStatus
	TotalAmount   float64
	SubTotal      float64
	Currency      string
	LineItems     []LineItem
	PaymentSplits []PaymentSplit
}

// PrimaryCategory returns the category of the first line item, or CategoryOther.
func (t *Transaction) PrimaryCategory() string {
	if len(t.LineItems) == 0 || t.LineItems[0].Category == "" {
		return CategoryOther
	}
	return t.LineItems[0].Category
}

// InstrumentKeys returns one instrument key per payment split.
func (t *Transaction) InstrumentKeys() []string {
	keys := make([]string, 0, len(t.PaymentSplits))
	for _, p := range t.PaymentSplits {
		keys = append(keys, p.InstrumentBrand)
	}
	return keys
}

// Customer groups the transactions of one customer.
type Customer struct {
	ID           string
	CustomerType string // archetype reported by the corpus, informational only
	Transactions []Transaction
}

// SortedTransactions returns the customer's transactions ordered by timestamp, then id.
// The receiver is not modified.
func (c *Customer) SortedTransactions() []Transaction {
	out := make([]Transaction, len(c.Transactions))
	copy(out, c.Transactions)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortCustomers orders customers by id in place.
func SortCustomers(customers []Customer) {
	sort.Slice(customers, func(i, j int) bool {
		return customers[i].ID < customers[j].ID
	})
}
