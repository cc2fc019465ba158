// Package fixtures generates a deterministic synthetic customer corpus for
// demo runs and tests.
package fixtures

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// Epoch is the first day of generated activity.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type persona struct {
	name        string
	amountLo    float64
	amountHi    float64
	txLo, txHi  int // transactions per customer
	spanDays    int // activity window
	categories  []string
	merchants   []string
	brands      []string
	hourLo      int
	hourHi      int
	weekendBias float64 // probability of shifting a purchase onto a weekend
}

var personas = []persona{
	{
		name:     "budget_shopper",
		amountLo: 15, amountHi: 45,
		txLo: 6, txHi: 12, spanDays: 90,
		categories: []string{"groceries", "home"},
		merchants:  []string{"walmart", "target", "kroger"},
		brands:     []string{"VISA", "DEBIT"},
		hourLo:     8, hourHi: 11,
		weekendBias: 0.6,
	},
	{
		name:     "tech_enthusiast",
		amountLo: 120, amountHi: 400,
		txLo: 4, txHi: 9, spanDays: 120,
		categories: []string{"electronics", "entertainment"},
		merchants:  []string{"bestbuy", "newegg", "amazon"},
		brands:     []string{"AMEX", "MASTERCARD"},
		hourLo:     19, hourHi: 23,
		weekendBias: 0.3,
	},
	{
		name:     "frequent_diner",
		amountLo: 8, amountHi: 25,
		txLo: 20, txHi: 30, spanDays: 8,
		categories: []string{"dining"},
		merchants:  []string{"starbucks", "doordash", "chipotle"},
		brands:     []string{"APPLE_PAY"},
		hourLo:     12, hourHi: 15,
		weekendBias: 0.1,
	},
	{
		name:     "luxury_fashion",
		amountLo: 200, amountHi: 600,
		txLo: 3, txHi: 7, spanDays: 180,
		categories: []string{"fashion", "health"},
		merchants:  []string{"nordstrom", "saksfifthavenue"},
		brands:     []string{"AMEX"},
		hourLo:     13, hourHi: 17,
		weekendBias: 0.8,
	},
}

// Customers returns n customers cycling through the built-in personas.
// The same n and seed always produce the same corpus.
func Customers(n int, seed uint64) []domain.Customer {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]domain.Customer, 0, n)

	for i := 0; i < n; i++ {
		p := personas[i%len(personas)]
		c := domain.Customer{
			ID:           fmt.Sprintf("cust_%04d", i+1),
			CustomerType: p.name,
		}
		count := p.txLo + rng.IntN(p.txHi-p.txLo+1)
		for j := 0; j < count; j++ {
			c.Transactions = append(c.Transactions, p.transaction(rng, c.ID, j))
		}
		c.Transactions = c.SortedTransactions()
		out = append(out, c)
	}
	return out
}

func (p persona) transaction(rng *rand.Rand, customerID string, seq int) domain.Transaction {
	day := rng.IntN(p.spanDays)
	ts := Epoch.AddDate(0, 0, day)
	if rng.Float64() < p.weekendBias {
		for ts.Weekday() != time.Saturday && ts.Weekday() != time.Sunday {
			ts = ts.AddDate(0, 0, 1)
		}
	}
	hour := p.hourLo + rng.IntN(p.hourHi-p.hourLo+1)
	ts = ts.Add(time.Duration(hour)*time.Hour + time.Duration(rng.IntN(60))*time.Minute)

	amount := math.Round((p.amountLo+rng.Float64()*(p.amountHi-p.amountLo))*100) / 100
	merchant := p.merchants[rng.IntN(len(p.merchants))]
	category := p.categories[rng.IntN(len(p.categories))]
	brand := p.brands[rng.IntN(len(p.brands))]
	paid := amount

	return domain.Transaction{
		ID:          fmt.Sprintf("%s_tx_%03d", customerID, seq+1),
		CustomerID:  customerID,
		Timestamp:   ts,
		MerchantID:  merchant,
		URL:         fmt.Sprintf("https://www.%s.com/orders/%d", merchant, seq+1),
		OrderStatus: domain.OrderStatusCompleted,
		TotalAmount: amount,
		SubTotal:    amount,
		Currency:    "USD",
		LineItems: []domain.LineItem{
			{Name: category + " item", Category: category, UnitPrice: amount, Quantity: 1},
		},
		PaymentSplits: []domain.PaymentSplit{
			{InstrumentType: "CARD", InstrumentBrand: brand, LastFour: fmt.Sprintf("%04d", rng.IntN(10000)), Amount: &paid},
		},
	}
}

// Load inserts the generated corpus into store.
func Load(ctx context.Context, store storage.TransactionStore, customers []domain.Customer) error {
	var batch []*domain.Transaction
	for i := range customers {
		for j := range customers[i].Transactions {
			batch = append(batch, &customers[i].Transactions[j])
		}
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}
	return nil
}
