package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
// Line items and payment splits are stored as JSONB; the source UTC offset is
// kept next to the timestamp so that wall-clock features survive a round trip.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

type lineItemRow struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

type paymentSplitRow struct {
	Type     string   `json:"type"`
	Brand    string   `json:"brand"`
	LastFour string   `json:"last_four"`
	Amount   *float64 `json:"amount,omitempty"`
}

const transactionColumns = `
	id, customer_id, merchant_id, ts, utc_offset, url, order_status,
	total_amount, sub_total, currency, line_items, payment_splits`

// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate id.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.Transaction) (err error) {
	if len(txs) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_transactions", start, err) }(time.Now())

	const query = `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, t := range txs {
			if t == nil || t.ID == "" || t.CustomerID == "" {
				return storage.ErrInvalidInput
			}
			items, payments, err := encodeDetails(t)
			if err != nil {
				return err
			}
			_, offset := t.Timestamp.Zone()
			_, err = tx.Exec(ctx, query,
				t.ID,
				t.CustomerID,
				t.MerchantID,
				t.Timestamp,
				offset,
				t.URL,
				string(t.OrderStatus),
				t.TotalAmount,
				t.SubTotal,
				t.Currency,
				items,
				payments,
			)
			if err != nil {
				return translate("insert transaction in bulk", err)
			}
		}
		return nil
	})
}

// GetByCustomerID retrieves all transactions of a customer, ordered by timestamp ASC, id ASC.
func (s *TransactionStore) GetByCustomerID(ctx context.Context, customerID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE customer_id = $1
		ORDER BY ts ASC, id ASC
	`
	return s.query(ctx, "get_transactions_by_customer", query, customerID)
}

// GetByMerchantID retrieves all transactions at a merchant, ordered by customer_id, timestamp.
func (s *TransactionStore) GetByMerchantID(ctx context.Context, merchantID string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE merchant_id = $1
		ORDER BY customer_id ASC, ts ASC, id ASC
	`
	return s.query(ctx, "get_transactions_by_merchant", query, merchantID)
}

// ListCustomerIDs returns all customer ids in lexical order.
func (s *TransactionStore) ListCustomerIDs(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { observe("list_customer_ids", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT customer_id
		FROM transactions
		ORDER BY customer_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list customer ids: %w", err)
	}
	defer rows.Close()

	ids = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan customer id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAll retrieves all transactions, ordered by customer_id, timestamp, id.
func (s *TransactionStore) GetAll(ctx context.Context) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY customer_id ASC, ts ASC, id ASC
	`
	return s.query(ctx, "get_all_transactions", query)
}

func (s *TransactionStore) query(ctx context.Context, operation, query string, args ...any) (result []*domain.Transaction, err error) {
	defer func(start time.Time) { observe(operation, start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func encodeDetails(t *domain.Transaction) (items, payments []byte, err error) {
	itemRows := make([]lineItemRow, len(t.LineItems))
	for i, li := range t.LineItems {
		itemRows[i] = lineItemRow{Name: li.Name, Category: li.Category, UnitPrice: li.UnitPrice, Quantity: li.Quantity}
	}
	paymentRows := make([]paymentSplitRow, len(t.PaymentSplits))
	for i, p := range t.PaymentSplits {
		paymentRows[i] = paymentSplitRow{Type: p.InstrumentType, Brand: p.InstrumentBrand, LastFour: p.LastFour, Amount: p.Amount}
	}

	if items, err = json.Marshal(itemRows); err != nil {
		return nil, nil, fmt.Errorf("encode line items of %s: %w", t.ID, err)
	}
	if payments, err = json.Marshal(paymentRows); err != nil {
		return nil, nil, fmt.Errorf("encode payment splits of %s: %w", t.ID, err)
	}
	return items, payments, nil
}

// scanTransactions scans multiple rows into Transactions.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	result := []*domain.Transaction{}
	for rows.Next() {
		var (
			t        domain.Transaction
			offset   int
			status   string
			items    []byte
			payments []byte
		)
		err := rows.Scan(
			&t.ID,
			&t.CustomerID,
			&t.MerchantID,
			&t.Timestamp,
			&offset,
			&t.URL,
			&status,
			&t.TotalAmount,
			&t.SubTotal,
			&t.Currency,
			&items,
			&payments,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.OrderStatus = domain.OrderStatus(status)
		t.Timestamp = inZone(t.Timestamp, offset)

		var itemRows []lineItemRow
		if err := json.Unmarshal(items, &itemRows); err != nil {
			return nil, fmt.Errorf("decode line items of %s: %w", t.ID, err)
		}
		for _, li := range itemRows {
			t.LineItems = append(t.LineItems, domain.LineItem{Name: li.Name, Category: li.Category, UnitPrice: li.UnitPrice, Quantity: li.Quantity})
		}

		var paymentRows []paymentSplitRow
		if err := json.Unmarshal(payments, &paymentRows); err != nil {
			return nil, fmt.Errorf("decode payment splits of %s: %w", t.ID, err)
		}
		for _, p := range paymentRows {
			t.PaymentSplits = append(t.PaymentSplits, domain.PaymentSplit{InstrumentType: p.Type, InstrumentBrand: p.Brand, LastFour: p.LastFour, Amount: p.Amount})
		}

		result = append(result, &t)
	}
	return result, rows.Err()
}

// inZone restores the offset a timestamp was recorded with.
func inZone(t time.Time, offsetSeconds int) time.Time {
	if offsetSeconds == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offsetSeconds))
}
