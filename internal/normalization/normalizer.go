// Package normalization converts raw transaction records into canonical transactions.
package normalization

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/idhash"
)

// Drop reasons reported in NormalizeStats.
const (
	DropMalformedRecord = "malformed_record"
	DropMissingTotal    = "missing_total"
	DropInvalidTotal    = "invalid_total"
	DropNegativeTotal   = "negative_total"
	DropInvalidDatetime = "invalid_datetime"
)

// invariantTolerance bounds accepted rounding differences between amounts.
var invariantTolerance = decimal.NewFromFloat(0.01)

// timestamp layouts tried in order. Layouts without an offset are read as UTC wall time.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeStats counts the outcome of a batch.
type NormalizeStats struct {
	Total              int
	Accepted           int
	Dropped            int
	DropReasons        map[string]int
	SplitMismatches    int // total != sum of payment splits
	SubtotalMismatches int // sub_total != sum of line items
}

// Add merges other into s.
func (s *NormalizeStats) Add(other NormalizeStats) {
	s.Total += other.Total
	s.Accepted += other.Accepted
	s.Dropped += other.Dropped
	s.SplitMismatches += other.SplitMismatches
	s.SubtotalMismatches += other.SubtotalMismatches
	for k, v := range other.DropReasons {
		if s.DropReasons == nil {
			s.DropReasons = make(map[string]int)
		}
		s.DropReasons[k] += v
	}
}

// DropReasonKeys returns drop reasons in lexical order.
func (s *NormalizeStats) DropReasonKeys() []string {
	keys := make([]string, 0, len(s.DropReasons))
	for k := range s.DropReasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *NormalizeStats) drop(reason string) {
	s.Dropped++
	if s.DropReasons == nil {
		s.DropReasons = make(map[string]int)
	}
	s.DropReasons[reason]++
}

// Warning flags an accepted record whose amounts do not reconcile.
type Warning string

// Warnings attached to accepted records.
const (
	WarnSplitMismatch    Warning = "split_sum_mismatch"
	WarnSubtotalMismatch Warning = "subtotal_mismatch"
)

// Normalizer converts raw records into domain transactions.
// Safe for concurrent use.
type Normalizer struct {
	rules *CategoryRules
	log   *logrus.Entry
}

// NewNormalizer creates a normalizer. A nil rules table uses the defaults.
func NewNormalizer(rules *CategoryRules, log *logrus.Entry) *Normalizer {
	if rules == nil {
		rules = MustDefaultCategoryRules()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Normalizer{rules: rules, log: log}
}

// Rules returns the category table in use.
func (n *Normalizer) Rules() *CategoryRules {
	return n.rules
}

// Normalize converts one raw record. Returns a *domain.DataError (matching
// domain.ErrDataError) when the record must be dropped.
func (n *Normalizer) Normalize(customerID string, raw json.RawMessage) (*domain.Transaction, []Warning, error) {
	var rec RawTransaction
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil, &domain.DataError{Reason: DropMalformedRecord}
	}

	id := string(rec.ID)
	total, reason := parseTotal(rec.Price.Total)
	if reason != "" {
		return nil, nil, &domain.DataError{RecordID: id, Reason: reason}
	}

	ts, err := ParseDatetime(rec.Datetime)
	if err != nil {
		return nil, nil, &domain.DataError{RecordID: id, Reason: DropInvalidDatetime}
	}

	tx := &domain.Transaction{
		ID:          id,
		CustomerID:  customerID,
		Timestamp:   ts,
		MerchantID:  MerchantID(rec.URL),
		URL:         rec.URL,
		OrderStatus: domain.OrderStatus(strings.ToUpper(strings.TrimSpace(rec.OrderStatus))),
		TotalAmount: total.InexactFloat64(),
		Currency:    strings.ToUpper(rec.Price.Currency),
	}
	if tx.ID == "" {
		tx.ID = idhash.ComputeTransactionID(customerID, rec.Datetime, rec.URL, total.String())
	}

	itemSum := decimal.Zero
	for _, p := range rec.Products {
		unit := p.Price.UnitPrice.Decimal
		if !p.Price.UnitPrice.Valid && p.Quantity > 0 && p.Price.SubTotal.Valid {
			unit = p.Price.SubTotal.Decimal.Div(decimal.NewFromInt(int64(p.Quantity)))
		}
		itemSum = itemSum.Add(unit.Mul(decimal.NewFromInt(int64(p.Quantity))))
		tx.LineItems = append(tx.LineItems, domain.LineItem{
			Name:      p.Name,
			Category:  n.rules.Categorize(p.Name, rec.URL),
			UnitPrice: unit.InexactFloat64(),
			Quantity:  p.Quantity,
		})
	}

	subTotal := itemSum
	if rec.Price.SubTotal.Valid {
		subTotal = rec.Price.SubTotal.Decimal
	}
	tx.SubTotal = subTotal.InexactFloat64()

	splitSum := decimal.Zero
	allSplitsPresent := len(rec.PaymentMethods) > 0
	for _, pm := range rec.PaymentMethods {
		split := domain.PaymentSplit{
			InstrumentType:  strings.ToUpper(strings.TrimSpace(pm.Type)),
			InstrumentBrand: strings.ToUpper(strings.TrimSpace(pm.Brand)),
			LastFour:        pm.LastFour,
		}
		if split.InstrumentBrand == "" {
			split.InstrumentBrand = split.InstrumentType
		}
		if pm.TransactionAmount.Valid {
			amount := pm.TransactionAmount.Decimal.InexactFloat64()
			split.Amount = &amount
			splitSum = splitSum.Add(pm.TransactionAmount.Decimal)
		} else {
			allSplitsPresent = false
		}
		tx.PaymentSplits = append(tx.PaymentSplits, split)
	}

	var warnings []Warning
	if allSplitsPresent && splitSum.Sub(total).Abs().GreaterThan(invariantTolerance) {
		warnings = append(warnings, WarnSplitMismatch)
	}
	if len(rec.Products) > 0 && rec.Price.SubTotal.Valid &&
		itemSum.Sub(subTotal).Abs().GreaterThan(invariantTolerance) {
		warnings = append(warnings, WarnSubtotalMismatch)
	}

	return tx, warnings, nil
}

// NormalizeBatch converts a batch, dropping bad records. One bad record never
// aborts the batch. Accepted transactions are returned in input order.
func (n *Normalizer) NormalizeBatch(customerID string, records []json.RawMessage) ([]domain.Transaction, NormalizeStats) {
	stats := NormalizeStats{Total: len(records)}
	out := make([]domain.Transaction, 0, len(records))

	for i, raw := range records {
		tx, warnings, err := n.Normalize(customerID, raw)
		if err != nil {
			var dataErr *domain.DataError
			reason := DropMalformedRecord
			if errors.As(err, &dataErr) {
				reason = dataErr.Reason
			}
			stats.drop(reason)
			n.log.WithFields(logrus.Fields{
				"customer_id": customerID,
				"record":      i,
				"reason":      reason,
			}).Debug("dropped transaction record")
			continue
		}
		for _, w := range warnings {
			switch w {
			case WarnSplitMismatch:
				stats.SplitMismatches++
			case WarnSubtotalMismatch:
				stats.SubtotalMismatches++
			}
		}
		stats.Accepted++
		out = append(out, *tx)
	}

	return out, stats
}

// ParseDatetime parses an ISO-8601 timestamp, keeping its offset.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range datetimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseTotal returns the order total or a drop reason.
func parseTotal(raw json.RawMessage) (decimal.Decimal, string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
		return decimal.Zero, DropMissingTotal
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(trimmed); err != nil {
		return decimal.Zero, DropInvalidTotal
	}
	if d.IsNegative() {
		return decimal.Zero, DropNegativeTotal
	}
	return d, ""
}
