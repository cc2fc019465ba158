package domain

import "time"

// MerchantCLVRecord is the value of one customer to one merchant.
type MerchantCLVRecord struct {
	CustomerID          string    `json:"customer_id"`
	TotalSpend          float64   `json:"total_spend"`
	TransactionCount    int       `json:"transaction_count"`
	AvgTransactionValue float64   `json:"avg_transaction_value"`
	MonthlyFrequency    float64   `json:"monthly_frequency"`
	MonthsActive        float64   `json:"months_active"` // at least 1
	CLVScore            float64   `json:"clv_score"`
	FirstPurchase       time.Time `json:"first_purchase"`
	LastPurchase        time.Time `json:"last_purchase"`
}

// ProspectRecord is a non-customer of a merchant ranked by similarity to its customers.
type ProspectRecord struct {
	CustomerID       string  `json:"customer_id"`
	TotalSpend       float64 `json:"total_spend"`
	MonthlyFrequency float64 `json:"monthly_frequency"`
	AvgTicket        float64 `json:"avg_ticket"`
	SimilarityScore  float64 `json:"similarity_score"`
}

// MerchantInsights aggregates CLV records for one merchant.
// An unknown merchant yields insights with only MerchantID set.
type MerchantInsights struct {
	MerchantID          string              `json:"merchant_id"`
	TotalCustomers      int                 `json:"total_customers"`
	TotalRevenue        float64             `json:"total_revenue"`
	AvgTransactionValue float64             `json:"avg_transaction_value"`
	AvgMonthlyFrequency float64             `json:"avg_purchase_frequency"`
	RetentionRate       float64             `json:"retention_rate"` // fraction of customers with more than one purchase
	AvgPurchaseGapDays  float64             `json:"avg_time_between_purchases"`
	ChurnRate           float64             `json:"churn_rate"` // fraction inactive for more than the churn window
	TopCustomers        []MerchantCLVRecord `json:"top_customers"`
	Rankings            []MerchantCLVRecord `json:"-"`
}
