package domain

// CategoryPrediction is a ranked next-category candidate.
type CategoryPrediction struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// PaymentPrediction is a ranked next-instrument candidate.
type PaymentPrediction struct {
	PaymentInstrument string  `json:"payment_instrument"`
	Confidence        float64 `json:"confidence"`
}

// MerchantPrediction is a ranked next-merchant candidate. Scores sum to 1.
type MerchantPrediction struct {
	Merchant string  `json:"merchant"`
	Score    float64 `json:"score"`
}

// AmountRange is the likely spend band of the next purchase.
type AmountRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// PredictionResult describes the likely next purchase of a customer.
type PredictionResult struct {
	CustomerID      string               `json:"customer_id"`
	ModelID         string               `json:"model_id"`
	ClusterID       int                  `json:"cluster_id"`
	ClusterLabel    string               `json:"cluster_label"`
	Categories      []CategoryPrediction `json:"categories"`
	Payments        []PaymentPrediction  `json:"payment_methods"`
	Merchants       []MerchantPrediction `json:"merchants"`
	EstimatedAmount float64              `json:"estimated_amount"`
	AmountRange     AmountRange          `json:"amount_range"`
	ConfidenceScore float64              `json:"confidence_score"`
}
