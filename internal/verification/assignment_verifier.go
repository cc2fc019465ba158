package verification

import (
	"context"
	"errors"
	"fmt"

	"customer-segment-lab/internal/domain"
	"customer-segment-lab/internal/segmentation"
	"customer-segment-lab/internal/storage"
)

var (
	// ErrModelNotFound is returned when the model ID doesn't exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrAssignmentNotFound is returned when no assignment is stored for a customer.
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// AssignmentVerifier implements Verifier by re-assigning customers from their
// stored transactions under the stored model.
type AssignmentVerifier struct {
	transactionStore storage.TransactionStore
	modelStore       storage.ModelStore
	assignmentStore  storage.AssignmentStore
	profileStore     storage.ClusterProfileStore // optional
	engine           *segmentation.Engine
}

// AssignmentVerifierOptions contains configuration for creating an AssignmentVerifier.
type AssignmentVerifierOptions struct {
	TransactionStore storage.TransactionStore
	ModelStore       storage.ModelStore
	AssignmentStore  storage.AssignmentStore
	ProfileStore     storage.ClusterProfileStore
	Engine           *segmentation.Engine // defaults to segmentation.DefaultConfig()
}

// NewAssignmentVerifier creates a new AssignmentVerifier.
func NewAssignmentVerifier(opts AssignmentVerifierOptions) *AssignmentVerifier {
	v := &AssignmentVerifier{
		transactionStore: opts.TransactionStore,
		modelStore:       opts.ModelStore,
		assignmentStore:  opts.AssignmentStore,
		profileStore:     opts.ProfileStore,
		engine:           opts.Engine,
	}
	if v.engine == nil {
		v.engine = segmentation.NewEngine(segmentation.DefaultConfig())
	}
	return v
}

var _ Verifier = (*AssignmentVerifier)(nil)

// VerifyCustomer replays one customer's stored assignment.
func (v *AssignmentVerifier) VerifyCustomer(ctx context.Context, modelID, customerID string) (*VerificationResult, error) {
	model, err := v.loadModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	stored, err := v.assignmentStore.GetByCustomer(ctx, modelID, customerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	txs, err := v.transactionStore.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	customer := domain.Customer{ID: customerID}
	for _, t := range txs {
		customer.Transactions = append(customer.Transactions, *t)
	}

	replayed, _, err := v.engine.Evaluate(ctx, model, []domain.Customer{customer})
	if err != nil {
		return nil, err
	}

	divergences := CompareAssignments(stored, &replayed[0])
	return &VerificationResult{
		CustomerID:  customerID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// VerifyModel replays every stored assignment of a model in one pass.
// A customer whose transactions are gone is reported as divergent.
func (v *AssignmentVerifier) VerifyModel(ctx context.Context, modelID string) (*VerificationReport, error) {
	model, err := v.loadModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	stored, err := v.assignmentStore.GetByModelID(ctx, modelID)
	if err != nil {
		return nil, err
	}

	customers, err := storage.LoadCustomers(ctx, v.transactionStore)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(stored))
	for _, a := range stored {
		wanted[a.CustomerID] = struct{}{}
	}
	subset := make([]domain.Customer, 0, len(stored))
	for _, c := range customers {
		if _, ok := wanted[c.ID]; ok && len(c.Transactions) > 0 {
			subset = append(subset, c)
		}
	}

	replayed := make(map[string]*domain.ClusterAssignment, len(subset))
	if len(subset) > 0 {
		assignments, _, err := v.engine.Evaluate(ctx, model, subset)
		if err != nil {
			return nil, fmt.Errorf("replay assignments: %w", err)
		}
		for i := range assignments {
			replayed[assignments[i].CustomerID] = &assignments[i]
		}
	}

	report := &VerificationReport{
		ModelID:          modelID,
		TotalAssignments: len(stored),
		Results:          make([]VerificationResult, 0, len(stored)+1),
	}
	for _, a := range stored {
		result := VerificationResult{CustomerID: a.CustomerID}
		if r, ok := replayed[a.CustomerID]; ok {
			result.Divergences = CompareAssignments(a, r)
		} else {
			// Record missing data as divergence
			result.Divergences = []FieldDivergence{
				{Field: "Transactions", Expected: "present", Actual: "missing"},
			}
		}
		result.Match = len(result.Divergences) == 0

		report.Results = append(report.Results, result)
		if result.Match {
			report.MatchedAssignments++
		} else {
			report.DivergentAssignments++
		}
	}

	if v.profileStore != nil {
		profiles, err := v.profileStore.GetByModelID(ctx, modelID)
		if err != nil {
			return nil, err
		}
		if d := CompareProfileSizes(profiles, stored); len(d) > 0 {
			report.Results = append(report.Results, VerificationResult{CustomerID: "", Divergences: d})
		}
	}

	return report, nil
}

// Match reports whether every assignment and profile size reproduced.
func (r *VerificationReport) Match() bool {
	for _, res := range r.Results {
		if !res.Match {
			return false
		}
	}
	return true
}

func (v *AssignmentVerifier) loadModel(ctx context.Context, modelID string) (*domain.ClusterModel, error) {
	model, err := v.modelStore.GetByID(ctx, modelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	return model, nil
}
