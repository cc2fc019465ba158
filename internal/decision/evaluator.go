package decision

import "fmt"

// Evaluator evaluates publication criteria.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate produces DecisionResult from DecisionInput.
// PUBLISH if ALL criteria pass and NO hold trigger fires, HOLD otherwise.
func (e *Evaluator) Evaluate(input DecisionInput) (*DecisionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	criteria := e.evaluateCriteria(input)
	triggers := e.evaluateHoldTriggers(input)

	decision := DecisionPublish
	for _, c := range append(criteria, triggers...) {
		if !c.Pass {
			decision = DecisionHold
			break
		}
	}

	return &DecisionResult{
		Decision:     decision,
		ModelID:      input.ModelID,
		Criteria:     criteria,
		HoldTriggers: triggers,
	}, nil
}

// evaluateCriteria evaluates the 5 publication criteria.
func (e *Evaluator) evaluateCriteria(input DecisionInput) []CriterionResult {
	t := e.thresholds
	criteria := make([]CriterionResult, 5)

	// 1. Holdout silhouette >= MinSilhouette
	criteria[0] = CriterionResult{
		Name:      "Holdout silhouette",
		Threshold: fmt.Sprintf(">= %.2f", t.MinSilhouette),
		Actual:    formatOptional(input.HoldoutSilhouette),
		Pass:      input.HoldoutSilhouette != nil && *input.HoldoutSilhouette >= t.MinSilhouette,
	}

	// 2. Generalization: holdout / train >= MinHoldoutRatio
	genPass := false
	genActual := fmt.Sprintf("train=%s, holdout=%s",
		formatOptional(input.TrainSilhouette), formatOptional(input.HoldoutSilhouette))
	if input.TrainSilhouette != nil && input.HoldoutSilhouette != nil && *input.TrainSilhouette > 0 {
		ratio := *input.HoldoutSilhouette / *input.TrainSilhouette
		genPass = ratio >= t.MinHoldoutRatio
		genActual = fmt.Sprintf("%s, ratio=%.2f", genActual, ratio)
	}
	criteria[1] = CriterionResult{
		Name:      "Generalizes to holdout",
		Threshold: fmt.Sprintf("holdout/train >= %.2f", t.MinHoldoutRatio),
		Actual:    genActual,
		Pass:      genPass,
	}

	// 3. Stable across folds: silhouette std <= MaxSilhouetteStd
	stability := CriterionResult{
		Name:      "Stable across folds",
		Threshold: fmt.Sprintf("silhouette std <= %.2f", t.MaxSilhouetteStd),
	}
	switch {
	case input.CVSilhouetteStd != nil:
		stability.Actual = fmt.Sprintf("%.4f over %d folds", *input.CVSilhouetteStd, input.CVFolds)
		stability.Pass = *input.CVSilhouetteStd <= t.MaxSilhouetteStd
	case input.CVFolds == 0:
		stability.Actual = "not run"
		stability.Pass = !t.RequireCrossCheck
	default:
		stability.Actual = fmt.Sprintf("undefined over %d folds", input.CVFolds)
	}
	criteria[2] = stability

	// 4. No negligible segment
	criteria[3] = CriterionResult{
		Name:      "Smallest segment share",
		Threshold: fmt.Sprintf(">= %.1f%%", t.MinClusterShare),
		Actual:    fmt.Sprintf("%.2f%%", input.SmallestClusterShare),
		Pass:      input.SmallestClusterShare >= t.MinClusterShare,
	}

	// 5. Separation: holdout Davies-Bouldin <= MaxDaviesBouldin
	criteria[4] = CriterionResult{
		Name:      "Cluster separation",
		Threshold: fmt.Sprintf("Davies-Bouldin <= %.2f", t.MaxDaviesBouldin),
		Actual:    formatOptional(input.HoldoutDaviesBouldin),
		Pass:      input.HoldoutDaviesBouldin != nil && *input.HoldoutDaviesBouldin <= t.MaxDaviesBouldin,
	}

	return criteria
}

// evaluateHoldTriggers evaluates the 3 hold triggers.
// Pass=true means NOT triggered, Pass=false means triggered.
func (e *Evaluator) evaluateHoldTriggers(input DecisionInput) []CriterionResult {
	checks := make([]CriterionResult, 3)

	// 1. Holdout quality could not be measured
	checks[0] = CriterionResult{
		Name:      "Undefined holdout silhouette",
		Threshold: "silhouette == n/a",
		Actual:    formatOptional(input.HoldoutSilhouette),
		Pass:      input.HoldoutSilhouette != nil,
	}

	// 2. A segment has no customers
	checks[1] = CriterionResult{
		Name:      "Empty segments",
		Threshold: "> 0",
		Actual:    fmt.Sprintf("%d", input.EmptyClusters),
		Pass:      input.EmptyClusters == 0,
	}

	// 3. Structure disappears on unseen customers
	collapsed := input.TrainSilhouette != nil && input.HoldoutSilhouette != nil &&
		*input.TrainSilhouette > 0 && *input.HoldoutSilhouette <= 0
	checks[2] = CriterionResult{
		Name:      "Silhouette collapse",
		Threshold: "train > 0 AND holdout <= 0",
		Actual: fmt.Sprintf("train=%s, holdout=%s",
			formatOptional(input.TrainSilhouette), formatOptional(input.HoldoutSilhouette)),
		Pass: !collapsed,
	}

	return checks
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}
