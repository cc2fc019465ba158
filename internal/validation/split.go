// Package validation partitions customers for held-out evaluation and runs
// k-fold cross-validation of the segmentation fit.
package validation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"customer-segment-lab/internal/domain"
)

// MinPartitionSize is the smallest train or test partition a split may produce.
const MinPartitionSize = 2

// ErrInvalidFraction is returned for test fractions outside (0, 1).
var ErrInvalidFraction = errors.New("test fraction must be in (0, 1)")

// ErrInvalidFolds is returned for fewer than two folds.
var ErrInvalidFolds = errors.New("cross-validation needs at least 2 folds")

// shuffled returns ids sorted then permuted by seed.
func shuffled(ids []string, seed uint64) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Split deterministically partitions customer ids into train and test sets.
func Split(customerIDs []string, testFraction float64, seed uint64) (domain.SplitResult, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return domain.SplitResult{}, fmt.Errorf("%w: got %v", ErrInvalidFraction, testFraction)
	}

	ids := shuffled(customerIDs, seed)
	nTrain := int((1 - testFraction) * float64(len(ids)))
	nTest := len(ids) - nTrain
	if smaller := min(nTrain, nTest); smaller < MinPartitionSize {
		return domain.SplitResult{}, &domain.InsufficientDataError{Stage: "split", Required: MinPartitionSize, Actual: smaller}
	}

	train := ids[:nTrain]
	test := ids[nTrain:]
	sort.Strings(train)
	sort.Strings(test)
	return domain.SplitResult{Train: train, Test: test}, nil
}

// SplitCustomers applies Split to customers and returns both partitions in id order.
func SplitCustomers(customers []domain.Customer, testFraction float64, seed uint64) (train, test []domain.Customer, err error) {
	split, err := Split(customerIDs(customers), testFraction, seed)
	if err != nil {
		return nil, nil, err
	}
	return Select(customers, split.Train), Select(customers, split.Test), nil
}

// Folds partitions ids into k disjoint folds of size n/k; the last fold takes
// the remainder.
func Folds(customerIDs []string, k int, seed uint64) ([][]string, error) {
	if k < 2 {
		return nil, ErrInvalidFolds
	}
	if len(customerIDs) < k {
		return nil, &domain.InsufficientDataError{Stage: "folds", Required: k, Actual: len(customerIDs)}
	}

	ids := shuffled(customerIDs, seed)
	size := len(ids) / k
	folds := make([][]string, k)
	for i := 0; i < k; i++ {
		end := (i + 1) * size
		if i == k-1 {
			end = len(ids)
		}
		fold := append([]string(nil), ids[i*size:end]...)
		sort.Strings(fold)
		folds[i] = fold
	}
	return folds, nil
}

// Select returns the customers whose id is in ids, in input order.
func Select(customers []domain.Customer, ids []string) []domain.Customer {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]domain.Customer, 0, len(ids))
	for _, c := range customers {
		if _, ok := want[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

func customerIDs(customers []domain.Customer) []string {
	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		if len(c.Transactions) > 0 {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
