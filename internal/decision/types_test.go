package decision

import (
	"errors"
	"testing"
)

func TestDecisionInput_Validate(t *testing.T) {
	validInput := &DecisionInput{
		ModelID:              "model1",
		K:                    3,
		SmallestClusterShare: 20,
	}

	// Valid input
	if err := validInput.Validate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	// Nil input
	var nilInput *DecisionInput
	if err := nilInput.Validate(); err == nil {
		t.Error("expected error for nil input")
	}

	// Empty model ID
	input := *validInput
	input.ModelID = ""
	if err := input.Validate(); !errors.Is(err, ErrEmptyModelID) {
		t.Errorf("expected ErrEmptyModelID, got %v", err)
	}

	// Single cluster
	input = *validInput
	input.K = 1
	if err := input.Validate(); !errors.Is(err, ErrInvalidK) {
		t.Errorf("expected ErrInvalidK, got %v", err)
	}

	// Share out of range
	input = *validInput
	input.SmallestClusterShare = 101
	if err := input.Validate(); !errors.Is(err, ErrInvalidShare) {
		t.Errorf("expected ErrInvalidShare, got %v", err)
	}
	input.SmallestClusterShare = -0.1
	if err := input.Validate(); !errors.Is(err, ErrInvalidShare) {
		t.Errorf("expected ErrInvalidShare, got %v", err)
	}

	// Boundary cases - valid
	input = *validInput
	input.SmallestClusterShare = 0
	if err := input.Validate(); err != nil {
		t.Errorf("0%% should be valid, got %v", err)
	}
	input.SmallestClusterShare = 100
	if err := input.Validate(); err != nil {
		t.Errorf("100%% should be valid, got %v", err)
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("defaults should be valid, got %v", err)
	}

	th := DefaultThresholds()
	th.MinClusterShare = 150
	if err := th.Validate(); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("expected ErrInvalidThresholds, got %v", err)
	}

	th = DefaultThresholds()
	th.MinSilhouette = 2
	if err := th.Validate(); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("expected ErrInvalidThresholds, got %v", err)
	}
}
