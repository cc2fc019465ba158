package idhash

import (
	"testing"

	"github.com/google/uuid"
)

func TestComputeModelID(t *testing.T) {
	tests := []struct {
		name        string
		seed        uint64
		k           int
		categories  []string
		instruments []string
		customerIDs []string
	}{
		{
			name:        "basic model",
			seed:        42,
			k:           3,
			categories:  []string{"electronics", "fashion"},
			instruments: []string{"MASTERCARD", "VISA"},
			customerIDs: []string{"c1", "c2", "c3"},
		},
		{
			name:        "empty schema",
			seed:        7,
			k:           2,
			customerIDs: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeModelID(tt.seed, tt.k, tt.categories, tt.instruments, tt.customerIDs)

			if len(got) != 64 {
				t.Errorf("ComputeModelID() length = %d, want 64", len(got))
			}

			got2 := ComputeModelID(tt.seed, tt.k, tt.categories, tt.instruments, tt.customerIDs)
			if got != got2 {
				t.Errorf("ComputeModelID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeModelID_OrderIndependent(t *testing.T) {
	a := ComputeModelID(1, 2, []string{"b", "a"}, nil, []string{"z", "y"})
	b := ComputeModelID(1, 2, []string{"a", "b"}, nil, []string{"y", "z"})
	if a != b {
		t.Errorf("expected order-independent id, got %s and %s", a, b)
	}
}

func TestComputeModelID_DiffersBySeed(t *testing.T) {
	a := ComputeModelID(1, 2, nil, nil, []string{"c1"})
	b := ComputeModelID(2, 2, nil, nil, []string{"c1"})
	if a == b {
		t.Error("expected different ids for different seeds")
	}
}

func TestComputeTransactionID(t *testing.T) {
	a := ComputeTransactionID("c1", "2024-01-01T10:00:00", "amazon.com", "10.5")
	b := ComputeTransactionID("c1", "2024-01-01T10:00:00", "amazon.com", "10.5")
	c := ComputeTransactionID("c2", "2024-01-01T10:00:00", "amazon.com", "10.5")

	if len(a) != 64 {
		t.Errorf("length = %d, want 64", len(a))
	}
	if a != b {
		t.Error("expected deterministic id")
	}
	if a == c {
		t.Error("expected id to depend on customer")
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected valid uuid, got %q: %v", id, err)
	}
	if id == NewRunID() {
		t.Error("expected unique run ids")
	}
}
