package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ComputeModelID computes a deterministic model_id using SHA256.
// Formula: SHA256(seed|k|categories|instruments|customer_ids)
// List elements are sorted and comma-joined. Returns hex-encoded hash (64 characters).
func ComputeModelID(
	seed uint64,
	k int,
	categories []string,
	instruments []string,
	customerIDs []string,
) string {
	data := fmt.Sprintf("%d|%d|%s|%s|%s",
		seed,
		k,
		sortedJoin(categories),
		sortedJoin(instruments),
		sortedJoin(customerIDs),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// NewRunID returns a random identifier for one pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

func sortedJoin(values []string) string {
	s := make([]string, len(values))
	copy(s, values)
	sort.Strings(s)
	return strings.Join(s, ",")
}
