package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTransactionID derives an id for records that arrive without one.
// Formula: SHA256(customer_id|datetime|url|total)
func ComputeTransactionID(customerID, datetime, url, total string) string {
	data := fmt.Sprintf("%s|%s|%s|%s", customerID, datetime, url, total)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
