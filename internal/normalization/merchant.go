package normalization

import "strings"

// knownBrands maps merchant ids to display names.
var knownBrands = map[string]string{
	"amazon":         "Amazon",
	"walmart":        "Walmart",
	"target":         "Target",
	"bestbuy":        "Best Buy",
	"gamestop":       "GameStop",
	"abtelectronics": "ABT Electronics",
	"newegg":         "Newegg",
	"microcenter":    "Micro Center",
	"bhphotovideo":   "B&H Photo",
	"tigerdirect":    "TigerDirect",
	"crutchfield":    "Crutchfield",
}

// MerchantID derives a merchant id from a URL or a bare merchant name:
// lowercase, strip protocol and "www.", keep the first path segment,
// keep the label before the first dot.
//
//	https://www.Amazon.com/dp/123 -> amazon
//	bestbuy.com                   -> bestbuy
func MerchantID(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "."); i >= 0 {
		s = s[:i]
	}
	return s
}

// BrandName returns the display name for a merchant id, or the id itself.
func BrandName(merchantID string) string {
	if name, ok := knownBrands[merchantID]; ok {
		return name
	}
	return merchantID
}
