package catchment

import (
	"math"
	"strings"
)

// assembleItems joins ranked candidates with their display attributes in
// resolver order (never re-sorted here), applying only display-level
// transformations: the single-line address and the 2-decimal km distance.
func assembleItems(cands []Candidate, offset int) []ResultItem {
	items := make([]ResultItem, 0, len(cands))
	for i, c := range cands {
		items = append(items, ResultItem{
			Address:     c.Address,
			FullAddress: FormatAddress(c.Address),
			DistanceKm:  RoundKm(c.DistanceMeters),
			Rank:        offset + i + 1,
		})
	}
	return items
}

// FormatAddress renders the GNAF components as one line:
// "12 George Street, Sydney NSW 2000". Missing components drop out without
// leaving doubled separators.
func FormatAddress(a AddressPoint) string {
	street := joinNonEmpty(" ", a.StreetNumber, a.StreetName, a.StreetType)
	locality := joinNonEmpty(" ", a.Suburb, a.State, a.Postcode)
	return joinNonEmpty(", ", street, locality)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// RoundKm converts meters to kilometers rounded to 2 decimal places, the
// precision shown to callers.
func RoundKm(meters float64) float64 {
	return math.Round(meters/10) / 100
}
