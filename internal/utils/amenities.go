package utils

import (
	"sort"
	"strings"
)

// amenityAliases folds the spellings seen in listings and user requests onto
// one canonical amenity name
var amenityAliases = map[string]string{
	"wi-fi":               "wifi",
	"wi fi":               "wifi",
	"free wifi":           "wifi",
	"internet":            "wifi",
	"high-speed internet": "wifi",
	"ac":                  "air conditioning",
	"a/c":                 "air conditioning",
	"aircon":              "air conditioning",
	"air conditioner":     "air conditioning",
	"pool":                "swimming pool",
	"gym":                 "fitness center",
	"gymnasium":           "fitness center",
	"fitness":             "fitness center",
	"car park":            "parking",
	"free parking":        "parking",
	"terrace":             "balcony",
	"fridge":              "refrigerator",
	"mini bar":            "minibar",
	"mini-bar":            "minibar",
	"television":          "tv",
	"smart tv":            "tv",
	"bbq":                 "barbecue",
	"bbq area":            "barbecue",
	"kitchenette":         "kitchen",
	"full kitchen":        "kitchen",
	"desk":                "workspace",
	"work desk":           "workspace",
	"breakfast included":  "breakfast",
}

// CanonicalAmenity lowercases, trims and collapses whitespace, then applies
// the alias table
func CanonicalAmenity(amenity string) string {
	a := strings.Join(strings.Fields(strings.ToLower(amenity)), " ")
	if canonical, ok := amenityAliases[a]; ok {
		return canonical
	}
	return a
}

// NormalizeAmenities canonicalizes, deduplicates and sorts a list, dropping
// blank entries. The result is never nil.
func NormalizeAmenities(amenities []string) []string {
	seen := make(map[string]bool, len(amenities))
	out := make([]string, 0, len(amenities))
	for _, a := range amenities {
		c := CanonicalAmenity(a)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// HasAmenity reports whether term and one of the amenities share a canonical
// name. "kitchenette" matches "kitchen" but "shared kitchen" does not.
func HasAmenity(amenities []string, term string) bool {
	want := CanonicalAmenity(term)
	if want == "" {
		return false
	}
	for _, a := range amenities {
		if CanonicalAmenity(a) == want {
			return true
		}
	}
	return false
}
