// Package mezger holds the filters that decide whether a scraped title
// belongs in the collection at all, plus the text extractors shared by
// the source adapters. The Mezger engine shipped in the 996 and 997
// GT3, GT2 and Turbo, so titles are matched on those markers.
package mezger

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe = regexp.MustCompile(`[\d,]+(\.\d+)?`)
	yearRe  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// IsCar reports whether a car title names a Mezger-engined 911.
func IsCar(title string) bool {
	t := strings.ToLower(title)
	model := strings.Contains(t, "911") || strings.Contains(t, "996") || strings.Contains(t, "997")
	variant := strings.Contains(t, "gt3") || strings.Contains(t, "gt2") ||
		strings.Contains(t, "turbo") || strings.Contains(t, "mezger")
	return model && variant
}

// IsPart reports whether a part title plausibly fits a Mezger engine.
func IsPart(title string) bool {
	t := strings.ToLower(title)
	if strings.Contains(t, "mezger") {
		return true
	}
	variant := strings.Contains(t, "gt3") || strings.Contains(t, "gt2") || strings.Contains(t, "turbo")
	return variant && (strings.Contains(t, "engine") || strings.Contains(t, "part"))
}

// ExtractPrice pulls the first numeric amount out of a price string,
// ignoring currency symbols and thousands separators. Returns 0 when no
// amount is present.
func ExtractPrice(text string) float64 {
	m := priceRe.FindString(text)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractYear pulls a four-digit model year out of a title. Returns 0
// when no plausible year is present.
func ExtractYear(title string) int {
	m := yearRe.FindString(title)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}
