package domain

import (
	"fmt"
	"math"
)

const CurrencySymbol = "₹"

// FormatAmount renders minor units as a rupee amount, e.g. ₹760.00.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, CurrencySymbol, minor/100, minor%100)
}

// ToMinor converts a major-unit price to minor units, rounding half away from zero.
func ToMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}

// PercentOf returns pct percent of amount in minor units, rounded half away from zero.
func PercentOf(amount int64, pct float64) int64 {
	return int64(math.Round(float64(amount) * pct / 100))
}
