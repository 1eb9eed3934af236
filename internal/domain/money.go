package domain

import (
	"fmt"
	"math"
)

// FormatAmount renders minor units as a decimal string with two places, the
// form every external provider API expects ("1050" -> "10.50").
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ConvertPENToUSD converts a PEN amount in minor units to USD minor units
// using the configured soles-per-dollar rate, rounding half away from zero.
func ConvertPENToUSD(pen int64, penPerUSD float64) int64 {
	if penPerUSD <= 0 {
		return pen
	}
	return int64(math.Round(float64(pen) / penPerUSD))
}
