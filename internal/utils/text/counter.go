// Package text provides small text measurement helpers shared by the
// generation validators and provider adapters.
package text

import "strings"

// CountRunes counts Unicode characters rather than bytes, so multi-byte
// scripts and emoji count as one character each.
//
// Examples:
//
//	CountRunes("hello")  // 5
//	CountRunes("日本語")   // 3
//	CountRunes("")       // 0
func CountRunes(text string) int {
	return len([]rune(text))
}

// CountTrimmedRunes counts runes after trimming leading and trailing
// whitespace. Length thresholds use this so padding cannot satisfy a minimum.
func CountTrimmedRunes(text string) int {
	return CountRunes(strings.TrimSpace(text))
}

// Truncate returns at most max runes of text, appending suffix when the text
// was shortened. A max <= 0 returns text unchanged.
func Truncate(text string, max int, suffix string) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + suffix
}
