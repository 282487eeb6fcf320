package ocr

import (
	"strings"
	"unicode"
)

// CleanText normalizes raw engine output.
func CleanText(text string) string {
	text = strings.Join(strings.Fields(text), " ")

	// common misreads
	text = strings.ReplaceAll(text, "|", "I")
	// Also rewrites genuine zeros in numbers; kept for output parity.
	text = strings.ReplaceAll(text, "0", "O")

	text = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, text)

	return strings.TrimSpace(text)
}

// MeanConfidence averages the non-negative word confidences, 0 when there are
// none. Engines report -1 for rows that carry no word.
func MeanConfidence(confidences []float64) float64 {
	var sum float64
	n := 0
	for _, c := range confidences {
		if c >= 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
