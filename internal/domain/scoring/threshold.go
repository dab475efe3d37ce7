package scoring

// IsMatch reports whether score is strictly below threshold. A +Inf score
// never matches.
func IsMatch(score, threshold float64) bool {
	return score < threshold
}
