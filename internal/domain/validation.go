package domain

// Merge folds several per-course results into one.
func Merge(results ...ValidationResult) ValidationResult {
	out := ValidationResult{Files: make([]string, 0), Violations: make([]Violation, 0)}
	for _, r := range results {
		out.Files = append(out.Files, r.Files...)
		out.Violations = append(out.Violations, r.Violations...)
	}
	return out
}

func StatusFor(r ValidationResult) RunStatus {
	if ValidationPassed(r) {
		return StatusPassed
	}
	return StatusFailed
}
