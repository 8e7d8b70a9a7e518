package domain

import (
	"fmt"
	"time"
)

// Violation is one failed expectation on a pipeline output file. Row is the
// 1-based data row, or 0 for file level problems.
type Violation struct {
	File   string `json:"file"`
	Row    int    `json:"row,omitempty"`
	Column string `json:"column,omitempty"`
	Rule   string `json:"rule"`
	Value  string `json:"value,omitempty"`
}

func (v Violation) String() string {
	loc := v.File
	if v.Row > 0 {
		loc = fmt.Sprintf("%s:%d", loc, v.Row)
	}
	if v.Column != "" {
		loc = loc + " [" + v.Column + "]"
	}
	if v.Value != "" {
		return fmt.Sprintf("%s: %s (value %q)", loc, v.Rule, v.Value)
	}
	return fmt.Sprintf("%s: %s", loc, v.Rule)
}

type RunRecord struct {
	ID         string     `json:"id"`
	TestName   string     `json:"test_name"`
	Identifier string     `json:"identifier"`
	TestRoot   string     `json:"test_root"`
	Status     RunStatus  `json:"status"`
	Files      int        `json:"files"`
	Violations int        `json:"violations"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type ValidationResult struct {
	Files      []string    `json:"files"`
	Violations []Violation `json:"violations"`
}

func ValidationPassed(r ValidationResult) bool {
	return len(r.Violations) == 0
}

// FailedRules returns the distinct rule names in first-seen order.
func (r ValidationResult) FailedRules() []string {
	seen := make(map[string]struct{})
	rules := make([]string, 0)
	for _, v := range r.Violations {
		if _, ok := seen[v.Rule]; ok {
			continue
		}
		seen[v.Rule] = struct{}{}
		rules = append(rules, v.Rule)
	}
	return rules
}
