package engagement

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"pipeline-acceptance/internal/domain"
	"pipeline-acceptance/internal/urlpath"
)

// OutputSource reads the pipeline output tree. List returns object names relative
// to dir.
type OutputSource interface {
	List(ctx context.Context, dir string) ([]string, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

type CourseResult struct {
	Interval   Interval           `json:"interval"`
	CourseID   string             `json:"course_id"`
	Dir        string             `json:"dir"`
	Files      []string           `json:"files"`
	Violations []domain.Violation `json:"violations"`
}

func (r CourseResult) ValidationResult() domain.ValidationResult {
	return domain.ValidationResult{Files: r.Files, Violations: r.Violations}
}

// ValidateCourse checks every report of one course and interval under outputRoot.
// Listing failures are returned as errors; everything about the files themselves
// is reported as violations.
func ValidateCourse(ctx context.Context, src OutputSource, outputRoot string, interval Interval, courseID string, exp *Expectations) (CourseResult, error) {
	dir := CourseDir(outputRoot, interval, courseID)
	res := CourseResult{
		Interval:   interval,
		CourseID:   courseID,
		Dir:        dir,
		Files:      make([]string, 0),
		Violations: make([]domain.Violation, 0),
	}

	names, err := src.List(ctx, dir)
	if err != nil {
		return CourseResult{}, fmt.Errorf("list %s: %w", dir, err)
	}
	for _, name := range names {
		if strings.HasSuffix(name, ".csv") {
			res.Files = append(res.Files, urlpath.Join(dir, name))
		}
	}
	sort.Strings(res.Files)

	if want, ok := exp.FileCounts[interval]; ok && len(res.Files) != want {
		res.Violations = append(res.Violations, domain.Violation{
			File:  dir,
			Rule:  RuleFileCount,
			Value: fmt.Sprintf("%d (want %d)", len(res.Files), want),
		})
	}

	for _, file := range res.Files {
		if err := ctx.Err(); err != nil {
			return CourseResult{}, err
		}
		res.Violations = append(res.Violations, validateFile(ctx, src, file, interval, courseID, exp)...)
	}
	return res, nil
}

func validateFile(ctx context.Context, src OutputSource, file string, interval Interval, courseID string, exp *Expectations) []domain.Violation {
	date, err := exp.ExpectedDate(interval, file)
	if err != nil {
		return []domain.Violation{{File: file, Rule: RuleFileName, Value: err.Error()}}
	}

	rc, err := src.Open(ctx, file)
	if err != nil {
		return []domain.Violation{{File: file, Rule: RuleParse, Value: err.Error()}}
	}
	defer rc.Close()

	rep, err := ParseReport(file, rc)
	if err != nil {
		return []domain.Violation{{File: file, Rule: RuleParse, Value: err.Error()}}
	}
	return ValidateReport(rep, ReportExpectation{
		Interval:     interval,
		CourseID:     courseID,
		ExpectedDate: date,
		Nonzero:      exp.IsNonzero(courseID, date, interval),
	})
}

// ValidateAll walks every interval and course in exp.
func ValidateAll(ctx context.Context, src OutputSource, outputRoot string, exp *Expectations) ([]CourseResult, error) {
	results := make([]CourseResult, 0, len(Intervals)*len(exp.Courses))
	for _, interval := range Intervals {
		for _, course := range exp.Courses {
			res, err := ValidateCourse(ctx, src, outputRoot, interval, course, exp)
			if err != nil {
				return nil, err
			}
			results = append(results, res)
		}
	}
	return results, nil
}
