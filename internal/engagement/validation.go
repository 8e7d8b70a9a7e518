package engagement

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"pipeline-acceptance/internal/domain"
)

const (
	RuleParse                = "engagement.parse"
	RuleFileName             = "engagement.file_name"
	RuleFileCount            = "engagement.file_count"
	RuleColumnsCount         = "engagement.columns_count"
	RuleColumnMissing        = "engagement.column_missing"
	RuleDateFormat           = "engagement.date_format"
	RuleDateMatchesFile      = "engagement.date_matches_file"
	RuleUsernameFormat       = "engagement.username_format"
	RuleEmailFormat          = "engagement.email_format"
	RuleCohortFormat         = "engagement.cohort_format"
	RuleCounterNonNegative   = "engagement.counter_non_negative"
	RuleCorrectLTEAttempted  = "engagement.problems_correct_lte_attempted"
	RuleCourseIDMatches      = "engagement.course_id_matches"
	RuleCourseIDFormat       = "engagement.course_id_format"
	RuleZeroEngagement       = "engagement.zero_engagement"
	RuleLastSubsectionViewed = "engagement.last_subsection_viewed_empty"
)

var (
	datePattern     = regexp.MustCompile(`^\d\d\d\d-\d\d-\d\d$`)
	usernamePattern = regexp.MustCompile(`^.{1,}$`)
	emailPattern    = regexp.MustCompile(`^([^@|\s]+@[^@]+\.[^@|\s]+)$`)
	cohortPattern   = regexp.MustCompile(`^.+$`)

	slashCourseIDPattern  = regexp.MustCompile(`^[^/+\s]+/[^/+\s]+/[^/+\s]+$`)
	opaqueCourseIDPattern = regexp.MustCompile(`^course-v1:[^/+\s]+\+[^/+\s]+\+[^/+\s]+$`)
)

// ReportExpectation pins the values every row of one report must carry.
type ReportExpectation struct {
	Interval     Interval
	CourseID     string
	ExpectedDate string
	// Nonzero reports may carry activity; all others must be empty of engagement.
	Nonzero bool
}

func ValidDate(v string) bool     { return datePattern.MatchString(v) }
func ValidUsername(v string) bool { return usernamePattern.MatchString(v) }
func ValidEmail(v string) bool    { return emailPattern.MatchString(v) }

// ValidCohort accepts an absent cohort or any single line value.
func ValidCohort(v string) bool {
	return v == "" || cohortPattern.MatchString(v)
}

// ValidCourseID accepts both org/course/run and course-v1:org+course+run keys.
func ValidCourseID(v string) bool {
	return slashCourseIDPattern.MatchString(v) || opaqueCourseIDPattern.MatchString(v)
}

// ParseCount reads an engagement counter. Integral floats such as "3.0" are
// accepted since some writers emit them for integer columns.
func ParseCount(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// ValidateReport runs every structural and value check over rep and returns the
// violations found. A clean report yields an empty, non-nil slice.
func ValidateReport(rep Report, exp ReportExpectation) []domain.Violation {
	v := &collector{file: rep.Name, out: make([]domain.Violation, 0)}

	if len(rep.Header) != NumColumns {
		v.add(0, "", RuleColumnsCount, strconv.Itoa(len(rep.Header)))
	}

	dateCol := v.column(rep, exp.Interval.DateColumn())
	courseCol := v.column(rep, ColumnCourseID)
	usernameCol := v.column(rep, ColumnUsername)
	emailCol := v.column(rep, ColumnEmail)
	cohortCol := v.column(rep, ColumnCohort)
	attemptedCol := v.column(rep, ColumnProblemsAttempted)
	correctCol := v.column(rep, ColumnProblemsCorrect)
	lastViewedCol := v.column(rep, ColumnLastSubsectionViewed)

	counterEnd := lastCounterColumn
	if len(rep.Header) < counterEnd {
		counterEnd = len(rep.Header)
	}

	for i := range rep.Rows {
		row := i + 1
		if len(rep.Rows[i]) != len(rep.Header) {
			v.add(row, "", RuleColumnsCount, strconv.Itoa(len(rep.Rows[i])))
		}

		if dateCol >= 0 {
			date := rep.Cell(i, dateCol)
			if !ValidDate(date) {
				v.add(row, rep.Header[dateCol], RuleDateFormat, date)
			} else if exp.ExpectedDate != "" && date != exp.ExpectedDate {
				v.add(row, rep.Header[dateCol], RuleDateMatchesFile, date)
			}
		}
		if usernameCol >= 0 {
			if name := rep.Cell(i, usernameCol); !ValidUsername(name) {
				v.add(row, ColumnUsername, RuleUsernameFormat, name)
			}
		}
		if emailCol >= 0 {
			if email := rep.Cell(i, emailCol); !ValidEmail(email) {
				v.add(row, ColumnEmail, RuleEmailFormat, email)
			}
		}
		if cohortCol >= 0 {
			if cohort := rep.Cell(i, cohortCol); !ValidCohort(cohort) {
				v.add(row, ColumnCohort, RuleCohortFormat, cohort)
			}
		}
		if courseCol >= 0 {
			course := rep.Cell(i, courseCol)
			if !ValidCourseID(course) {
				v.add(row, ColumnCourseID, RuleCourseIDFormat, course)
			}
			if exp.CourseID != "" && course != exp.CourseID {
				v.add(row, ColumnCourseID, RuleCourseIDMatches, course)
			}
		}

		nonzeroCounter := false
		for col := firstCounterColumn; col < counterEnd; col++ {
			raw := rep.Cell(i, col)
			n, ok := ParseCount(raw)
			if !ok || n < 0 {
				v.add(row, rep.Header[col], RuleCounterNonNegative, raw)
				continue
			}
			if n != 0 {
				nonzeroCounter = true
			}
		}

		if attemptedCol >= 0 && correctCol >= 0 {
			attempted, okA := ParseCount(rep.Cell(i, attemptedCol))
			correct, okC := ParseCount(rep.Cell(i, correctCol))
			if okA && okC && correct > attempted {
				v.add(row, ColumnProblemsCorrect, RuleCorrectLTEAttempted, rep.Cell(i, correctCol))
			}
		}

		if !exp.Nonzero {
			if nonzeroCounter {
				v.add(row, "", RuleZeroEngagement, "")
			}
			if lastViewedCol >= 0 {
				if last := rep.Cell(i, lastViewedCol); last != "" {
					v.add(row, ColumnLastSubsectionViewed, RuleLastSubsectionViewed, last)
				}
			}
		}
	}
	return v.out
}

type collector struct {
	file string
	out  []domain.Violation
}

func (c *collector) add(row int, column, rule, value string) {
	c.out = append(c.out, domain.Violation{File: c.file, Row: row, Column: column, Rule: rule, Value: value})
}

func (c *collector) column(rep Report, name string) int {
	idx, ok := rep.ColumnIndex(name)
	if !ok {
		c.add(0, name, RuleColumnMissing, "")
		return -1
	}
	return idx
}
