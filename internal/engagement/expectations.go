package engagement

import (
	"fmt"
	"regexp"
)

var reportDatePattern = regexp.MustCompile(`.*student_engagement_.*_(\d\d\d\d-\d\d-\d\d)\.csv`)

type periodKey struct {
	CourseID string
	Date     string
	Interval Interval
}

// Expectations describes what a correct pipeline run produces for one input fixture.
type Expectations struct {
	Courses []string
	// AllEndDate is the date reported by the single "all" interval file.
	AllEndDate string
	FileCounts map[Interval]int
	nonzero    map[periodKey]struct{}
}

func NewExpectations(courses []string, allEndDate string, fileCounts map[Interval]int) *Expectations {
	return &Expectations{
		Courses:    append([]string(nil), courses...),
		AllEndDate: allEndDate,
		FileCounts: fileCounts,
		nonzero:    make(map[periodKey]struct{}),
	}
}

// AddNonzero marks a course period whose report is expected to carry activity.
func (e *Expectations) AddNonzero(courseID, date string, interval Interval) *Expectations {
	e.nonzero[periodKey{CourseID: courseID, Date: date, Interval: interval}] = struct{}{}
	return e
}

func (e *Expectations) IsNonzero(courseID, date string, interval Interval) bool {
	_, ok := e.nonzero[periodKey{CourseID: courseID, Date: date, Interval: interval}]
	return ok
}

// ExpectedDate returns the date every row of the given report must carry.
func (e *Expectations) ExpectedDate(interval Interval, fileName string) (string, error) {
	if interval == IntervalAll {
		return e.AllEndDate, nil
	}
	m := reportDatePattern.FindStringSubmatch(fileName)
	if m == nil {
		return "", fmt.Errorf("report name %q carries no date", fileName)
	}
	return m[1], nil
}

// DefaultExpectations matches the student_engagement_acceptance_tracking.log fixture
// processed over the 2015-04-06..2015-04-20 window.
func DefaultExpectations() *Expectations {
	e := NewExpectations([]string{Course1, Course2, Course3}, "2015-04-19", map[Interval]int{
		IntervalDaily:  14,
		IntervalWeekly: 2,
		IntervalAll:    1,
	})
	e.AddNonzero(Course1, "2015-04-13", IntervalDaily).
		AddNonzero(Course1, "2015-04-16", IntervalDaily).
		AddNonzero(Course2, "2015-04-13", IntervalDaily).
		AddNonzero(Course2, "2015-04-16", IntervalDaily).
		AddNonzero(Course3, "2015-04-09", IntervalDaily).
		AddNonzero(Course3, "2015-04-12", IntervalDaily).
		AddNonzero(Course3, "2015-04-13", IntervalDaily).
		AddNonzero(Course3, "2015-04-16", IntervalDaily).
		AddNonzero(Course1, "2015-04-19", IntervalWeekly).
		AddNonzero(Course2, "2015-04-19", IntervalWeekly).
		AddNonzero(Course3, "2015-04-12", IntervalWeekly).
		AddNonzero(Course3, "2015-04-19", IntervalWeekly).
		AddNonzero(Course1, "2015-04-19", IntervalAll).
		AddNonzero(Course2, "2015-04-19", IntervalAll).
		AddNonzero(Course3, "2015-04-19", IntervalAll)
	return e
}

const (
	ReportIntervalStart = "2015-04-06"
	ReportIntervalEnd   = "2015-04-20"
)

// ReportInterval is the pipeline interval argument covering the fixture window.
func ReportInterval() string {
	return ReportIntervalStart + "-" + ReportIntervalEnd
}
