// Package engagement validates the student engagement CSV reports written by the
// pipeline under test.
package engagement

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"pipeline-acceptance/internal/urlpath"
)

type Interval string

const (
	IntervalDaily  Interval = "daily"
	IntervalWeekly Interval = "weekly"
	IntervalAll    Interval = "all"
)

var Intervals = []Interval{IntervalDaily, IntervalWeekly, IntervalAll}

func ParseInterval(v string) (Interval, error) {
	switch Interval(v) {
	case IntervalDaily, IntervalWeekly, IntervalAll:
		return Interval(v), nil
	}
	return "", fmt.Errorf("unknown interval type %q", v)
}

// DateColumn is "date" for daily reports and "end_date" otherwise.
func (i Interval) DateColumn() string {
	if i == IntervalDaily {
		return ColumnDate
	}
	return ColumnEndDate
}

const (
	ColumnDate                    = "date"
	ColumnEndDate                 = "end_date"
	ColumnCourseID                = "course_id"
	ColumnUsername                = "username"
	ColumnEmail                   = "email"
	ColumnCohort                  = "cohort"
	ColumnProblemAttempts         = "problem_attempts"
	ColumnProblemsAttempted       = "problems_attempted"
	ColumnProblemsCorrect         = "problems_correct"
	ColumnVideosViewed            = "videos_viewed"
	ColumnDiscussionContributions = "discussion_contributions"
	ColumnForumPosts              = "forum_posts"
	ColumnForumResponses          = "forum_responses"
	ColumnForumComments           = "forum_comments"
	ColumnTextbookPagesViewed     = "textbook_pages_viewed"
	ColumnLastSubsectionViewed    = "last_subsection_viewed"
)

const (
	NumColumns = 15

	// Engagement counters occupy columns [firstCounterColumn, lastCounterColumn).
	firstCounterColumn = 5
	lastCounterColumn  = 14
)

// Columns returns the report header for interval in file order.
func Columns(interval Interval) []string {
	return []string{
		interval.DateColumn(),
		ColumnCourseID,
		ColumnUsername,
		ColumnEmail,
		ColumnCohort,
		ColumnProblemAttempts,
		ColumnProblemsAttempted,
		ColumnProblemsCorrect,
		ColumnVideosViewed,
		ColumnDiscussionContributions,
		ColumnForumPosts,
		ColumnForumResponses,
		ColumnForumComments,
		ColumnTextbookPagesViewed,
		ColumnLastSubsectionViewed,
	}
}

const (
	Course1 = "edX/DemoX/Demo_Course"
	Course2 = "edX/DemoX/Demo_Course_2"
	Course3 = "course-v1:edX+DemoX+Demo_Course_2015"
)

// HashedCourseID names the per-course output directory.
func HashedCourseID(courseID string) string {
	sum := sha1.Sum([]byte(courseID))
	return hex.EncodeToString(sum[:])
}

func CourseDir(outputRoot string, interval Interval, courseID string) string {
	return urlpath.Join(outputRoot, string(interval), HashedCourseID(courseID))
}

func ReportFileName(interval Interval, date string) string {
	return fmt.Sprintf("student_engagement_%s_%s.csv", interval, date)
}
