package task

import (
	"context"
	"strconv"

	"pipeline-acceptance/internal/engagement"
	"pipeline-acceptance/internal/urlpath"
)

const EngagementTaskName = "StudentEngagementCsvFileTask"

// EngagementArgs are the task arguments producing the interval's reports under
// outputRoot/<interval>.
func EngagementArgs(outputRoot string, interval engagement.Interval, numReducers int) []string {
	if numReducers <= 0 {
		numReducers = 1
	}
	return []string{
		"--output-root", urlpath.Join(outputRoot, string(interval)),
		"--interval", engagement.ReportInterval(),
		"--interval-type", string(interval),
		"--n-reduce-tasks", strconv.Itoa(numReducers),
	}
}

func (l *Launcher) RunEngagement(ctx context.Context, outputRoot string, interval engagement.Interval, numReducers int) (string, error) {
	return l.RunTask(ctx, EngagementTaskName, EngagementArgs(outputRoot, interval, numReducers)...)
}
