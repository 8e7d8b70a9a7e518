package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/domain"
	"pipeline-acceptance/internal/engagement"
	"pipeline-acceptance/internal/fixture"
)

const (
	AcceptanceWorkflowName      = "AcceptanceWorkflow"
	ValidateOutputsWorkflowName = "ValidateOutputsWorkflow"

	DefaultTestName         = "StudentEngagementAcceptanceTest"
	DefaultTrackingLog      = "student_engagement_acceptance_tracking.log"
	DefaultTrackingLogDate  = "2015-04-13"
	DefaultNumReducers      = 1
	maxReportedViolations   = 50
	errTypeInvalidRunConfig = "InvalidRunConfig"
)

type TrackingLogFixture struct {
	FileName string
	Date     string
}

type AcceptanceInput struct {
	RunID        string
	TestName     string
	Config       config.AcceptanceConfig
	TrackingLogs []TrackingLogFixture
	SQLFixtures  []string
	Intervals    []engagement.Interval
	Courses      []string
	NumReducers  int
	KeepOutputs  bool
	TaskTimeout  time.Duration
}

type ValidateInput struct {
	RunID      string
	TestName   string
	Identifier string
	TestRoot   string
	OutputRoot string
	Intervals  []engagement.Interval
	Courses    []string
}

type RunResult struct {
	RunID       string
	Status      domain.RunStatus
	TestRoot    string
	Files       int
	Violations  int
	FailedRules []string
	// Sample holds the first violations; the full list is in the run store.
	Sample []domain.Violation
	Error  string
}

func (in AcceptanceInput) withDefaults() AcceptanceInput {
	if in.TestName == "" {
		in.TestName = DefaultTestName
	}
	if len(in.TrackingLogs) == 0 {
		in.TrackingLogs = []TrackingLogFixture{{FileName: DefaultTrackingLog, Date: DefaultTrackingLogDate}}
	}
	if len(in.Intervals) == 0 {
		in.Intervals = engagement.Intervals
	}
	if len(in.Courses) == 0 {
		in.Courses = engagement.DefaultExpectations().Courses
	}
	if in.NumReducers <= 0 {
		in.NumReducers = in.Config.NumReducers()
	}
	if in.NumReducers <= 0 {
		in.NumReducers = DefaultNumReducers
	}
	return in
}

func AcceptanceWorkflow(ctx workflow.Context, input AcceptanceInput) (RunResult, error) {
	logger := workflow.GetLogger(ctx)
	input = input.withDefaults()

	h, err := fixture.New(input.Config, input.TestName)
	if err != nil {
		return RunResult{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeInvalidRunConfig, err)
	}
	ref := EnvironmentRef{RunID: input.RunID, TestName: input.TestName, Config: input.Config}

	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyRecordRun), (*Activities).RecordRunActivity, RecordRunInput{
		RunID:      input.RunID,
		TestName:   input.TestName,
		Identifier: h.Identifier,
		TestRoot:   h.TestRoot,
	}).Get(ctx, nil); err != nil {
		return RunResult{}, err
	}

	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyResetExternalState), (*Activities).ResetExternalStateActivity, ref).Get(ctx, nil); err != nil {
		return finishFailed(ctx, input.RunID, h.TestRoot, err)
	}

	result, runErr := provisionAndValidate(ctx, input, ref, h)
	var out RunResult
	if runErr != nil {
		out, err = finishFailed(ctx, input.RunID, h.TestRoot, runErr)
	} else {
		out, err = persist(ctx, input.RunID, h.TestRoot, result, "")
	}
	if err != nil {
		return RunResult{}, err
	}

	if !input.KeepOutputs {
		if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyTeardown), (*Activities).TeardownActivity, TeardownInput{Env: ref}).Get(ctx, nil); err != nil {
			logger.Warn("teardown failed", "run_id", input.RunID, "error", err)
		}
	}
	return out, nil
}

func provisionAndValidate(ctx workflow.Context, input AcceptanceInput, ref EnvironmentRef, h *fixture.Harness) (domain.ValidationResult, error) {
	uploadCtx := mustActivityContext(ctx, ActivityPolicyUploadTrackingLog)
	for _, f := range input.TrackingLogs {
		if err := workflow.ExecuteActivity(uploadCtx, (*Activities).UploadTrackingLogActivity, UploadTrackingLogInput{
			Env:      ref,
			FileName: f.FileName,
			Date:     f.Date,
		}).Get(ctx, nil); err != nil {
			return domain.ValidationResult{}, err
		}
	}

	sqlCtx := mustActivityContext(ctx, ActivityPolicyExecuteSQLFixture)
	for _, name := range input.SQLFixtures {
		if err := workflow.ExecuteActivity(sqlCtx, (*Activities).ExecuteSQLFixtureActivity, ExecuteSQLFixtureInput{
			Env:      ref,
			FileName: name,
		}).Get(ctx, nil); err != nil {
			return domain.ValidationResult{}, err
		}
	}

	taskCtx := mustActivityContext(ctx, ActivityPolicyRunTask)
	if input.TaskTimeout > 0 {
		ao := workflow.GetActivityOptions(taskCtx)
		ao.StartToCloseTimeout = input.TaskTimeout
		taskCtx = workflow.WithActivityOptions(ctx, ao)
	}
	for _, interval := range input.Intervals {
		if err := workflow.ExecuteActivity(taskCtx, (*Activities).RunTaskActivity, RunTaskInput{
			Env:         ref,
			Interval:    interval,
			NumReducers: input.NumReducers,
		}).Get(ctx, nil); err != nil {
			return domain.ValidationResult{}, err
		}
	}

	return validateOutputs(ctx, input.RunID, h.TestOut, input.Intervals, input.Courses)
}

// ValidateOutputsWorkflow validates an output tree produced outside of this service.
func ValidateOutputsWorkflow(ctx workflow.Context, input ValidateInput) (RunResult, error) {
	if len(input.Intervals) == 0 {
		input.Intervals = engagement.Intervals
	}
	if len(input.Courses) == 0 {
		input.Courses = engagement.DefaultExpectations().Courses
	}

	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyRecordRun), (*Activities).RecordRunActivity, RecordRunInput{
		RunID:      input.RunID,
		TestName:   input.TestName,
		Identifier: input.Identifier,
		TestRoot:   input.TestRoot,
	}).Get(ctx, nil); err != nil {
		return RunResult{}, err
	}

	result, err := validateOutputs(ctx, input.RunID, input.OutputRoot, input.Intervals, input.Courses)
	if err != nil {
		return finishFailed(ctx, input.RunID, input.TestRoot, err)
	}
	return persist(ctx, input.RunID, input.TestRoot, result, "")
}

func validateOutputs(ctx workflow.Context, runID, outputRoot string, intervals []engagement.Interval, courses []string) (domain.ValidationResult, error) {
	validateCtx := mustActivityContext(ctx, ActivityPolicyValidateCourse)

	futures := make([]workflow.Future, 0, len(intervals)*len(courses))
	for _, interval := range intervals {
		for _, course := range courses {
			futures = append(futures, workflow.ExecuteActivity(validateCtx, (*Activities).ValidateCourseActivity, ValidateCourseInput{
				RunID:      runID,
				OutputRoot: outputRoot,
				Interval:   interval,
				CourseID:   course,
			}))
		}
	}

	results := make([]domain.ValidationResult, 0, len(futures))
	for _, f := range futures {
		var res engagement.CourseResult
		if err := f.Get(ctx, &res); err != nil {
			return domain.ValidationResult{}, err
		}
		results = append(results, res.ValidationResult())
	}
	return domain.Merge(results...), nil
}

func persist(ctx workflow.Context, runID, testRoot string, result domain.ValidationResult, runErr string) (RunResult, error) {
	var persisted PersistResultOutput
	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyPersistResult), (*Activities).PersistResultActivity, PersistResultInput{
		RunID:  runID,
		Result: result,
		Error:  runErr,
	}).Get(ctx, &persisted); err != nil {
		return RunResult{}, err
	}

	sample := result.Violations
	if len(sample) > maxReportedViolations {
		sample = sample[:maxReportedViolations]
	}
	return RunResult{
		RunID:       runID,
		Status:      persisted.Status,
		TestRoot:    testRoot,
		Files:       len(result.Files),
		Violations:  len(result.Violations),
		FailedRules: result.FailedRules(),
		Sample:      sample,
		Error:       runErr,
	}, nil
}

func finishFailed(ctx workflow.Context, runID, testRoot string, cause error) (RunResult, error) {
	workflow.GetLogger(ctx).Error("acceptance run failed", "run_id", runID, "error", cause)
	return persist(ctx, runID, testRoot, domain.Merge(), cause.Error())
}
