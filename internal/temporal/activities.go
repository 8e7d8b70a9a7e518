package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/domain"
	"pipeline-acceptance/internal/engagement"
)

const fixtureDateLayout = "2006-01-02"

type ActivityStore interface {
	CreateRun(ctx context.Context, rec domain.RunRecord) error
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error
	InsertAudit(ctx context.Context, runID string, state domain.AuditState, detail any) error
	SaveViolations(ctx context.Context, runID string, dir string, violations []domain.Violation) error
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, files int, violations int, runErr *string) error
}

// Environment is one provisioned acceptance run.
type Environment interface {
	// Setup logs the run coordinates and resets every external resource.
	Setup(ctx context.Context) error
	UploadTrackingLog(ctx context.Context, inputFileName string, date time.Time) (string, error)
	ExecuteSQLFixtureFile(ctx context.Context, sqlFileName string) error
	RunEngagement(ctx context.Context, interval engagement.Interval, numReducers int) (string, error)
	Teardown(ctx context.Context) error
	Close() error
}

type EnvironmentOpener interface {
	Open(ctx context.Context, cfg config.AcceptanceConfig, testName string) (Environment, error)
}

type Activities struct {
	Store        ActivityStore
	Environments EnvironmentOpener
	Outputs      engagement.OutputSource
	Expectations *engagement.Expectations
}

type EnvironmentRef struct {
	RunID    string
	TestName string
	Config   config.AcceptanceConfig
}

type RecordRunInput struct {
	RunID      string
	TestName   string
	Identifier string
	TestRoot   string
}

type UploadTrackingLogInput struct {
	Env      EnvironmentRef
	FileName string
	Date     string
}

type ExecuteSQLFixtureInput struct {
	Env      EnvironmentRef
	FileName string
}

type RunTaskInput struct {
	Env         EnvironmentRef
	Interval    engagement.Interval
	NumReducers int
}

type ValidateCourseInput struct {
	RunID      string
	OutputRoot string
	Interval   engagement.Interval
	CourseID   string
}

type PersistResultInput struct {
	RunID  string
	Result domain.ValidationResult
	Error  string
}

type PersistResultOutput struct {
	Status domain.RunStatus
}

type TeardownInput struct {
	Env EnvironmentRef
}

func (a *Activities) RecordRunActivity(ctx context.Context, input RecordRunInput) error {
	return a.Store.CreateRun(ctx, domain.RunRecord{
		ID:         input.RunID,
		TestName:   input.TestName,
		Identifier: input.Identifier,
		TestRoot:   input.TestRoot,
		Status:     domain.StatusPending,
	})
}

func (a *Activities) ResetExternalStateActivity(ctx context.Context, ref EnvironmentRef) error {
	if err := a.Store.UpdateRunStatus(ctx, ref.RunID, domain.StatusResetting); err != nil {
		return err
	}
	err := a.withEnvironment(ctx, ref, func(env Environment) error {
		return env.Setup(ctx)
	})
	if err != nil {
		return err
	}
	if err := a.Store.UpdateRunStatus(ctx, ref.RunID, domain.StatusProvisioned); err != nil {
		return err
	}
	return a.Store.InsertAudit(ctx, ref.RunID, domain.AuditReset, nil)
}

func (a *Activities) UploadTrackingLogActivity(ctx context.Context, input UploadTrackingLogInput) (string, error) {
	date, err := time.Parse(fixtureDateLayout, input.Date)
	if err != nil {
		return "", fmt.Errorf("tracking log date: %w", err)
	}
	var dest string
	err = a.withEnvironment(ctx, input.Env, func(env Environment) error {
		var err error
		dest, err = env.UploadTrackingLog(ctx, input.FileName, date)
		return err
	})
	if err != nil {
		return "", err
	}
	return dest, a.Store.InsertAudit(ctx, input.Env.RunID, domain.AuditUploaded, map[string]any{"file": input.FileName, "dest": dest})
}

func (a *Activities) ExecuteSQLFixtureActivity(ctx context.Context, input ExecuteSQLFixtureInput) error {
	err := a.withEnvironment(ctx, input.Env, func(env Environment) error {
		return env.ExecuteSQLFixtureFile(ctx, input.FileName)
	})
	if err != nil {
		return err
	}
	return a.Store.InsertAudit(ctx, input.Env.RunID, domain.AuditSQLLoaded, map[string]any{"file": input.FileName})
}

func (a *Activities) RunTaskActivity(ctx context.Context, input RunTaskInput) error {
	logger := activity.GetLogger(ctx)
	if err := a.Store.UpdateRunStatus(ctx, input.Env.RunID, domain.StatusRunningTask); err != nil {
		return err
	}
	var output string
	err := a.withEnvironment(ctx, input.Env, func(env Environment) error {
		var err error
		output, err = env.RunEngagement(ctx, input.Interval, input.NumReducers)
		return err
	})
	if err != nil {
		logger.Error("pipeline task failed", "interval", input.Interval, "error", err)
		return err
	}
	logger.Info("pipeline task completed", "interval", input.Interval)
	return a.Store.InsertAudit(ctx, input.Env.RunID, domain.AuditTaskCompleted, map[string]any{
		"interval": input.Interval,
		"output":   tail(output, 2048),
	})
}

func (a *Activities) ValidateCourseActivity(ctx context.Context, input ValidateCourseInput) (engagement.CourseResult, error) {
	if err := a.Store.UpdateRunStatus(ctx, input.RunID, domain.StatusValidating); err != nil {
		return engagement.CourseResult{}, err
	}
	exp := a.Expectations
	if exp == nil {
		exp = engagement.DefaultExpectations()
	}
	res, err := engagement.ValidateCourse(ctx, a.Outputs, input.OutputRoot, input.Interval, input.CourseID, exp)
	if err != nil {
		return engagement.CourseResult{}, err
	}
	if err := a.Store.SaveViolations(ctx, input.RunID, res.Dir, res.Violations); err != nil {
		return engagement.CourseResult{}, err
	}
	activity.GetLogger(ctx).Info("validated course output",
		"interval", input.Interval, "course", input.CourseID,
		"files", len(res.Files), "violations", len(res.Violations))
	return res, nil
}

func (a *Activities) PersistResultActivity(ctx context.Context, input PersistResultInput) (PersistResultOutput, error) {
	status := domain.StatusFor(input.Result)
	var runErr *string
	if input.Error != "" {
		status = domain.StatusFailed
		runErr = &input.Error
	}
	if err := a.Store.FinishRun(ctx, input.RunID, status, len(input.Result.Files), len(input.Result.Violations), runErr); err != nil {
		return PersistResultOutput{}, err
	}
	if err := a.Store.InsertAudit(ctx, input.RunID, domain.AuditValidated, map[string]any{
		"files":        len(input.Result.Files),
		"failed_rules": input.Result.FailedRules(),
	}); err != nil {
		return PersistResultOutput{}, err
	}
	final := domain.AuditPassed
	if status == domain.StatusFailed {
		final = domain.AuditFailed
	}
	detail := map[string]any{"violations": len(input.Result.Violations)}
	if runErr != nil {
		detail["error"] = *runErr
	}
	if err := a.Store.InsertAudit(ctx, input.RunID, final, detail); err != nil {
		return PersistResultOutput{}, err
	}
	return PersistResultOutput{Status: status}, nil
}

func (a *Activities) TeardownActivity(ctx context.Context, input TeardownInput) error {
	err := a.withEnvironment(ctx, input.Env, func(env Environment) error {
		return env.Teardown(ctx)
	})
	if err != nil {
		return err
	}
	return a.Store.InsertAudit(ctx, input.Env.RunID, domain.AuditTornDown, nil)
}

func (a *Activities) withEnvironment(ctx context.Context, ref EnvironmentRef, fn func(Environment) error) error {
	env, err := a.Environments.Open(ctx, ref.Config, ref.TestName)
	if err != nil {
		return fmt.Errorf("open environment: %w", err)
	}
	defer func() { _ = env.Close() }()
	return fn(env)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
