package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"pipeline-acceptance/internal/config"
)

const (
	ActivityPolicyRecordRun          = "record_run"
	ActivityPolicyResetExternalState = "reset_external_state"
	ActivityPolicyUploadTrackingLog  = "upload_tracking_log"
	ActivityPolicyExecuteSQLFixture  = "execute_sql_fixture"
	ActivityPolicyRunTask            = "run_task"
	ActivityPolicyValidateCourse     = "validate_course"
	ActivityPolicyPersistResult      = "persist_result"
	ActivityPolicyTeardown           = "teardown"
)

type activityPolicy struct {
	StartToCloseTimeout time.Duration
	HeartbeatTimeout    time.Duration
	RetryPolicy         temporal.RetryPolicy
}

var defaultRetry = temporal.RetryPolicy{
	InitialInterval:    1 * time.Second,
	BackoffCoefficient: 2,
	MaximumInterval:    10 * time.Second,
	MaximumAttempts:    3,
}

var noRetry = temporal.RetryPolicy{MaximumAttempts: 1}

var activityPolicies = map[string]activityPolicy{
	ActivityPolicyRecordRun: {
		StartToCloseTimeout: 1 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
	ActivityPolicyResetExternalState: {
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
	ActivityPolicyUploadTrackingLog: {
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
	ActivityPolicyExecuteSQLFixture: {
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
	// Pipeline tasks are not idempotent and validation failures are final.
	ActivityPolicyRunTask: {
		StartToCloseTimeout: time.Duration(config.DefaultTaskTimeoutSec) * time.Second,
		RetryPolicy:         noRetry,
	},
	ActivityPolicyValidateCourse: {
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         noRetry,
	},
	ActivityPolicyPersistResult: {
		StartToCloseTimeout: 1 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
	ActivityPolicyTeardown: {
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
}

func ActivityOptionsFor(policyName string) (workflow.ActivityOptions, error) {
	policy, ok := activityPolicies[policyName]
	if !ok {
		return workflow.ActivityOptions{}, fmt.Errorf("unknown activity policy: %s", policyName)
	}

	retry := policy.RetryPolicy
	return workflow.ActivityOptions{
		StartToCloseTimeout: policy.StartToCloseTimeout,
		HeartbeatTimeout:    policy.HeartbeatTimeout,
		RetryPolicy:         &retry,
	}, nil
}

func mustActivityContext(ctx workflow.Context, policyName string) workflow.Context {
	ao, err := ActivityOptionsFor(policyName)
	if err != nil {
		panic(err)
	}
	return workflow.WithActivityOptions(ctx, ao)
}
