package temporal

import (
	"context"

	"go.temporal.io/sdk/activity"

	"pipeline-acceptance/internal/acceptance"
	"pipeline-acceptance/internal/config"
)

type EnvironmentOpenerFunc func(ctx context.Context, cfg config.AcceptanceConfig, testName string) (Environment, error)

func (f EnvironmentOpenerFunc) Open(ctx context.Context, cfg config.AcceptanceConfig, testName string) (Environment, error) {
	return f(ctx, cfg, testName)
}

// NewEnvironmentOpener opens real scratch services. Harness logs go to the
// calling activity's logger.
func NewEnvironmentOpener(deps acceptance.Deps) EnvironmentOpener {
	return EnvironmentOpenerFunc(func(ctx context.Context, cfg config.AcceptanceConfig, testName string) (Environment, error) {
		d := deps
		if activity.IsActivity(ctx) {
			d.Logger = activity.GetLogger(ctx)
		}
		env, err := acceptance.Open(ctx, cfg, testName, d)
		if err != nil {
			return nil, err
		}
		return env, nil
	})
}
