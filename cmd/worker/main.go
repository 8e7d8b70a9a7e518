package main

import (
	"context"
	"errors"
	"log"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"pipeline-acceptance/internal/acceptance"
	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/engagement"
	"pipeline-acceptance/internal/storage"
	appTemporal "pipeline-acceptance/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer store.Close()

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("connect minio: %v", err)
	}

	acceptanceCfg, err := config.LoadAcceptance()
	if err != nil && !errors.Is(err, config.ErrMissingKeys) {
		log.Fatalf("load acceptance config: %v", err)
	}
	bucket, _, err := acceptanceCfg.OutputBucket(cfg.MinioBucket)
	if err != nil {
		log.Fatalf("resolve output bucket: %v", err)
	}
	if bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := objects.EnsureBucket(ctx, bucket)
		cancel()
		if err != nil {
			log.Fatalf("ensure bucket %s: %v", bucket, err)
		}
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("connect temporal: %v", err)
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{
		Store: store,
		Environments: appTemporal.NewEnvironmentOpener(acceptance.Deps{
			Objects:     objects,
			FixturesDir: cfg.FixturesDir,
			Launcher:    cfg.Launcher,
			TaskTimeout: time.Duration(cfg.TaskTimeoutSec) * time.Second,
			KeepOutputs: cfg.KeepOutputs,
			CatalogURL:  cfg.CatalogURL,
		}),
		Outputs:      storage.Objects{S3: objects},
		Expectations: engagement.DefaultExpectations(),
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.AcceptanceWorkflow, workflow.RegisterOptions{Name: appTemporal.AcceptanceWorkflowName})
	w.RegisterWorkflowWithOptions(appTemporal.ValidateOutputsWorkflow, workflow.RegisterOptions{Name: appTemporal.ValidateOutputsWorkflowName})
	w.RegisterActivity(activities.RecordRunActivity)
	w.RegisterActivity(activities.ResetExternalStateActivity)
	w.RegisterActivity(activities.UploadTrackingLogActivity)
	w.RegisterActivity(activities.ExecuteSQLFixtureActivity)
	w.RegisterActivity(activities.RunTaskActivity)
	w.RegisterActivity(activities.ValidateCourseActivity)
	w.RegisterActivity(activities.PersistResultActivity)
	w.RegisterActivity(activities.TeardownActivity)

	log.Printf("worker running on task queue %s", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker stopped with error: %v", err)
	}
}
