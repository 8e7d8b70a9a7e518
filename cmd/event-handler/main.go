package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/events"
	"pipeline-acceptance/internal/storage"
	appTemporal "pipeline-acceptance/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	acceptance, err := config.LoadAcceptance()
	if err != nil && !errors.Is(err, config.ErrMissingKeys) {
		log.Fatalf("load acceptance config: %v", err)
	}
	bucket, prefix, err := acceptance.OutputBucket(cfg.MinioBucket)
	if err != nil {
		log.Fatalf("resolve output bucket: %v", err)
	}
	if bucket == "" {
		log.Fatalf("MINIO_BUCKET or an s3 tasks_output_url is required")
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("connect minio: %v", err)
	}
	if err := ensureBucket(objects, bucket); err != nil {
		log.Fatalf("ensure bucket %s: %v", bucket, err)
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("connect temporal: %v", err)
	}
	defer temporalClient.Close()

	source := events.NewMinioCompletionEventSource(objects.Client(), bucket, prefix)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("event-handler listening for run markers on bucket=%s prefix=%s", bucket, prefix)
	err = source.Run(ctx, func(parent context.Context, event events.CompletionEvent) error {
		workflowID := fmt.Sprintf("%s-validate-%s-%s", cfg.WorkflowIDPrefix, event.Identifier, event.TestName)
		execCtx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()

		_, startErr := temporalClient.ExecuteWorkflow(execCtx, client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: cfg.TemporalTaskQueue,
		}, appTemporal.ValidateOutputsWorkflowName, appTemporal.ValidateInput{
			RunID:      workflowID,
			TestName:   event.TestName,
			Identifier: event.Identifier,
			TestRoot:   event.TestRoot(),
			OutputRoot: event.OutputRoot(),
		})
		if startErr != nil {
			var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
			if errors.As(startErr, &alreadyStarted) {
				log.Printf("workflow already started for marker=%s workflow_id=%s", event.ObjectKey, workflowID)
				return nil
			}
			return fmt.Errorf("start workflow for marker %s: %w", event.ObjectKey, startErr)
		}

		log.Printf("started workflow workflow_id=%s marker=%s", workflowID, event.ObjectKey)
		return nil
	})
	if err != nil {
		log.Fatalf("event-handler stopped with error: %v", err)
	}
}

func ensureBucket(objects *storage.MinioStore, bucket string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return objects.EnsureBucket(ctx, bucket)
}
