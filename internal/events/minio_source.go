package events

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"

	"pipeline-acceptance/internal/urlpath"
)

const (
	objectCreatedEvent = "s3:ObjectCreated:*"
	successMarker      = "_SUCCESS"
	markerDir          = "marker"
)

// CompletionEvent reports a finished pipeline run under prefix/identifier/testName.
type CompletionEvent struct {
	Bucket     string
	ObjectKey  string
	Identifier string
	TestName   string
	EventName  string
	// RootKey is the key of the run's test root inside Bucket.
	RootKey string
}

func (e CompletionEvent) TestRoot() string {
	return "s3://" + urlpath.Join(e.Bucket, e.RootKey)
}

func (e CompletionEvent) OutputRoot() string {
	return urlpath.Join(e.TestRoot(), "out")
}

type CompletionEventSource interface {
	Run(ctx context.Context, handler func(context.Context, CompletionEvent) error) error
}

type MinioCompletionEventSource struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioCompletionEventSource(client *minio.Client, bucket string, prefix string) *MinioCompletionEventSource {
	return &MinioCompletionEventSource{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *MinioCompletionEventSource) Run(ctx context.Context, handler func(context.Context, CompletionEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix, successMarker, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					continue
				}
				event, err := parseMarkerKey(s.prefix, objectKey)
				if err != nil {
					continue
				}
				event.Bucket = s.bucket
				event.EventName = record.EventName
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseMarkerKey accepts prefix/identifier/testName/marker/.../_SUCCESS.
func parseMarkerKey(prefix string, objectKey string) (CompletionEvent, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	rest := cleaned
	if prefix != "" {
		if !strings.HasPrefix(cleaned, prefix+"/") {
			return CompletionEvent{}, fmt.Errorf("object key %q is outside prefix %q", objectKey, prefix)
		}
		rest = strings.TrimPrefix(cleaned, prefix+"/")
	}

	parts := strings.Split(rest, "/")
	if len(parts) < 4 || parts[2] != markerDir || parts[len(parts)-1] != successMarker {
		return CompletionEvent{}, fmt.Errorf("object key %q is not a run marker", objectKey)
	}
	identifier := strings.TrimSpace(parts[0])
	testName := strings.TrimSpace(parts[1])
	if identifier == "" || testName == "" {
		return CompletionEvent{}, fmt.Errorf("object key %q missing identifier or test name", objectKey)
	}
	return CompletionEvent{
		ObjectKey:  cleaned,
		Identifier: identifier,
		TestName:   testName,
		RootKey:    urlpath.Join(prefix, identifier, testName),
	}, nil
}
