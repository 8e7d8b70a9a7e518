// Package fixture provisions and tears down the per-run state an acceptance run
// needs: an isolated output tree, scratch databases and warehouse locations.
package fixture

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/urlpath"
)

const (
	DefaultCatalogURL = "http://acceptance.test/api/courses/v2"
	DefaultPattern    = `.*tracking.log-(?P<date>\d{8}).*\.gz`

	trackingLogServer = "FakeServerGroup"
)

type ObjectStore interface {
	RemoveRecursive(ctx context.Context, location string) error
	PutFile(ctx context.Context, localPath, dest string) error
}

type Resetter interface {
	Reset(ctx context.Context) error
}

type ImportDatabase interface {
	Resetter
	ExecuteSQLFile(ctx context.Context, path string) error
}

// Services are the external collaborators a harness resets. Nil members are skipped.
type Services struct {
	Objects  ObjectStore
	ImportDB ImportDatabase
	ExportDB Resetter
	Hive     Resetter
	Vertica  Resetter
}

// Logger matches the key/value logger used by Temporal activities.
type Logger interface {
	Info(msg string, keyvals ...interface{})
}

type stdLogger struct{}

func (stdLogger) Info(msg string, keyvals ...interface{}) {
	log.Println(append([]interface{}{msg}, keyvals...)...)
}

type Harness struct {
	Config   config.AcceptanceConfig
	TestName string
	// Identifier is the md5 hex digest of the configured identifier. Reusing an
	// identifier reuses the same output tree and databases.
	Identifier string

	TestRoot      string
	TestSrc       string
	TestOut       string
	WarehousePath string
	MarkerPath    string
	ManifestPath  string
	CatalogURL    string

	DatabaseName       string
	ImportDatabaseName string
	ExportDatabaseName string
	Schema             string

	DataDir     string
	Patterns    []string
	KeepOutputs bool

	services Services
	logger   Logger
}

type Option func(*Harness)

func WithDataDir(dir string) Option {
	return func(h *Harness) { h.DataDir = dir }
}

func WithCatalogURL(u string) Option {
	return func(h *Harness) { h.CatalogURL = u }
}

func WithPatterns(patterns ...string) Option {
	return func(h *Harness) { h.Patterns = append([]string(nil), patterns...) }
}

func WithKeepOutputs(keep bool) Option {
	return func(h *Harness) { h.KeepOutputs = keep }
}

func WithLogger(l Logger) Option {
	return func(h *Harness) { h.logger = l }
}

func RunIdentifier(identifier string) string {
	sum := md5.Sum([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

func New(cfg config.AcceptanceConfig, testName string, opts ...Option) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if testName == "" {
		return nil, fmt.Errorf("test name is required")
	}

	id := RunIdentifier(cfg.Identifier())
	root := urlpath.Join(cfg.TasksOutputURL(), id, testName)
	database := "test_" + id

	h := &Harness{
		Config:             cfg,
		TestName:           testName,
		Identifier:         id,
		TestRoot:           root,
		TestSrc:            urlpath.Join(root, "src"),
		TestOut:            urlpath.Join(root, "out"),
		WarehousePath:      urlpath.Join(root, "warehouse"),
		MarkerPath:         urlpath.Join(root, "marker"),
		ManifestPath:       urlpath.Join(root, "manifest"),
		CatalogURL:         DefaultCatalogURL,
		DatabaseName:       database,
		ImportDatabaseName: "import_" + database,
		ExportDatabaseName: "export_" + database,
		Schema:             database,
		DataDir:            "testdata",
		Patterns:           []string{DefaultPattern},
		logger:             stdLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Harness) Attach(s Services) {
	h.services = s
}

// Setup logs the run coordinates and resets all external state.
func (h *Harness) Setup(ctx context.Context) error {
	h.logger.Info("running acceptance test", "test", h.TestName)
	h.logger.Info("using executor", "identifier", h.Config.Identifier())
	h.logger.Info("generated test identifier", "identifier", h.Identifier, "test_root", h.TestRoot)
	return h.ResetExternalState(ctx)
}

// ResetExternalState removes the output tree and recreates every scratch database.
// The first failure stops the reset.
func (h *Harness) ResetExternalState(ctx context.Context) error {
	if h.services.Objects != nil {
		if err := h.services.Objects.RemoveRecursive(ctx, h.TestRoot); err != nil {
			return fmt.Errorf("remove test root: %w", err)
		}
	}
	steps := []struct {
		name string
		svc  Resetter
	}{
		{"import database", h.services.ImportDB},
		{"export database", h.services.ExportDB},
		{"hive", h.services.Hive},
		{"vertica", h.services.Vertica},
	}
	for _, step := range steps {
		if step.svc == nil {
			continue
		}
		if err := step.svc.Reset(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", step.name, err)
		}
	}
	return nil
}

func (h *Harness) Teardown(ctx context.Context) error {
	if h.KeepOutputs {
		h.logger.Info("keeping acceptance outputs", "test_root", h.TestRoot)
		return nil
	}
	return h.ResetExternalState(ctx)
}

// TrackingLogURL is where a tracking log for date lands so the default event log
// pattern matches it.
func (h *Harness) TrackingLogURL(date time.Time) string {
	return urlpath.Join(h.TestSrc, trackingLogServer, fmt.Sprintf("tracking.log-%s.gz", date.Format("20060102")))
}

func (h *Harness) UploadTrackingLog(ctx context.Context, inputFileName string, date time.Time) (string, error) {
	if h.services.Objects == nil {
		return "", fmt.Errorf("no object store attached")
	}
	compressed, err := gzipFile(filepath.Join(h.DataDir, "input", inputFileName))
	if err != nil {
		return "", err
	}
	defer os.Remove(compressed)

	dest := h.TrackingLogURL(date)
	if err := h.services.Objects.PutFile(ctx, compressed, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (h *Harness) ExecuteSQLFixtureFile(ctx context.Context, sqlFileName string) error {
	if h.services.ImportDB == nil {
		return fmt.Errorf("no import database attached")
	}
	return h.services.ImportDB.ExecuteSQLFile(ctx, filepath.Join(h.DataDir, "input", sqlFileName))
}

func gzipFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", filepath.Base(path)+"-*.gz")
	if err != nil {
		return "", err
	}
	zw := gzip.NewWriter(tmp)
	if _, err := io.Copy(zw, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
