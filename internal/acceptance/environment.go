// Package acceptance assembles a fixture harness and its external services for one
// acceptance run.
package acceptance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/engagement"
	"pipeline-acceptance/internal/fixture"
	"pipeline-acceptance/internal/storage"
	"pipeline-acceptance/internal/task"
)

type Deps struct {
	// Objects is the S3 store holding the run tree. May be nil when only local
	// outputs are validated.
	Objects     *storage.MinioStore
	FixturesDir string
	Launcher    string
	TaskTimeout time.Duration
	KeepOutputs bool
	CatalogURL  string
	Logger      fixture.Logger
}

type Environment struct {
	*fixture.Harness
	Launcher *task.Launcher

	closers []io.Closer
}

func (d Deps) harnessOptions() []fixture.Option {
	opts := []fixture.Option{fixture.WithKeepOutputs(d.KeepOutputs)}
	if d.FixturesDir != "" {
		opts = append(opts, fixture.WithDataDir(d.FixturesDir))
	}
	if d.CatalogURL != "" {
		opts = append(opts, fixture.WithCatalogURL(d.CatalogURL))
	}
	if d.Logger != nil {
		opts = append(opts, fixture.WithLogger(d.Logger))
	}
	return opts
}

// Layout computes the run locations without touching any external service.
func Layout(cfg config.AcceptanceConfig, testName string, deps Deps) (*fixture.Harness, error) {
	return fixture.New(cfg, testName, deps.harnessOptions()...)
}

// Open connects every scratch service named by cfg. Close releases them.
func Open(ctx context.Context, cfg config.AcceptanceConfig, testName string, deps Deps) (*Environment, error) {
	h, err := fixture.New(cfg, testName, deps.harnessOptions()...)
	if err != nil {
		return nil, err
	}
	env := &Environment{Harness: h, Launcher: task.NewLauncher(deps.Launcher, h, deps.TaskTimeout)}

	reader := storage.Objects{S3: deps.Objects}
	services := fixture.Services{
		Hive: task.NewHiveService(env.Launcher, h.DatabaseName, h.WarehousePath),
	}
	if deps.Objects != nil {
		services.Objects = deps.Objects
	}

	creds, err := storage.FetchCredentials(ctx, reader, cfg.CredentialsFileURL(), storage.DefaultMySQLPort)
	if err != nil {
		return nil, fmt.Errorf("database credentials: %w", err)
	}
	importDB, err := env.openDatabase(creds, h.ImportDatabaseName)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	exportDB, err := env.openDatabase(creds, h.ExportDatabaseName)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	services.ImportDB = importDB
	services.ExportDB = exportDB

	vcreds, err := storage.FetchCredentials(ctx, reader, cfg.VerticaCredsURL(), storage.DefaultVerticaPort)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("vertica credentials: %w", err)
	}
	vdb, err := storage.OpenVertica(vcreds)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	vertica, err := storage.NewVerticaService(vdb, h.Schema)
	if err != nil {
		_ = vdb.Close()
		_ = env.Close()
		return nil, err
	}
	env.closers = append(env.closers, vertica)
	services.Vertica = vertica

	h.Attach(services)
	return env, nil
}

func (e *Environment) openDatabase(creds storage.Credentials, name string) (*storage.DatabaseService, error) {
	db, err := storage.OpenMySQL(creds)
	if err != nil {
		return nil, err
	}
	svc, err := storage.NewDatabaseService(db, name)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	e.closers = append(e.closers, svc)
	return svc, nil
}

func (e *Environment) RunEngagement(ctx context.Context, interval engagement.Interval, numReducers int) (string, error) {
	return e.Launcher.RunEngagement(ctx, e.TestOut, interval, numReducers)
}

func (e *Environment) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}
