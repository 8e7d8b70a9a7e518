package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/domain"
	"pipeline-acceptance/internal/engagement"
	"pipeline-acceptance/internal/fixture"
	appTemporal "pipeline-acceptance/internal/temporal"
)

type runStore interface {
	Ping(ctx context.Context) error
	CreateRun(ctx context.Context, rec domain.RunRecord) error
	GetRun(ctx context.Context, runID string) (domain.RunRecord, error)
	ListViolations(ctx context.Context, runID string) ([]domain.Violation, error)
	FailedRules(ctx context.Context, runID string) ([]string, error)
}

type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

type Handler struct {
	cfg            config.Config
	acceptance     config.AcceptanceConfig
	store          runStore
	temporalClient workflowStarter
	catalog        []byte
}

type trackingLogRequest struct {
	FileName string `json:"file_name"`
	Date     string `json:"date"`
}

type startRunRequest struct {
	Identifier   string                  `json:"identifier,omitempty"`
	TestName     string                  `json:"test_name,omitempty"`
	Config       config.AcceptanceConfig `json:"config"`
	TrackingLogs []trackingLogRequest    `json:"tracking_logs,omitempty"`
	SQLFixtures  []string                `json:"sql_fixtures,omitempty"`
	Intervals    []string                `json:"intervals,omitempty"`
	NumReducers  int                     `json:"num_reducers,omitempty"`
	KeepOutputs  bool                    `json:"keep_outputs,omitempty"`
}

type statusResponse struct {
	RunID    string           `json:"run_id"`
	Status   domain.RunStatus `json:"status"`
	TestRoot string           `json:"test_root"`
}

type resultResponse struct {
	domain.RunRecord
	FailedRules   []string           `json:"failed_rules"`
	ViolationList []domain.Violation `json:"violation_list"`
}

// NewHandler serves runs against the base acceptance config; request bodies may
// override any of its keys. catalog is the course catalog served to the pipeline.
func NewHandler(cfg config.Config, acceptance config.AcceptanceConfig, store runStore, temporalClient workflowStarter, catalog []byte) *Handler {
	return &Handler{cfg: cfg, acceptance: acceptance, store: store, temporalClient: temporalClient, catalog: catalog}
}

func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	acceptance := h.acceptance.Merge(req.Config)
	switch {
	case req.Identifier != "":
		acceptance = acceptance.With(config.KeyIdentifier, req.Identifier)
	case !acceptance.Has(config.KeyIdentifier):
		acceptance = acceptance.With(config.KeyIdentifier, uuid.NewString())
	}

	testName := req.TestName
	if testName == "" {
		testName = appTemporal.DefaultTestName
	}
	harness, err := fixture.New(acceptance, testName, fixture.WithKeepOutputs(req.KeepOutputs))
	if err != nil {
		var missing *config.MissingKeysError
		if errors.As(err, &missing) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "acceptance config is incomplete", "missing_keys": missing.Keys})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	intervals := make([]engagement.Interval, 0, len(req.Intervals))
	for _, v := range req.Intervals {
		interval, err := engagement.ParseInterval(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		intervals = append(intervals, interval)
	}
	logs := make([]appTemporal.TrackingLogFixture, 0, len(req.TrackingLogs))
	for _, l := range req.TrackingLogs {
		if l.FileName == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tracking log file_name is required"})
			return
		}
		if _, err := time.Parse("2006-01-02", l.Date); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tracking log date must be YYYY-MM-DD"})
			return
		}
		logs = append(logs, appTemporal.TrackingLogFixture{FileName: l.FileName, Date: l.Date})
	}

	runID := uuid.NewString()
	if err := h.store.CreateRun(ctx, domain.RunRecord{
		ID:         runID,
		TestName:   testName,
		Identifier: harness.Identifier,
		TestRoot:   harness.TestRoot,
		Status:     domain.StatusPending,
	}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to create run"})
		return
	}

	workflowID := h.workflowID(runID)
	_, err = h.temporalClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: h.cfg.TemporalTaskQueue,
	}, appTemporal.AcceptanceWorkflowName, appTemporal.AcceptanceInput{
		RunID:        runID,
		TestName:     testName,
		Config:       acceptance,
		TrackingLogs: logs,
		SQLFixtures:  req.SQLFixtures,
		Intervals:    intervals,
		NumReducers:  req.NumReducers,
		KeepOutputs:  req.KeepOutputs || h.cfg.KeepOutputs,
		TaskTimeout:  time.Duration(h.cfg.TaskTimeoutSec) * time.Second,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to start workflow"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":      runID,
		"workflow_id": workflowID,
		"identifier":  acceptance.Identifier(),
		"test_root":   harness.TestRoot,
		"status":      domain.StatusPending,
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request, runID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch status"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{RunID: runID, Status: rec.Status, TestRoot: rec.TestRoot})
}

func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request, runID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch result"})
		return
	}
	if !rec.Status.Terminal() {
		writeJSON(w, http.StatusConflict, statusResponse{RunID: runID, Status: rec.Status, TestRoot: rec.TestRoot})
		return
	}

	rules, err := h.store.FailedRules(ctx, runID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch result"})
		return
	}
	violations, err := h.store.ListViolations(ctx, runID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch result"})
		return
	}

	writeJSON(w, http.StatusOK, resultResponse{RunRecord: rec, FailedRules: rules, ViolationList: violations})
}

// Catalog serves the course catalog fixture the pipeline reads during a run.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.catalog)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) workflowID(runID string) string {
	return fmt.Sprintf("%s-%s", h.cfg.WorkflowIDPrefix, runID)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
