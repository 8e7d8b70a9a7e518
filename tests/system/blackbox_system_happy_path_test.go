//go:build system

package system_test

import (
	"context"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/domain"
	"pipeline-acceptance/internal/storage"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig
	var acceptanceCfg config.AcceptanceConfig

	BeforeAll(func() {
		if os.Getenv("RUN_ACCEPTANCE_TEST") != "1" {
			Skip("set RUN_ACCEPTANCE_TEST=1 to run the pipeline acceptance test")
		}

		cfg = loadSystemTestConfig()
		acceptanceCfg = loadAcceptanceConfig()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+"/healthz", 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+"/readyz", 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.PostgresDSN)).To(Succeed())
	})

	It("starts a run over HTTP and passes validation via a real worker", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		By("starting a run exactly like a user")
		started, err := startRun(apiBaseURL, map[string]any{
			"config":       acceptanceCfg,
			"sql_fixtures": []string{cfg.SQLFixture},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(started.RunID).ToNot(BeEmpty())
		Expect(started.WorkflowID).ToNot(BeEmpty())
		Expect(started.Status).To(Equal(domain.StatusPending))
		Expect(started.TestRoot).To(ContainSubstring("StudentEngagementAcceptanceTest"))

		By("polling run status until the run is terminal")
		Eventually(func() domain.RunStatus {
			status, statusErr := getStatus(apiBaseURL, started.RunID)
			Expect(statusErr).ToNot(HaveOccurred())
			return status.Status
		}, cfg.RunCompletionTimeout, cfg.RunPollInterval).Should(Satisfy(domain.RunStatus.Terminal))

		By("checking the final result payload")
		result, err := getResult(apiBaseURL, started.RunID)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.ViolationList).To(BeEmpty())
		Expect(result.FailedRules).To(BeEmpty())
		Expect(result.Status).To(Equal(domain.StatusPassed))
		Expect(result.Files).To(Equal(51))
		Expect(result.Error).To(BeNil())

		By("checking the scheduled activities in Temporal workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		names, err := scheduledActivities(context.Background(), temporalClient, started.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(names)).To(BeNumerically(">", len(cfg.ExpectedActivityOrder)))
		Expect(names[:len(cfg.ExpectedActivityOrder)]).To(Equal(cfg.ExpectedActivityOrder))
		Expect(countOf(names, "ValidateCourseActivity")).To(Equal(9))
		Expect(names[len(names)-2:]).To(Equal([]string{"PersistResultActivity", "TeardownActivity"}))

		By("verifying audit records in Postgres")
		store, err := storage.NewPostgresStore(cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer store.Close()

		auditStates, err := store.ListAuditStates(context.Background(), started.RunID)
		Expect(err).ToNot(HaveOccurred())
		Expect(auditStates).To(ContainElements(
			domain.AuditReset,
			domain.AuditUploaded,
			domain.AuditSQLLoaded,
			domain.AuditTaskCompleted,
			domain.AuditValidated,
			domain.AuditPassed,
			domain.AuditTornDown,
		))
	})
})

func countOf(names []string, want string) int {
	n := 0
	for _, name := range names {
		if name == want {
			n++
		}
	}
	return n
}
