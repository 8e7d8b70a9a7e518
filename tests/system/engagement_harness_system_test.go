//go:build system

package system_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pipeline-acceptance/internal/acceptance"
	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/domain"
	"pipeline-acceptance/internal/engagement"
	"pipeline-acceptance/internal/storage"
)

var _ = Describe("Student engagement through the harness", Ordered, func() {
	var (
		cfg     systemTestConfig
		env     *acceptance.Environment
		objects *storage.MinioStore
	)

	BeforeAll(func() {
		if os.Getenv("RUN_ACCEPTANCE_TEST") != "1" {
			Skip("set RUN_ACCEPTANCE_TEST=1 to run the pipeline acceptance test")
		}
		cfg = loadSystemTestConfig()
		acceptanceCfg := loadAcceptanceConfig()

		repoRoot, err := findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("failing fast if object storage is unreachable")
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())

		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, false)
		Expect(err).ToNot(HaveOccurred())

		env, err = acceptance.Open(context.Background(), acceptanceCfg, "StudentEngagementAcceptanceTest", acceptance.Deps{
			Objects:     objects,
			FixturesDir: filepath.Join(repoRoot, "testdata"),
			Launcher:    cfg.Launcher,
			TaskTimeout: time.Duration(config.DefaultTaskTimeoutSec) * time.Second,
		})
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(func() {
			Expect(env.Teardown(context.Background())).To(Succeed())
			Expect(env.Close()).To(Succeed())
		})

		Expect(env.Setup(context.Background())).To(Succeed())
	})

	It("produces reports that satisfy every engagement expectation", func(ctx SpecContext) {
		By("uploading the tracking log fixture")
		date := time.Date(2015, time.April, 13, 0, 0, 0, 0, time.UTC)
		url, err := env.UploadTrackingLog(ctx, "student_engagement_acceptance_tracking.log", date)
		Expect(err).ToNot(HaveOccurred())
		Expect(url).To(HaveSuffix("/src/FakeServerGroup/tracking.log-20150413.gz"))

		By("loading the user fixtures into the import database")
		Expect(env.ExecuteSQLFixtureFile(ctx, cfg.SQLFixture)).To(Succeed())

		By("running the engagement task for every interval")
		for _, interval := range engagement.Intervals {
			_, err := env.RunEngagement(ctx, interval, 1)
			Expect(err).ToNot(HaveOccurred(), "interval %s", interval)
		}

		By("validating the reports of every course")
		results, err := engagement.ValidateAll(ctx, storage.Objects{S3: objects}, env.TestOut, engagement.DefaultExpectations())
		Expect(err).ToNot(HaveOccurred())

		merged := make([]domain.ValidationResult, 0, len(results))
		for _, res := range results {
			merged = append(merged, res.ValidationResult())
		}
		all := domain.Merge(merged...)
		Expect(all.Violations).To(BeEmpty())
		Expect(all.Files).To(HaveLen(51))
	}, SpecTimeout(3*time.Hour))
})
