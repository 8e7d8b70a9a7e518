package temporal

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"pipeline-acceptance/internal/domain"
	"pipeline-acceptance/internal/engagement"
	"pipeline-acceptance/internal/fixture"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	recordIn   *RecordRunInput
	uploadIn   *UploadTrackingLogInput
	uploadOut  string
	taskIn     *RunTaskInput
	validateIn []ValidateCourseInput
	persistIn  *PersistResultInput
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

var _ = Describe("AcceptanceWorkflow blackbox happy path", func() {
	It("provisions fixtures, runs the task, validates reports and tears down", func() {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()

		h, err := fixture.New(acceptanceConfig(), "StudentEngagementAcceptanceTest")
		Expect(err).ToNot(HaveOccurred())

		store := newFakeStore()
		fenv := &fakeEnv{}
		acts := &Activities{
			Store:        store,
			Environments: &fakeOpener{env: fenv},
			Outputs:      outputsWithQuietDay(h.TestOut),
			Expectations: singleDayExpectations(),
		}

		trace := &activityTrace{}

		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "RecordRunActivity":
				var in RecordRunInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.recordIn = &in
				trace.mu.Unlock()
			case "UploadTrackingLogActivity":
				var in UploadTrackingLogInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.uploadIn = &in
				trace.mu.Unlock()
			case "RunTaskActivity":
				var in RunTaskInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.taskIn = &in
				trace.mu.Unlock()
			case "ValidateCourseActivity":
				var in ValidateCourseInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.validateIn = append(trace.validateIn, in)
				trace.mu.Unlock()
			case "PersistResultActivity":
				var in PersistResultInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.persistIn = &in
				trace.mu.Unlock()
			}
		})

		env.SetOnActivityCompletedListener(func(info *activity.Info, result converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)

			if info.ActivityType.Name == "UploadTrackingLogActivity" {
				var out string
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.uploadOut = out
				trace.mu.Unlock()
			}
		})

		env.RegisterWorkflow(AcceptanceWorkflow)
		env.RegisterActivity(acts.RecordRunActivity)
		env.RegisterActivity(acts.ResetExternalStateActivity)
		env.RegisterActivity(acts.UploadTrackingLogActivity)
		env.RegisterActivity(acts.ExecuteSQLFixtureActivity)
		env.RegisterActivity(acts.RunTaskActivity)
		env.RegisterActivity(acts.ValidateCourseActivity)
		env.RegisterActivity(acts.PersistResultActivity)
		env.RegisterActivity(acts.TeardownActivity)

		runID := "run-happy-blackbox-1"

		By("starting the workflow with a complete acceptance config")
		input := AcceptanceInput{
			RunID:       runID,
			Config:      acceptanceConfig(),
			SQLFixtures: []string{"load_auth_userprofile.sql"},
			Intervals:   []engagement.Interval{engagement.IntervalDaily},
			Courses:     []string{testCourse},
		}
		env.ExecuteWorkflow(AcceptanceWorkflow, input)

		By("validating workflow completes successfully")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		var wfResult RunResult
		Expect(env.GetWorkflowResult(&wfResult)).To(Succeed())
		Expect(wfResult.RunID).To(Equal(runID))
		Expect(wfResult.Status).To(Equal(domain.StatusPassed))
		Expect(wfResult.TestRoot).To(Equal(h.TestRoot))
		Expect(wfResult.Files).To(Equal(1))
		Expect(wfResult.Violations).To(Equal(0))
		Expect(wfResult.FailedRules).To(BeEmpty())

		By("validating each activity ran once in order")
		expectedOrder := []string{
			"RecordRunActivity",
			"ResetExternalStateActivity",
			"UploadTrackingLogActivity",
			"ExecuteSQLFixtureActivity",
			"RunTaskActivity",
			"ValidateCourseActivity",
			"PersistResultActivity",
			"TeardownActivity",
		}
		Expect(trace.startedOrder).To(Equal(expectedOrder))
		Expect(trace.completedOrder).To(Equal(expectedOrder))

		Expect(trace.recordIn).ToNot(BeNil())
		Expect(trace.recordIn.TestName).To(Equal(DefaultTestName))
		Expect(trace.recordIn.Identifier).To(Equal(h.Identifier))

		Expect(trace.uploadIn).ToNot(BeNil())
		Expect(trace.uploadIn.FileName).To(Equal(DefaultTrackingLog))
		Expect(trace.uploadIn.Date).To(Equal(DefaultTrackingLogDate))
		Expect(trace.uploadOut).To(HaveSuffix("tracking.log-20150413.gz"))

		Expect(trace.taskIn).ToNot(BeNil())
		Expect(trace.taskIn.Interval).To(Equal(engagement.IntervalDaily))
		Expect(trace.taskIn.NumReducers).To(Equal(DefaultNumReducers))

		Expect(trace.validateIn).To(HaveLen(1))
		Expect(trace.validateIn[0].OutputRoot).To(Equal(h.TestOut))
		Expect(trace.validateIn[0].CourseID).To(Equal(testCourse))

		Expect(trace.persistIn).ToNot(BeNil())
		Expect(trace.persistIn.Result.Files).To(HaveLen(1))
		Expect(trace.persistIn.Error).To(BeEmpty())

		By("validating persisted side effects from activities and workflow")
		store.mu.Lock()
		rec, ok := store.runs[runID]
		statuses := append([]domain.RunStatus(nil), store.statuses[runID]...)
		auditStates := append([]domain.AuditState(nil), store.audit[runID]...)
		finished := store.finished[runID]
		store.mu.Unlock()

		Expect(ok).To(BeTrue())
		Expect(rec.TestRoot).To(Equal(h.TestRoot))
		Expect(rec.Status).To(Equal(domain.StatusPending))
		Expect(statuses).To(Equal([]domain.RunStatus{
			domain.StatusResetting,
			domain.StatusProvisioned,
			domain.StatusRunningTask,
			domain.StatusValidating,
		}))
		Expect(auditStates).To(Equal([]domain.AuditState{
			domain.AuditReset,
			domain.AuditUploaded,
			domain.AuditSQLLoaded,
			domain.AuditTaskCompleted,
			domain.AuditValidated,
			domain.AuditPassed,
			domain.AuditTornDown,
		}))
		Expect(finished.status).To(Equal(domain.StatusPassed))
		Expect(finished.files).To(Equal(1))

		Expect(fenv.Calls()).To(Equal([]string{
			"setup",
			"upload " + DefaultTrackingLog + " 20150413",
			"sql load_auth_userprofile.sql",
			"task daily 1",
			"teardown",
		}))
	})
})
