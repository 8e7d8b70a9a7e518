package domain

type RunStatus string

const (
	StatusPending     RunStatus = "PENDING"
	StatusResetting   RunStatus = "RESETTING"
	StatusProvisioned RunStatus = "PROVISIONED"
	StatusRunningTask RunStatus = "RUNNING_TASK"
	StatusValidating  RunStatus = "VALIDATING"
	StatusPassed      RunStatus = "PASSED"
	StatusFailed      RunStatus = "FAILED"
)

func (s RunStatus) Terminal() bool {
	return s == StatusPassed || s == StatusFailed
}

type AuditState string

const (
	AuditReset         AuditState = "RESET"
	AuditUploaded      AuditState = "UPLOADED"
	AuditSQLLoaded     AuditState = "SQL_LOADED"
	AuditTaskCompleted AuditState = "TASK_COMPLETED"
	AuditValidated     AuditState = "VALIDATED"
	AuditPassed        AuditState = "PASSED"
	AuditFailed        AuditState = "FAILED"
	AuditTornDown      AuditState = "TORN_DOWN"
)
