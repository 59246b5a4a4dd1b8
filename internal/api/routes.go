package api

const (
	HealthRoute  = "/healthz"
	AboutRoute   = "/icanhazlpr"
	MetricsRoute = "/metrics"

	VisibleLoginRoute       = "/lpr/visible-login"
	VisibleLoginResultRoute = "/lpr/visible-login/{capture_id}"

	IssueRoute  = "/lpr/issue"
	VerifyRoute = "/lpr/verify"
	RevokeRoute = "/lpr/revoke"

	ListTokensRoute  = "/lpr/list"
	AuditRoute       = "/lpr/audit"
	AuditVerifyRoute = "/lpr/audit/verify"

	ListTasksRoute   = "/lpr/tasks"
	TriggerTaskRoute = "/lpr/tasks/{name}/trigger"
	TaskLogsRoute    = "/lpr/tasks/{name}/logs"
)
