// Package api exposes the LPR service over HTTP: the public issue, verify,
// revoke and login-capture routes, plus the admin surface for token listing,
// the audit ledger and background tasks.
package api

import (
	"net/http"

	"github.com/operandhq/lpr/internal/api/middleware"
	"github.com/operandhq/lpr/internal/obs"
	"github.com/operandhq/lpr/internal/service"
	"github.com/operandhq/lpr/internal/session"
	"github.com/operandhq/lpr/internal/tasks"
)

type Server struct {
	service *service.LPRService
	driver  session.Driver
	tasks   *tasks.Manager
}

func NewServer(svc *service.LPRService, driver session.Driver, manager *tasks.Manager) *Server {
	return &Server{
		service: svc,
		driver:  driver,
		tasks:   manager,
	}
}

// RoutesOptions tunes the outer middleware of the route tree.
type RoutesOptions struct {
	// AdminSigningKey verifies the bearer tokens on the admin routes. When
	// empty the admin routes reject every request.
	AdminSigningKey []byte

	// IPLimitRPS and IPLimitBurst bound the per-client-IP rate on the
	// login and issue routes.
	IPLimitRPS   float64
	IPLimitBurst int
}

// Routes builds the full handler chain.
func (s *Server) Routes(opts RoutesOptions) http.Handler {
	mux := http.NewServeMux()

	ipLimit := middleware.IPRateLimit(opts.IPLimitRPS, opts.IPLimitBurst)
	admin := middleware.AdminAuth(opts.AdminSigningKey)

	mux.HandleFunc("GET "+HealthRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.Handle("GET "+MetricsRoute, obs.Handler())

	mux.Handle("POST "+VisibleLoginRoute, ipLimit(http.HandlerFunc(s.handleStartLogin)))
	mux.HandleFunc("GET "+VisibleLoginResultRoute, s.handleLoginResult)

	mux.Handle("POST "+IssueRoute, ipLimit(http.HandlerFunc(s.handleIssue)))
	mux.HandleFunc("POST "+VerifyRoute, s.handleVerify)
	mux.HandleFunc("POST "+RevokeRoute, s.handleRevoke)

	mux.Handle("GET "+ListTokensRoute, admin(http.HandlerFunc(s.handleListTokens)))
	mux.Handle("GET "+AuditRoute, admin(http.HandlerFunc(s.handleAuditList)))
	mux.Handle("GET "+AuditVerifyRoute, admin(http.HandlerFunc(s.handleAuditVerify)))

	mux.Handle("GET "+ListTasksRoute, admin(http.HandlerFunc(s.handleListTasks)))
	mux.Handle("POST "+TriggerTaskRoute, admin(http.HandlerFunc(s.handleTriggerTask)))
	mux.Handle("GET "+TaskLogsRoute, admin(http.HandlerFunc(s.handleTaskLogs)))

	var handler http.Handler = mux
	handler = obs.Instrument(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)
	handler = middleware.Recover(handler)
	return handler
}
