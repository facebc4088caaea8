package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"feeledger/internal/log"
	"feeledger/internal/middleware/ratelimit"
	"feeledger/internal/middleware/security"
	"feeledger/internal/middleware/trace"
	"feeledger/internal/services"
)

// Services are the operations the API exposes.
type Services struct {
	Accounts     *services.AccountService
	Catalog      *services.CatalogService
	Fees         *services.FeeService
	Transactions *services.TransactionService
	Reports      *services.ReportService
}

// Pinger reports whether the store can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr               string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	services Services
	store    Pinger
	logger   *log.Logger
	now      func() time.Time

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options, svcs Services, store Pinger) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	rlCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		services:    svcs,
		store:       store,
		logger:      opts.Logger.WithComponent(log.ComponentHTTP),
		now:         time.Now,
		rateLimiter: ratelimit.NewLimiter(rlCfg),
		detector:    security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	if opts.RequestTimeout > 0 {
		handler = withTimeout(opts.RequestTimeout)(handler)
	}
	handler = s.rateLimiter.Middleware(rateLimitKey(s.detector.ExtractClientIP), func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	api := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, requirePrincipal(h))
	}

	api("GET /api/accounts", s.handleListAccounts)
	api("POST /api/accounts", s.handleCreateAccount)
	api("GET /api/accounts/{id}", s.handleGetAccount)
	api("PATCH /api/accounts/{id}", s.handleUpdateAccount)
	api("DELETE /api/accounts/{id}", s.handleDeleteAccount)

	api("GET /api/categories", s.handleListCategories)
	api("POST /api/categories", s.handleCreateCategory)

	api("GET /api/services", s.handleListServices)
	api("POST /api/services", s.handleCreateService)
	api("GET /api/services/{id}", s.handleGetService)
	api("PATCH /api/services/{id}", s.handleUpdateService)
	api("DELETE /api/services/{id}", s.handleDeleteService)

	api("GET /api/student-fees", s.handleListStudentFees)
	api("POST /api/student-fees", s.handleCreateStudentFee)
	api("GET /api/student-fees/{id}", s.handleGetStudentFee)
	api("GET /api/student-fees/{id}/installments", s.handleListInstallments)
	api("POST /api/student-fees/{id}/cancel", s.handleCancelStudentFee)

	api("GET /api/fee-payments", s.handleListFeePayments)
	api("POST /api/fee-payments", s.handleCreateFeePayment)
	api("GET /api/fee-payments/{id}", s.handleGetFeePayment)

	api("GET /api/transactions", s.handleListTransactions)
	api("POST /api/transactions", s.handleCreateTransaction)
	api("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	api("GET /api/reports/summary", s.handleFinancialSummary)
	api("GET /api/reports/monthly", s.handleMonthlyTrends)
	api("GET /api/reports/categories", s.handleCategoryDistribution)
	api("GET /api/reports/overdue", s.handleOverdueInstallments)
}

// withTimeout bounds the context of every request.
func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
