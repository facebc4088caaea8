package http

import (
	"context"
	"net/http"
	"time"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks that the store answers within two seconds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.ErrorContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type metricsResponse struct {
	TotalRequests      int64  `json:"total_requests"`
	ServerErrors       int64  `json:"server_errors"`
	AvgResponseTime    string `json:"avg_response_time"`
	RateLimitHits      int64  `json:"rate_limit_hits"`
	ActiveClients      int    `json:"active_clients"`
	SuspiciousRequests int64  `json:"suspicious_requests"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	NewJSONResponse().Body(metricsResponse{
		TotalRequests:      tm.TotalRequests,
		ServerErrors:       tm.ServerErrors,
		AvgResponseTime:    tm.AverageResponseTime().String(),
		RateLimitHits:      s.rateLimiter.Hits(),
		ActiveClients:      s.rateLimiter.ActiveClients(),
		SuspiciousRequests: s.detector.GetMetrics().SuspiciousRequests,
	}).Write(w)
}
