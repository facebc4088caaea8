package http

import (
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/log"
)

func (s *Server) handleFinancialSummary(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYear(r.URL.Query(), s.now())
	if err != nil {
		writeResult[any](w, r, log.OpRead, http.StatusOK, nil, err)
		return
	}
	summary, err := s.services.Reports.FinancialSummary(r.Context(), principalFrom(r), year)
	writeResult(w, r, log.OpRead, http.StatusOK, summary, err)
}

func (s *Server) handleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYear(r.URL.Query(), s.now())
	if err != nil {
		writeResult[[]core.MonthTrend](w, r, log.OpRead, http.StatusOK, nil, err)
		return
	}
	trends, err := s.services.Reports.MonthlyTrends(r.Context(), principalFrom(r), year)
	writeResult(w, r, log.OpRead, http.StatusOK, trends, err)
}

func (s *Server) handleCategoryDistribution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := ParseYear(q, s.now())
	if err != nil {
		writeResult[[]core.CategoryShare](w, r, log.OpRead, http.StatusOK, nil, err)
		return
	}
	typ := core.EntryType(q.Get("type"))
	if typ == "" {
		typ = core.Income
	}
	shares, err := s.services.Reports.CategoryDistribution(r.Context(), principalFrom(r), typ, year)
	writeResult(w, r, log.OpRead, http.StatusOK, shares, err)
}

func (s *Server) handleOverdueInstallments(w http.ResponseWriter, r *http.Request) {
	today, err := ParseDateParam(r.URL.Query(), "date")
	if err != nil {
		writeResult[[]core.OverdueInstallment](w, r, log.OpRead, http.StatusOK, nil, err)
		return
	}
	if today.IsZero() {
		today = core.DateOf(s.now())
	}
	list, err := s.services.Reports.OverdueInstallments(r.Context(), principalFrom(r), today)
	writeResult(w, r, log.OpRead, http.StatusOK, list, err)
}
