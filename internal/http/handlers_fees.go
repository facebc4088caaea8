package http

import (
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/services"
	"feeledger/internal/storage"
)

func (s *Server) handleListStudentFees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.FeeFilter{
		StudentID: sanitizeInput(q.Get("student_id")),
		Status:    core.FeeStatus(q.Get("status")),
	}
	fees, err := s.services.Fees.ListStudentFees(r.Context(), principalFrom(r), filter)
	writeResult(w, r, log.OpList, http.StatusOK, fees, err)
}

func (s *Server) handleCreateStudentFee(w http.ResponseWriter, r *http.Request) {
	var in services.CreateStudentFeeInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpCreate, http.StatusCreated, nil, err)
		return
	}
	fee, err := s.services.Fees.CreateStudentFee(r.Context(), principalFrom(r), in)
	writeResult(w, r, log.OpCreate, http.StatusCreated, fee, err)
}

func (s *Server) handleGetStudentFee(w http.ResponseWriter, r *http.Request) {
	fee, err := s.services.Fees.GetStudentFee(r.Context(), principalFrom(r), r.PathValue("id"))
	writeResult(w, r, log.OpRead, http.StatusOK, fee, err)
}

func (s *Server) handleListInstallments(w http.ResponseWriter, r *http.Request) {
	list, err := s.services.Fees.ListInstallments(r.Context(), principalFrom(r), r.PathValue("id"))
	writeResult(w, r, log.OpList, http.StatusOK, list, err)
}

func (s *Server) handleCancelStudentFee(w http.ResponseWriter, r *http.Request) {
	var in services.CancelStudentFeeInput
	// An empty body cancels without refund.
	if err := DecodeOptionalJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpCancel, http.StatusOK, nil, err)
		return
	}
	res, err := s.services.Fees.CancelStudentFee(r.Context(), principalFrom(r), r.PathValue("id"), in)
	writeResult(w, r, log.OpCancel, http.StatusOK, res, err)
}

func (s *Server) handleListFeePayments(w http.ResponseWriter, r *http.Request) {
	studentID := sanitizeInput(r.URL.Query().Get("student_id"))
	list, err := s.services.Fees.ListFeePayments(r.Context(), principalFrom(r), studentID)
	writeResult(w, r, log.OpList, http.StatusOK, list, err)
}

func (s *Server) handleGetFeePayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.services.Fees.GetFeePayment(r.Context(), principalFrom(r), r.PathValue("id"))
	writeResult(w, r, log.OpRead, http.StatusOK, payment, err)
}

func (s *Server) handleCreateFeePayment(w http.ResponseWriter, r *http.Request) {
	var in services.CreateFeePaymentInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpPay, http.StatusCreated, nil, err)
		return
	}
	receipt, err := s.services.Fees.CreateFeePayment(r.Context(), principalFrom(r), in)
	writeResult(w, r, log.OpPay, http.StatusCreated, receipt, err)
}
