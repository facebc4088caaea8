package http

import (
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/services"
	"feeledger/internal/storage"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TransactionFilter{
		Type:      core.EntryType(q.Get("type")),
		AccountID: sanitizeInput(q.Get("account_id")),
	}
	var err error
	if filter.From, err = ParseDateParam(q, "from"); err == nil {
		filter.To, err = ParseDateParam(q, "to")
	}
	if err != nil {
		writeResult[[]core.Transaction](w, r, log.OpList, http.StatusOK, nil, err)
		return
	}
	list, err := s.services.Transactions.ListTransactions(r.Context(), principalFrom(r), filter)
	writeResult(w, r, log.OpList, http.StatusOK, list, err)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.CreateTransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpCreate, http.StatusCreated, nil, err)
		return
	}
	tx, err := s.services.Transactions.CreateTransaction(r.Context(), principalFrom(r), in)
	writeResult(w, r, log.OpCreate, http.StatusCreated, tx, err)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	err := s.services.Transactions.DeleteTransaction(r.Context(), principalFrom(r), r.PathValue("id"))
	writeResult[any](w, r, log.OpDelete, http.StatusOK, nil, err)
}
