package http

import (
	"net/http"

	"feeledger/internal/log"
	"feeledger/internal/services"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.services.Accounts.ListAccounts(r.Context(), principalFrom(r))
	writeResult(w, r, log.OpList, http.StatusOK, accounts, err)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in services.CreateAccountInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpCreate, http.StatusCreated, nil, err)
		return
	}
	account, err := s.services.Accounts.CreateAccount(r.Context(), principalFrom(r), in)
	writeResult(w, r, log.OpCreate, http.StatusCreated, account, err)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.services.Accounts.GetAccount(r.Context(), principalFrom(r), r.PathValue("id"))
	writeResult(w, r, log.OpRead, http.StatusOK, account, err)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateAccountInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpUpdate, http.StatusOK, nil, err)
		return
	}
	account, err := s.services.Accounts.UpdateAccount(r.Context(), principalFrom(r), r.PathValue("id"), in)
	writeResult(w, r, log.OpUpdate, http.StatusOK, account, err)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	err := s.services.Accounts.DeleteAccount(r.Context(), principalFrom(r), r.PathValue("id"))
	writeResult[any](w, r, log.OpDelete, http.StatusOK, nil, err)
}
