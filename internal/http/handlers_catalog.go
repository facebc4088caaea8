package http

import (
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/services"
)

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := ParseBoolParam(r.URL.Query(), "active", false)
	if err != nil {
		writeResult[[]core.Service](w, r, log.OpList, http.StatusOK, nil, err)
		return
	}
	list, err := s.services.Catalog.ListServices(r.Context(), principalFrom(r), activeOnly)
	writeResult(w, r, log.OpList, http.StatusOK, list, err)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var in services.ServiceInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpCreate, http.StatusCreated, nil, err)
		return
	}
	svc, err := s.services.Catalog.CreateService(r.Context(), principalFrom(r), in)
	writeResult(w, r, log.OpCreate, http.StatusCreated, svc, err)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.services.Catalog.GetService(r.Context(), principalFrom(r), r.PathValue("id"))
	writeResult(w, r, log.OpRead, http.StatusOK, svc, err)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var in services.ServiceUpdate
	if err := DecodeJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpUpdate, http.StatusOK, nil, err)
		return
	}
	svc, err := s.services.Catalog.UpdateService(r.Context(), principalFrom(r), r.PathValue("id"), in)
	writeResult(w, r, log.OpUpdate, http.StatusOK, svc, err)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	err := s.services.Catalog.DeleteService(r.Context(), principalFrom(r), r.PathValue("id"))
	writeResult[any](w, r, log.OpDelete, http.StatusOK, nil, err)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	typ := core.EntryType(r.URL.Query().Get("type"))
	list, err := s.services.Catalog.ListCategories(r.Context(), principalFrom(r), typ)
	writeResult(w, r, log.OpList, http.StatusOK, list, err)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in services.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		writeResult[any](w, r, log.OpCreate, http.StatusCreated, nil, err)
		return
	}
	c, err := s.services.Catalog.CreateCategory(r.Context(), principalFrom(r), in)
	writeResult(w, r, log.OpCreate, http.StatusCreated, c, err)
}
