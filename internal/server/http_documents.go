package server

import (
	"net/http"
	"strconv"
)

// handleValidateDocument handles POST /v1/models/{ref}/validate. The verdict
// is returned with 200 whether or not the document is valid.
func (s *Server) handleValidateDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	result, err := s.ValidateDocument(r.Context(), r.PathValue("ref"), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCreateDocument handles POST /v1/models/{ref}/documents.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	doc, err := s.CreateDocument(r.Context(), r.PathValue("ref"), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// handleListDocuments handles GET /v1/models/{ref}/documents.
// Query params: limit, offset, filter (a jq expression).
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := ListOptions{Filter: q.Get("filter")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = n
	}

	page, err := s.ListDocuments(r.Context(), r.PathValue("ref"), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetDocument handles GET /v1/models/{ref}/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.GetDocument(r.Context(), r.PathValue("ref"), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleUpdateDocument handles PUT /v1/models/{ref}/documents/{id}. It
// answers 201 when the document did not exist before.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	doc, created, err := s.UpdateDocument(r.Context(), r.PathValue("ref"), r.PathValue("id"), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, doc)
}

// handleDeleteDocument handles DELETE /v1/models/{ref}/documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteDocument(r.Context(), r.PathValue("ref"), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
