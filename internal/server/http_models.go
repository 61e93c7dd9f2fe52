package server

import (
	"net/http"

	"github.com/alfredjeanlab/modelbase/internal/model"
)

// handleCreateModel handles POST /v1/models?name=. The body is the sample.
func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	sample, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	scheme, err := s.CreateModel(r.Context(), r.URL.Query().Get("name"), sample)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scheme)
}

// handleListModels handles GET /v1/models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	schemes, err := s.ListModels(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if schemes == nil {
		schemes = []*model.ModelScheme{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": schemes,
		"total":  len(schemes),
	})
}

// handleGetModel handles GET /v1/models/{ref}.
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	scheme, err := s.GetModel(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheme)
}

// handleReplaceModel handles PUT /v1/models/{ref}. The body is the new sample.
func (s *Server) handleReplaceModel(w http.ResponseWriter, r *http.Request) {
	sample, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	scheme, err := s.ReplaceModel(r.Context(), r.PathValue("ref"), sample)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheme)
}

// handleDeleteModel handles DELETE /v1/models/{ref}.
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteModel(r.Context(), r.PathValue("ref")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportDefinition handles PUT /v1/definitions. The body is a
// ModelDefinition.
func (s *Server) handleImportDefinition(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	scheme, created, err := s.ImportModel(r.Context(), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, scheme)
}

// handleInferModel handles POST /v1/infer?name=. Nothing is stored.
func (s *Server) handleInferModel(w http.ResponseWriter, r *http.Request) {
	sample, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	def, err := s.InferModel(r.Context(), r.URL.Query().Get("name"), sample)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleSampleDocument handles GET /v1/models/{ref}/sample.
func (s *Server) handleSampleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.SampleDocument(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleModelSchema handles GET /v1/models/{ref}/schema.
func (s *Server) handleModelSchema(w http.ResponseWriter, r *http.Request) {
	js, err := s.ExportJSONSchema(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, js)
}

// handleModelEvents handles GET /v1/models/{ref}/events.
func (s *Server) handleModelEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := s.ModelEvents(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
