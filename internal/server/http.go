package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
)

// maxBodyBytes bounds request bodies other than imports.
const maxBodyBytes = 10 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and GET /live)
// must include a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	var patterns []string
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, h)
		patterns = append(patterns, pattern)
	}

	handle("POST /v1/models", s.handleCreateModel)
	handle("GET /v1/models", s.handleListModels)
	handle("GET /v1/models/{ref}", s.handleGetModel)
	handle("PUT /v1/models/{ref}", s.handleReplaceModel)
	handle("DELETE /v1/models/{ref}", s.handleDeleteModel)
	handle("PUT /v1/definitions", s.handleImportDefinition)
	handle("POST /v1/infer", s.handleInferModel)
	handle("GET /v1/models/{ref}/sample", s.handleSampleDocument)
	handle("GET /v1/models/{ref}/schema", s.handleModelSchema)
	handle("GET /v1/models/{ref}/events", s.handleModelEvents)
	handle("POST /v1/models/{ref}/validate", s.handleValidateDocument)
	handle("POST /v1/models/{ref}/documents", s.handleCreateDocument)
	handle("GET /v1/models/{ref}/documents", s.handleListDocuments)
	handle("GET /v1/models/{ref}/documents/{id}", s.handleGetDocument)
	handle("PUT /v1/models/{ref}/documents/{id}", s.handleUpdateDocument)
	handle("DELETE /v1/models/{ref}/documents/{id}", s.handleDeleteDocument)
	handle("GET /v1/export", s.handleExport)
	handle("POST /v1/import", s.handleImport)
	handle("GET /v1/events/stream", s.handleEventStream)
	handle("GET /v1/health", s.handleHealth)
	handle("GET /live", s.handleLive)

	patterns = append(patterns, "GET /v1/routes")
	sort.Strings(patterns)
	mux.HandleFunc("GET /v1/routes", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"routes": patterns})
	})

	return RecoveryMiddleware(LoggingMiddleware(ActorMiddleware(AuthMiddleware(authToken, mux))))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLive handles GET /live.
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// readBody reads a request body of at most limit bytes.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, inputError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, inputError("failed to read request body: " + err.Error())
	}
	return body, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// invalidDocumentBody is the response to a document that failed validation.
type invalidDocumentBody struct {
	Error string   `json:"error"`
	Log   []string `json:"log"`
}

// writeServiceError maps an error from a Server operation to a response.
func writeServiceError(w http.ResponseWriter, err error) {
	var ide *invalidDocumentError
	if errors.As(err, &ide) {
		writeJSON(w, http.StatusBadRequest, invalidDocumentBody{Error: InvalidDocumentMessage, Log: ide.Result.Log})
		return
	}
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}
