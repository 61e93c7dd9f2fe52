package server

import (
	"bytes"
	"net/http"
)

// maxImportBytes bounds the body of POST /v1/import.
const maxImportBytes = 256 << 20

// handleExport handles GET /v1/export. The backup is buffered so that a
// failure can still be reported with a proper status.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Export(r.Context(), &buf); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="modelbase.jsonl"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport handles POST /v1/import. The body is a JSONL backup.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
