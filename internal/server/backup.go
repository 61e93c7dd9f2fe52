package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/alfredjeanlab/modelbase/internal/events"
	mbsync "github.com/alfredjeanlab/modelbase/internal/sync"
)

// Export writes a JSONL backup of every model and document to w.
func (s *Server) Export(ctx context.Context, w io.Writer) error {
	if err := mbsync.ExportJSONL(ctx, s.store, w); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// Import restores a JSONL backup. Documents are re-validated in the
// server's validation mode and invalid ones are skipped.
func (s *Server) Import(ctx context.Context, r io.Reader) (*mbsync.ImportStats, error) {
	stats, err := mbsync.ImportJSONL(ctx, s.store, r, mbsync.ImportOptions{StrictRequired: s.strict})
	if err != nil {
		var (
			fe       *mbsync.FormatError
			tooLarge *http.MaxBytesError
		)
		if errors.As(err, &fe) || errors.As(err, &tooLarge) {
			return nil, inputError("import failed: " + err.Error())
		}
		return nil, fmt.Errorf("import: %w", err)
	}
	s.cache.Purge()
	s.recordAndPublish(ctx, events.TopicImportCompleted, "", "", events.ImportCompleted{
		Models:    stats.Models,
		Documents: stats.Documents,
		Skipped:   stats.Skipped,
	})
	return stats, nil
}
