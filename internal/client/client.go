// Package client provides a transport-agnostic interface for the modelbase
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

// ModelClient is the interface that CLI commands use to talk to the
// modelbase server. It is implemented by HTTPClient (default) and GRPCClient.
//
// Samples and documents are passed as raw JSON so that key order survives.
type ModelClient interface {
	// Models
	InferModel(ctx context.Context, name string, sample []byte) (*model.ModelDefinition, error)
	CreateModel(ctx context.Context, name string, sample []byte) (*model.ModelScheme, error)
	GetModel(ctx context.Context, ref string) (*model.ModelScheme, error)
	ListModels(ctx context.Context) ([]*model.ModelScheme, error)
	ReplaceModel(ctx context.Context, ref string, sample []byte) (*model.ModelScheme, error)
	DeleteModel(ctx context.Context, ref string) error

	// Documents
	ValidateDocument(ctx context.Context, ref string, doc []byte) (*model.ValidationResult, error)
	CreateDocument(ctx context.Context, ref string, doc []byte) (*jsonvalue.Object, error)
	GetDocument(ctx context.Context, ref, id string) (*jsonvalue.Object, error)
	ListDocuments(ctx context.Context, ref string, req *ListDocumentsRequest) (*ListDocumentsResponse, error)
	// UpdateDocument reports whether the document was created.
	UpdateDocument(ctx context.Context, ref, id string, doc []byte) (*jsonvalue.Object, bool, error)
	DeleteDocument(ctx context.Context, ref, id string) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// ListDocumentsRequest holds parameters for listing documents.
type ListDocumentsRequest struct {
	Limit  int
	Offset int
	// Filter is a jq expression; documents for which it yields a truthy
	// value are kept.
	Filter string
}

// ListDocumentsResponse is one page of documents.
type ListDocumentsResponse struct {
	Documents []*jsonvalue.Object `json:"documents"`
	Total     int                 `json:"total"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
}

// ValidationLog returns the validator log attached to an error returned for
// a rejected document, from either transport.
func ValidationLog(err error) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Log
	}
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		var log []string
		for _, v := range s.GetFields()["log"].GetListValue().GetValues() {
			log = append(log, v.GetStringValue())
		}
		return log
	}
	return nil
}
