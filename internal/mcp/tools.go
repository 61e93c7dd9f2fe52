package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alfredjeanlab/modelbase/internal/client"
	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/schema"
)

var errNoServer = errors.New("no modelbase server configured; start mb mcp with --http-url or --server")

// InferModelInput is the input for infer_model.
type InferModelInput struct {
	Name   string `json:"name" jsonschema:"Model name"`
	Sample string `json:"sample" jsonschema:"Sample document as a JSON object string"`
}

// ValidateDocumentInput is the input for validate_document. Exactly one of
// Model and Definition must be set.
type ValidateDocumentInput struct {
	Document   string `json:"document" jsonschema:"Document as a JSON object string"`
	Model      string `json:"model,omitempty" jsonschema:"Name or ID of a registered model"`
	Definition string `json:"definition,omitempty" jsonschema:"Inline model definition as a JSON string, checked locally"`
	Strict     bool   `json:"strict,omitempty" jsonschema:"Treat missing required fields as errors (inline definitions only)"`
}

// ListModelsInput is the input for list_models.
type ListModelsInput struct{}

// GetModelInput is the input for get_model.
type GetModelInput struct {
	Model string `json:"model" jsonschema:"Name or ID of the model"`
}

// CreateDocumentInput is the input for create_document.
type CreateDocumentInput struct {
	Model    string `json:"model" jsonschema:"Name or ID of the model"`
	Document string `json:"document" jsonschema:"Document as a JSON object string"`
}

// ListDocumentsInput is the input for list_documents.
type ListDocumentsInput struct {
	Model  string `json:"model" jsonschema:"Name or ID of the model"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Page size (default 50, max 500)"`
	Offset int    `json:"offset,omitempty" jsonschema:"Number of documents to skip"`
	Filter string `json:"filter,omitempty" jsonschema:"jq expression; documents yielding a truthy value are kept"`
}

func registerTools(srv *sdkmcp.Server, d *Deps) {
	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "infer_model",
		Description: "Infer a model definition from a sample JSON object without storing it. Every field of the sample becomes required; arrays must be non-empty and homogeneous.",
	}, toolInferModel(d))

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "validate_document",
		Description: "Validate a JSON document against a registered model (model) or an inline definition (definition). Returns isValid and the validator log.",
	}, toolValidateDocument(d))

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "list_models",
		Description: "List the models registered on the server, sorted by name",
	}, toolListModels(d))

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "get_model",
		Description: "Get a registered model and its definition by name or ID",
	}, toolGetModel(d))

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "create_document",
		Description: "Validate and store a document. The server assigns an id when the document has none.",
	}, toolCreateDocument(d))

	sdkmcp.AddTool(srv, &sdkmcp.Tool{
		Name:        "list_documents",
		Description: "List a page of a model's documents, optionally filtered with a jq expression",
	}, toolListDocuments(d))
}

// jsonResult renders v as a single JSON text block.
func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(b)}},
	}, nil, nil
}

func toolInferModel(_ *Deps) sdkmcp.ToolHandlerFor[InferModelInput, any] {
	return func(_ context.Context, _ *sdkmcp.CallToolRequest, in InferModelInput) (*sdkmcp.CallToolResult, any, error) {
		if err := model.ValidateModelName(in.Name); err != nil {
			return nil, nil, err
		}
		def, err := schema.Infer(in.Name, []byte(in.Sample))
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(def)
	}
}

func toolValidateDocument(d *Deps) sdkmcp.ToolHandlerFor[ValidateDocumentInput, any] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in ValidateDocumentInput) (*sdkmcp.CallToolResult, any, error) {
		switch {
		case in.Model != "" && in.Definition != "":
			return nil, nil, errors.New("set either model or definition, not both")
		case in.Definition != "":
			def, err := schema.ParseDefinition([]byte(in.Definition))
			if err != nil {
				return nil, nil, err
			}
			doc, err := jsonvalue.ParseObject([]byte(in.Document))
			if err != nil {
				return nil, nil, fmt.Errorf("document: %w", err)
			}
			if in.Strict || d.StrictRequired {
				return jsonResult(schema.ValidateStrict(def, doc))
			}
			return jsonResult(schema.Validate(def, doc))
		case in.Model != "":
			if d.Client == nil {
				return nil, nil, errNoServer
			}
			res, err := d.Client.ValidateDocument(ctx, in.Model, []byte(in.Document))
			if err != nil {
				return nil, nil, err
			}
			return jsonResult(res)
		}
		return nil, nil, errors.New("model or definition is required")
	}
}

func toolListModels(d *Deps) sdkmcp.ToolHandlerFor[ListModelsInput, any] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ ListModelsInput) (*sdkmcp.CallToolResult, any, error) {
		if d.Client == nil {
			return nil, nil, errNoServer
		}
		models, err := d.Client.ListModels(ctx)
		if err != nil {
			return nil, nil, err
		}
		if models == nil {
			models = []*model.ModelScheme{}
		}
		return jsonResult(map[string]any{"models": models, "total": len(models)})
	}
}

func toolGetModel(d *Deps) sdkmcp.ToolHandlerFor[GetModelInput, any] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetModelInput) (*sdkmcp.CallToolResult, any, error) {
		if d.Client == nil {
			return nil, nil, errNoServer
		}
		m, err := d.Client.GetModel(ctx, in.Model)
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(m)
	}
}

func toolCreateDocument(d *Deps) sdkmcp.ToolHandlerFor[CreateDocumentInput, any] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateDocumentInput) (*sdkmcp.CallToolResult, any, error) {
		if d.Client == nil {
			return nil, nil, errNoServer
		}
		doc, err := d.Client.CreateDocument(ctx, in.Model, []byte(in.Document))
		if err != nil {
			if log := client.ValidationLog(err); len(log) > 0 {
				return jsonResultError(err, log)
			}
			return nil, nil, err
		}
		return jsonResult(doc)
	}
}

// jsonResultError reports a rejected document together with the validator
// log so the caller can fix it.
func jsonResultError(err error, log []string) (*sdkmcp.CallToolResult, any, error) {
	res, _, mErr := jsonResult(map[string]any{"error": err.Error(), "log": log})
	if mErr != nil {
		return nil, nil, mErr
	}
	res.IsError = true
	return res, nil, nil
}

func toolListDocuments(d *Deps) sdkmcp.ToolHandlerFor[ListDocumentsInput, any] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListDocumentsInput) (*sdkmcp.CallToolResult, any, error) {
		if d.Client == nil {
			return nil, nil, errNoServer
		}
		page, err := d.Client.ListDocuments(ctx, in.Model, &client.ListDocumentsRequest{
			Limit:  in.Limit,
			Offset: in.Offset,
			Filter: in.Filter,
		})
		if err != nil {
			return nil, nil, err
		}
		if page.Documents == nil {
			page.Documents = []*jsonvalue.Object{}
		}
		return jsonResult(page)
	}
}
