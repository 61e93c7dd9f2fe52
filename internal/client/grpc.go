package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

// serviceName is the fully qualified name of the modelbase gRPC service.
const serviceName = "modelbase.v1.ModelService"

// actorMetadataKey is ActorHeader as gRPC metadata.
const actorMetadataKey = "x-modelbase-actor"

// GRPCClient implements ModelClient using the gRPC transport. Requests and
// responses are google.protobuf.Struct messages.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
	actor string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// Extra dial options are appended to the defaults.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	defaults := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	conn, err := grpc.NewClient(addr, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

// WithActor sets the actor sent with every call and returns c.
func (c *GRPCClient) WithActor(actor string) *GRPCClient {
	c.actor = actor
	return c
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// invoke calls method with req and returns the response Struct.
func (c *GRPCClient) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, actorMetadataKey, c.actor)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeField converts one field of a response into v through JSON.
func decodeField(resp *structpb.Struct, key string, v any) error {
	field, ok := resp.GetFields()[key]
	if !ok {
		return fmt.Errorf("response has no %q", key)
	}
	b, err := protojson.Marshal(field)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}

// documentField parses a document carried as a JSON string.
func documentField(resp *structpb.Struct, key string) (*jsonvalue.Object, error) {
	doc, err := jsonvalue.ParseObject([]byte(resp.GetFields()[key].GetStringValue()))
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", key, err)
	}
	return doc, nil
}

// --- Models ---

func (c *GRPCClient) InferModel(ctx context.Context, name string, sample []byte) (*model.ModelDefinition, error) {
	resp, err := c.invoke(ctx, "InferModel", map[string]any{"name": name, "sample": string(sample)})
	if err != nil {
		return nil, err
	}
	var def model.ModelDefinition
	if err := decodeField(resp, "definition", &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (c *GRPCClient) CreateModel(ctx context.Context, name string, sample []byte) (*model.ModelScheme, error) {
	return c.schemeCall(ctx, "CreateModel", map[string]any{"name": name, "sample": string(sample)})
}

func (c *GRPCClient) GetModel(ctx context.Context, ref string) (*model.ModelScheme, error) {
	return c.schemeCall(ctx, "GetModel", map[string]any{"ref": ref})
}

func (c *GRPCClient) ReplaceModel(ctx context.Context, ref string, sample []byte) (*model.ModelScheme, error) {
	return c.schemeCall(ctx, "ReplaceModel", map[string]any{"ref": ref, "sample": string(sample)})
}

func (c *GRPCClient) schemeCall(ctx context.Context, method string, req map[string]any) (*model.ModelScheme, error) {
	resp, err := c.invoke(ctx, method, req)
	if err != nil {
		return nil, err
	}
	var scheme model.ModelScheme
	if err := decodeField(resp, "model", &scheme); err != nil {
		return nil, err
	}
	return &scheme, nil
}

func (c *GRPCClient) ListModels(ctx context.Context) ([]*model.ModelScheme, error) {
	resp, err := c.invoke(ctx, "ListModels", nil)
	if err != nil {
		return nil, err
	}
	var schemes []*model.ModelScheme
	if err := decodeField(resp, "models", &schemes); err != nil {
		return nil, err
	}
	return schemes, nil
}

func (c *GRPCClient) DeleteModel(ctx context.Context, ref string) error {
	_, err := c.invoke(ctx, "DeleteModel", map[string]any{"ref": ref})
	return err
}

// --- Documents ---

func (c *GRPCClient) ValidateDocument(ctx context.Context, ref string, doc []byte) (*model.ValidationResult, error) {
	resp, err := c.invoke(ctx, "ValidateDocument", map[string]any{"model": ref, "document": string(doc)})
	if err != nil {
		return nil, err
	}
	result := &model.ValidationResult{IsValid: resp.GetFields()["isValid"].GetBoolValue()}
	for _, v := range resp.GetFields()["log"].GetListValue().GetValues() {
		result.Log = append(result.Log, v.GetStringValue())
	}
	return result, nil
}

func (c *GRPCClient) CreateDocument(ctx context.Context, ref string, doc []byte) (*jsonvalue.Object, error) {
	resp, err := c.invoke(ctx, "CreateDocument", map[string]any{"model": ref, "document": string(doc)})
	if err != nil {
		return nil, err
	}
	return documentField(resp, "document")
}

func (c *GRPCClient) GetDocument(ctx context.Context, ref, id string) (*jsonvalue.Object, error) {
	resp, err := c.invoke(ctx, "GetDocument", map[string]any{"model": ref, "id": id})
	if err != nil {
		return nil, err
	}
	return documentField(resp, "document")
}

func (c *GRPCClient) ListDocuments(ctx context.Context, ref string, req *ListDocumentsRequest) (*ListDocumentsResponse, error) {
	in := map[string]any{"model": ref}
	if req != nil {
		in["limit"] = req.Limit
		in["offset"] = req.Offset
		in["filter"] = req.Filter
	}
	resp, err := c.invoke(ctx, "ListDocuments", in)
	if err != nil {
		return nil, err
	}

	fields := resp.GetFields()
	out := &ListDocumentsResponse{
		Total:  int(fields["total"].GetNumberValue()),
		Limit:  int(fields["limit"].GetNumberValue()),
		Offset: int(fields["offset"].GetNumberValue()),
	}
	for _, v := range fields["documents"].GetListValue().GetValues() {
		doc, err := jsonvalue.ParseObject([]byte(v.GetStringValue()))
		if err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		out.Documents = append(out.Documents, doc)
	}
	return out, nil
}

func (c *GRPCClient) UpdateDocument(ctx context.Context, ref, id string, doc []byte) (*jsonvalue.Object, bool, error) {
	resp, err := c.invoke(ctx, "UpdateDocument", map[string]any{"model": ref, "id": id, "document": string(doc)})
	if err != nil {
		return nil, false, err
	}
	out, err := documentField(resp, "document")
	if err != nil {
		return nil, false, err
	}
	return out, resp.GetFields()["created"].GetBoolValue(), nil
}

func (c *GRPCClient) DeleteDocument(ctx context.Context, ref, id string) error {
	_, err := c.invoke(ctx, "DeleteDocument", map[string]any{"model": ref, "id": id})
	return err
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := c.invoke(ctx, "Health", nil)
	if err != nil {
		return "", err
	}
	return resp.GetFields()["status"].GetStringValue(), nil
}
