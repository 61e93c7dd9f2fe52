package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	mbsync "github.com/alfredjeanlab/modelbase/internal/sync"
)

// ActorHeader names the caller recorded on server-side events.
const ActorHeader = "X-Modelbase-Actor"

// HTTPClient implements ModelClient using the modelbase HTTP/JSON REST API.
// It also covers the operations only the HTTP API offers, such as backups
// and JSON Schema export.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// WithActor sets the name sent as ActorHeader and returns c.
func (c *HTTPClient) WithActor(actor string) *HTTPClient {
	c.actor = actor
	return c
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func modelPath(ref string) string {
	return "/v1/models/" + url.PathEscape(ref)
}

func documentPath(ref, id string) string {
	return modelPath(ref) + "/documents/" + url.PathEscape(id)
}

// --- Models ---

func (c *HTTPClient) InferModel(ctx context.Context, name string, sample []byte) (*model.ModelDefinition, error) {
	var def model.ModelDefinition
	if err := c.doJSON(ctx, http.MethodPost, "/v1/infer?name="+url.QueryEscape(name), sample, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (c *HTTPClient) CreateModel(ctx context.Context, name string, sample []byte) (*model.ModelScheme, error) {
	var scheme model.ModelScheme
	if err := c.doJSON(ctx, http.MethodPost, "/v1/models?name="+url.QueryEscape(name), sample, &scheme); err != nil {
		return nil, err
	}
	return &scheme, nil
}

func (c *HTTPClient) GetModel(ctx context.Context, ref string) (*model.ModelScheme, error) {
	var scheme model.ModelScheme
	if err := c.doJSON(ctx, http.MethodGet, modelPath(ref), nil, &scheme); err != nil {
		return nil, err
	}
	return &scheme, nil
}

func (c *HTTPClient) ListModels(ctx context.Context) ([]*model.ModelScheme, error) {
	var resp struct {
		Models []*model.ModelScheme `json:"models"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

func (c *HTTPClient) ReplaceModel(ctx context.Context, ref string, sample []byte) (*model.ModelScheme, error) {
	var scheme model.ModelScheme
	if err := c.doJSON(ctx, http.MethodPut, modelPath(ref), sample, &scheme); err != nil {
		return nil, err
	}
	return &scheme, nil
}

func (c *HTTPClient) DeleteModel(ctx context.Context, ref string) error {
	return c.doJSON(ctx, http.MethodDelete, modelPath(ref), nil, nil)
}

// ImportDefinition stores a hand-written definition. It reports whether a
// new model was created.
func (c *HTTPClient) ImportDefinition(ctx context.Context, def []byte) (*model.ModelScheme, bool, error) {
	var scheme model.ModelScheme
	status, err := c.do(ctx, http.MethodPut, "/v1/definitions", def, &scheme)
	if err != nil {
		return nil, false, err
	}
	return &scheme, status == http.StatusCreated, nil
}

// SampleDocument returns a random document that matches the model.
func (c *HTTPClient) SampleDocument(ctx context.Context, ref string) (*jsonvalue.Object, error) {
	doc := jsonvalue.NewObject()
	if err := c.doJSON(ctx, http.MethodGet, modelPath(ref)+"/sample", nil, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ModelSchema returns the model as a JSON Schema document.
func (c *HTTPClient) ModelSchema(ctx context.Context, ref string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, modelPath(ref)+"/schema", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ModelEvents returns the recorded events of a model, oldest first.
func (c *HTTPClient) ModelEvents(ctx context.Context, ref string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, modelPath(ref)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Documents ---

func (c *HTTPClient) ValidateDocument(ctx context.Context, ref string, doc []byte) (*model.ValidationResult, error) {
	var result model.ValidationResult
	if err := c.doJSON(ctx, http.MethodPost, modelPath(ref)+"/validate", doc, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) CreateDocument(ctx context.Context, ref string, doc []byte) (*jsonvalue.Object, error) {
	out := jsonvalue.NewObject()
	if err := c.doJSON(ctx, http.MethodPost, modelPath(ref)+"/documents", doc, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetDocument(ctx context.Context, ref, id string) (*jsonvalue.Object, error) {
	out := jsonvalue.NewObject()
	if err := c.doJSON(ctx, http.MethodGet, documentPath(ref, id), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListDocuments(ctx context.Context, ref string, req *ListDocumentsRequest) (*ListDocumentsResponse, error) {
	q := url.Values{}
	if req != nil {
		if req.Limit > 0 {
			q.Set("limit", strconv.Itoa(req.Limit))
		}
		if req.Offset > 0 {
			q.Set("offset", strconv.Itoa(req.Offset))
		}
		if req.Filter != "" {
			q.Set("filter", req.Filter)
		}
	}

	path := modelPath(ref) + "/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListDocumentsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateDocument(ctx context.Context, ref, id string, doc []byte) (*jsonvalue.Object, bool, error) {
	out := jsonvalue.NewObject()
	status, err := c.do(ctx, http.MethodPut, documentPath(ref, id), doc, out)
	if err != nil {
		return nil, false, err
	}
	return out, status == http.StatusCreated, nil
}

func (c *HTTPClient) DeleteDocument(ctx context.Context, ref, id string) error {
	return c.doJSON(ctx, http.MethodDelete, documentPath(ref, id), nil, nil)
}

// --- Backups ---

// Export streams a JSONL backup of the server into w.
func (c *HTTPClient) Export(ctx context.Context, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, "/v1/export", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	return nil
}

// Import uploads a JSONL backup read from r.
func (c *HTTPClient) Import(ctx context.Context, r io.Reader) (*mbsync.ImportStats, error) {
	resp, err := c.send(ctx, http.MethodPost, "/v1/import", r, "application/x-ndjson")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var stats mbsync.ImportStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &stats, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server. Log is set when a
// document was rejected by the validator.
type APIError struct {
	StatusCode int
	Message    string
	Log        []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON sends body, which is raw JSON, and decodes the JSON response into
// result. If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body []byte, result any) error {
	_, err := c.do(ctx, method, path, body, result)
	return err
}

// do is doJSON that also returns the response status code.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, result any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	resp, err := c.send(ctx, method, path, bodyReader, "application/json")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return resp.StatusCode, err
	}
	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return resp.StatusCode, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set(ActorHeader, c.actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	return resp, nil
}

// checkStatus turns an error response into an *APIError. It consumes the
// body only on error.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error string   `json:"error"`
		Log   []string `json:"log"`
	}
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Log: errResp.Log}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}
