package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const listModelsMethod = "/modelbase.v1.ModelService/ListModels"

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func TestAuthInterceptor(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		method string
		md     metadata.MD // nil means no metadata at all
		want   codes.Code
	}{
		{"disabled", "", listModelsMethod, nil, codes.OK},
		{"health exempt", "secret", healthMethod, nil, codes.OK},
		{"missing metadata", "secret", listModelsMethod, nil, codes.Unauthenticated},
		{"missing header", "secret", listModelsMethod, metadata.Pairs("other", "value"), codes.Unauthenticated},
		{"wrong token", "secret", listModelsMethod, metadata.Pairs("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"invalid scheme", "secret", listModelsMethod, metadata.Pairs("authorization", "Basic secret"), codes.Unauthenticated},
		{"correct token", "secret", listModelsMethod, metadata.Pairs("authorization", "Bearer secret"), codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			resp, err := AuthInterceptor(tt.token)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, stubHandler)
			if got := status.Code(err); got != tt.want {
				t.Fatalf("code = %v, want %v (err=%v)", got, tt.want, err)
			}
			if tt.want == codes.OK && resp != "ok" {
				t.Fatalf("expected 'ok', got %v", resp)
			}
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	panicking := func(context.Context, any) (any, error) {
		panic("boom")
	}
	_, err := RecoveryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: listModelsMethod}, panicking)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestActorInterceptor(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(actorMetadataKey, "alice"))
	var got string
	_, err := ActorInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: listModelsMethod}, func(ctx context.Context, _ any) (any, error) {
		got = ActorFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "alice" {
		t.Fatalf("actor = %q, want alice", got)
	}
}

// --- AuthMiddleware tests ---

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		path   string
		header string
		want   int
	}{
		{"no header", "secret", "/v1/models", "", http.StatusUnauthorized},
		{"wrong token", "secret", "/v1/models", "Bearer wrong", http.StatusUnauthorized},
		{"invalid scheme", "secret", "/v1/models", "Basic secret", http.StatusUnauthorized},
		{"correct token", "secret", "/v1/models", "Bearer secret", http.StatusOK},
		{"health exempt", "secret", "/v1/health", "", http.StatusOK},
		{"live exempt", "secret", "/live", "", http.StatusOK},
		{"disabled", "", "/v1/models", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(tt.token, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d; body: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestActorMiddleware(t *testing.T) {
	var got string
	handler := ActorMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set(ActorHeader, "bob")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "bob" {
		t.Fatalf("actor = %q, want bob", got)
	}
}

func TestCheckBearer(t *testing.T) {
	for _, tc := range []struct {
		header string
		want   error
	}{
		{"", errMissingAuth},
		{"Token secret", errInvalidScheme},
		{"bearer secret", errInvalidScheme},
		{"Bearer secre", errInvalidToken},
		{"Bearer secret", nil},
	} {
		if got := checkBearer(tc.header, "secret"); got != tc.want {
			t.Errorf("checkBearer(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestLoggingMiddleware_KeepsFlusher(t *testing.T) {
	var flushable bool
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	if !flushable {
		t.Error("wrapped writer lost http.Flusher")
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	_, _ = rec.Write([]byte("x"))
	rec.WriteHeader(http.StatusNotFound)
	if rec.status != http.StatusOK {
		t.Fatalf("status = %d, want first status %d", rec.status, http.StatusOK)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
