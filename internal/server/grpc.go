package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "modelbase.v1.ModelService"

const healthMethod = "/" + ServiceName + "/Health"

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the ModelService, reflection, and returns the server ready to serve.
// When authToken is non-empty, every call except Health must carry it.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			ActorInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&modelServiceDesc, s)
	reflection.Register(srv)

	return srv
}

// modelServiceServer is the handler type checked by RegisterService.
type modelServiceServer interface {
	GetModel(ctx context.Context, ref string) (*model.ModelScheme, error)
	CreateDocument(ctx context.Context, ref string, raw []byte) (*jsonvalue.Object, error)
}

// Requests and responses are google.protobuf.Struct messages. Samples and
// documents travel as JSON strings so that key order and integer precision
// survive the trip.
var modelServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*modelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Health", (*Server).rpcHealth),
		unaryMethod("InferModel", (*Server).rpcInferModel),
		unaryMethod("CreateModel", (*Server).rpcCreateModel),
		unaryMethod("GetModel", (*Server).rpcGetModel),
		unaryMethod("ListModels", (*Server).rpcListModels),
		unaryMethod("ReplaceModel", (*Server).rpcReplaceModel),
		unaryMethod("DeleteModel", (*Server).rpcDeleteModel),
		unaryMethod("ValidateDocument", (*Server).rpcValidateDocument),
		unaryMethod("CreateDocument", (*Server).rpcCreateDocument),
		unaryMethod("GetDocument", (*Server).rpcGetDocument),
		unaryMethod("ListDocuments", (*Server).rpcListDocuments),
		unaryMethod("UpdateDocument", (*Server).rpcUpdateDocument),
		unaryMethod("DeleteDocument", (*Server).rpcDeleteDocument),
	},
	Streams: []grpc.StreamDesc{},
}

type rpcFunc func(s *Server, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// unaryMethod adapts fn to a grpc.MethodDesc, running it through the
// server's interceptor chain.
func unaryMethod(name string, fn rpcFunc) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := fn(s, ctx, req.(*structpb.Struct))
				if err != nil {
					return nil, grpcError(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
		},
	}
}

// grpcError converts a service error into a gRPC status error. A rejected
// document carries its validation log as a Struct detail.
func grpcError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var ide *invalidDocumentError
	if errors.As(err, &ide) {
		st := status.New(codes.InvalidArgument, InvalidDocumentMessage)
		detail, derr := toStruct(map[string]any{"log": ide.Result.Log})
		if derr == nil {
			if withDetail, werr := st.WithDetails(detail); werr == nil {
				st = withDetail
			}
		}
		return st.Err()
	}
	return status.Error(grpcCode(err), err.Error())
}

// toStruct converts any JSON-marshalable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}
	return out, nil
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func intField(req *structpb.Struct, key string) int {
	return int(req.GetFields()[key].GetNumberValue())
}

// documentString renders a document for a response.
func documentString(doc *jsonvalue.Object) (string, error) {
	b, err := jsonvalue.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(b), nil
}

func (s *Server) rpcHealth(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]string{"status": "ok"})
}

func (s *Server) rpcInferModel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	def, err := s.InferModel(ctx, stringField(req, "name"), []byte(stringField(req, "sample")))
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"definition": def})
}

func (s *Server) rpcCreateModel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scheme, err := s.CreateModel(ctx, stringField(req, "name"), []byte(stringField(req, "sample")))
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"model": scheme})
}

func (s *Server) rpcGetModel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scheme, err := s.GetModel(ctx, stringField(req, "ref"))
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"model": scheme})
}

func (s *Server) rpcListModels(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	schemes, err := s.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if schemes == nil {
		schemes = []*model.ModelScheme{}
	}
	return toStruct(map[string]any{"models": schemes, "total": len(schemes)})
}

func (s *Server) rpcReplaceModel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scheme, err := s.ReplaceModel(ctx, stringField(req, "ref"), []byte(stringField(req, "sample")))
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"model": scheme})
}

func (s *Server) rpcDeleteModel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.DeleteModel(ctx, stringField(req, "ref")); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}

func (s *Server) rpcValidateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	result, err := s.ValidateDocument(ctx, stringField(req, "model"), []byte(stringField(req, "document")))
	if err != nil {
		return nil, err
	}
	return toStruct(result)
}

func (s *Server) rpcCreateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, err := s.CreateDocument(ctx, stringField(req, "model"), []byte(stringField(req, "document")))
	if err != nil {
		return nil, err
	}
	out, err := documentString(doc)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"document": out})
}

func (s *Server) rpcGetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, err := s.GetDocument(ctx, stringField(req, "model"), stringField(req, "id"))
	if err != nil {
		return nil, err
	}
	out, err := documentString(doc)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"document": out})
}

func (s *Server) rpcListDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	page, err := s.ListDocuments(ctx, stringField(req, "model"), ListOptions{
		Limit:  intField(req, "limit"),
		Offset: intField(req, "offset"),
		Filter: stringField(req, "filter"),
	})
	if err != nil {
		return nil, err
	}
	docs := make([]string, len(page.Documents))
	for i, d := range page.Documents {
		if docs[i], err = documentString(d); err != nil {
			return nil, err
		}
	}
	return toStruct(map[string]any{
		"documents": docs,
		"total":     page.Total,
		"limit":     page.Limit,
		"offset":    page.Offset,
	})
}

func (s *Server) rpcUpdateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, created, err := s.UpdateDocument(ctx, stringField(req, "model"), stringField(req, "id"), []byte(stringField(req, "document")))
	if err != nil {
		return nil, err
	}
	out, err := documentString(doc)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"document": out, "created": created})
}

func (s *Server) rpcDeleteDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.DeleteDocument(ctx, stringField(req, "model"), stringField(req, "id")); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}
