// Package rpc exposes the risk history and on-demand analyses as a gRPC
// service. Messages are google.protobuf.Struct values carrying the same
// snake_case fields as the HTTP API, so no generated code is needed.
package rpc

import (
	"context"
	"errors"
	"log"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/config"
	"github.com/banshee-data/risk.report/internal/risk"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "riskreport.v1.RiskReport"

// Full method names.
const (
	ListAnalysesMethod  = "/" + ServiceName + "/ListAnalyses"
	GetAnalysisMethod   = "/" + ServiceName + "/GetAnalysis"
	AnalyzeMethod       = "/" + ServiceName + "/Analyze"
	AnalyzeStreamMethod = "/" + ServiceName + "/AnalyzeStream"
)

// ReportServer is the server API of the RiskReport service.
type ReportServer interface {
	ListAnalyses(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalysis(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnalyzeStream(*structpb.Struct, grpc.ServerStream) error
}

// ListParams filters ListAnalyses.
type ListParams struct {
	Level string `json:"level,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// GetParams selects one analysis.
type GetParams struct {
	ID string `json:"id"`
}

// AnalyzeParams requests a run. Omitted cap and stride use the server's
// configured defaults.
type AnalyzeParams struct {
	Footage  analysis.Footage  `json:"footage"`
	FrameCap *int              `json:"frame_cap,omitempty"`
	Stride   *int              `json:"stride,omitempty"`
	Location analysis.Location `json:"location"`
}

// AnalyzeEvent is one AnalyzeStream message: progress updates followed by
// a final message carrying the analysis.
type AnalyzeEvent struct {
	Progress int                    `json:"progress"`
	Analysis *analysis.RiskAnalysis `json:"analysis,omitempty"`
}

type listResponse struct {
	Analyses []*analysis.RiskAnalysis `json:"analyses"`
}

// Server implements ReportServer on top of an analysis.Manager.
type Server struct {
	manager *analysis.Manager
	cfg     *config.RiskConfig
}

// NewServer creates a Server. A nil cfg uses built-in defaults.
func NewServer(manager *analysis.Manager, cfg *config.RiskConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyRiskConfig()
	}
	return &Server{manager: manager, cfg: cfg}
}

// RegisterService registers s on grpcServer.
func RegisterService(grpcServer *grpc.Server, s ReportServer) {
	grpcServer.RegisterService(&ServiceDesc, s)
}

// ListAnalyses returns history oldest first, optionally filtered by level
// and limited to the newest entries.
func (s *Server) ListAnalyses(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var p ListParams
	if err := fromStruct(in, &p); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var level risk.Level
	if p.Level != "" {
		l, err := risk.ParseLevel(strings.ToUpper(p.Level))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		level = l
	}
	if p.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	all, err := s.manager.History().List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]*analysis.RiskAnalysis, 0, len(all))
	for _, a := range all {
		if level == "" || a.RiskLevel == level {
			out = append(out, a)
		}
	}
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[len(out)-p.Limit:]
	}
	return encode(listResponse{Analyses: out})
}

// GetAnalysis returns one analysis by ID.
func (s *Server) GetAnalysis(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var p GetParams
	if err := fromStruct(in, &p); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if p.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	a, err := s.manager.History().Get(ctx, p.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(a)
}

// Analyze runs an analysis and returns the stored record.
func (s *Server) Analyze(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.analyzeRequest(in)
	if err != nil {
		return nil, err
	}
	a, err := s.manager.Analyze(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(a)
}

// AnalyzeStream runs an analysis, streaming progress before the record.
func (s *Server) AnalyzeStream(in *structpb.Struct, stream grpc.ServerStream) error {
	req, err := s.analyzeRequest(in)
	if err != nil {
		return err
	}

	var sendErr error
	req.Progress = func(pct int) {
		if sendErr != nil || pct >= 100 {
			return
		}
		msg, err := encode(AnalyzeEvent{Progress: pct})
		if err == nil {
			err = stream.SendMsg(msg)
		}
		sendErr = err
	}

	a, err := s.manager.Analyze(stream.Context(), req)
	if err != nil {
		return toStatus(err)
	}
	if sendErr != nil {
		log.Printf("[rpc] progress stream for %s: %v", a.ID, sendErr)
	}
	msg, err := encode(AnalyzeEvent{Progress: 100, Analysis: a})
	if err != nil {
		return err
	}
	return stream.SendMsg(msg)
}

func (s *Server) analyzeRequest(in *structpb.Struct) (analysis.AnalyzeRequest, error) {
	var p AnalyzeParams
	if err := fromStruct(in, &p); err != nil {
		return analysis.AnalyzeRequest{}, status.Error(codes.InvalidArgument, err.Error())
	}
	req := analysis.AnalyzeRequest{
		Request: analysis.Request{
			Footage:  p.Footage,
			FrameCap: s.cfg.GetFrameCap(),
			Stride:   s.cfg.GetStride(),
		},
		Location: p.Location,
	}
	if p.FrameCap != nil {
		req.FrameCap = *p.FrameCap
	}
	if p.Stride != nil {
		req.Stride = *p.Stride
	}
	return req, nil
}

func encode(v interface{}) (*structpb.Struct, error) {
	s, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

// toStatus maps run and history errors to gRPC status codes.
func toStatus(err error) error {
	var inputErr *analysis.InputError
	var sourceErr *analysis.SourceError
	switch {
	case errors.As(err, &inputErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, analysis.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, analysis.ErrInvalidFootage):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, analysis.ErrCancelled):
		return status.Error(codes.Canceled, err.Error())
	case errors.As(err, &sourceErr):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func unaryHandler(call func(ReportServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReportServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ReportServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func analyzeStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ReportServer).AnalyzeStream(in, stream)
}

// ServiceDesc describes the RiskReport service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListAnalyses", Handler: unaryHandler(ReportServer.ListAnalyses, ListAnalysesMethod)},
		{MethodName: "GetAnalysis", Handler: unaryHandler(ReportServer.GetAnalysis, GetAnalysisMethod)},
		{MethodName: "Analyze", Handler: unaryHandler(ReportServer.Analyze, AnalyzeMethod)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "AnalyzeStream", Handler: analyzeStreamHandler, ServerStreams: true},
	},
	Metadata: "riskreport/v1/report.proto",
}
