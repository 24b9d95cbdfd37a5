package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/risk.report/internal/analysis"
)

// Client calls a RiskReport service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewClient(conn), conn, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, resp); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

// ListAnalyses returns the server's history.
func (c *Client) ListAnalyses(ctx context.Context, p ListParams) ([]*analysis.RiskAnalysis, error) {
	var resp listResponse
	if err := c.invoke(ctx, ListAnalysesMethod, p, &resp); err != nil {
		return nil, err
	}
	return resp.Analyses, nil
}

// GetAnalysis returns one analysis.
func (c *Client) GetAnalysis(ctx context.Context, id string) (*analysis.RiskAnalysis, error) {
	var a analysis.RiskAnalysis
	if err := c.invoke(ctx, GetAnalysisMethod, GetParams{ID: id}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Analyze runs an analysis on the server.
func (c *Client) Analyze(ctx context.Context, p AnalyzeParams) (*analysis.RiskAnalysis, error) {
	var a analysis.RiskAnalysis
	if err := c.invoke(ctx, AnalyzeMethod, p, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AnalyzeStream runs an analysis, calling progress for each update before
// returning the record. progress may be nil.
func (c *Client) AnalyzeStream(ctx context.Context, p AnalyzeParams, progress func(int)) (*analysis.RiskAnalysis, error) {
	req, err := toStruct(p)
	if err != nil {
		return nil, err
	}
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], AnalyzeStreamMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("analyze stream ended without a result")
			}
			return nil, err
		}
		var ev AnalyzeEvent
		if err := fromStruct(msg, &ev); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(ev.Progress)
		}
		if ev.Analysis != nil {
			return ev.Analysis, nil
		}
	}
}
