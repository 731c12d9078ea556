package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pulsesim/internal/evaluator"
	"github.com/banshee-data/pulsesim/internal/monitoring"
)

type evaluateServer interface {
	Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*evaluateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pulsesim/evaluator/v1/evaluator.proto",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(evaluateServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(evaluateServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var _ evaluateServer = (*Server)(nil)

// Server exposes a local evaluator as the Evaluate RPC.
type Server struct {
	eval evaluator.Evaluator
	log  *slog.Logger

	mu       sync.Mutex
	server   *grpc.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer wraps eval. A nil logger uses the default.
func NewServer(eval evaluator.Evaluator, logger *slog.Logger) *Server {
	return &Server{eval: eval, log: monitoring.OrDefault(logger)}
}

// Register adds the evaluator service to gs.
func Register(gs grpc.ServiceRegistrar, s *Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Evaluate implements the RPC.
func (s *Server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	probs, err := s.eval.Evaluate(ctx, req)
	if err != nil {
		s.log.Warn("evaluation failed", "pulses", len(req.Pulses), "ions", req.IonCount, "err", err)
		return nil, status.Error(codeFor(err), err.Error())
	}
	out, err := encodeResponse(probs)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.log.Debug("evaluated", "pulses", len(req.Pulses), "ions", req.IonCount, "labels", len(probs))
	return out, nil
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, evaluator.ErrNoIons):
		return codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// Start listens on addr and serves in the background until Stop.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.Serve(lis)
	return nil
}

// Serve serves on lis in the background until Stop.
func (s *Server) Serve(lis net.Listener) {
	gs := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	Register(gs, s)

	s.mu.Lock()
	s.server = gs
	s.listener = lis
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("evaluator listening", "addr", lis.Addr().String())
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.log.Error("evaluator server error", "err", err)
		}
	}()
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server and waits for it to exit.
func (s *Server) Stop() {
	s.mu.Lock()
	gs := s.server
	s.server = nil
	s.mu.Unlock()
	if gs == nil {
		return
	}
	gs.GracefulStop()
	s.wg.Wait()
	s.log.Info("evaluator stopped")
}
