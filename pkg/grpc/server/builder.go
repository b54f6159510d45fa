// Package server builds the gRPC server that hosts the ESG overview service.
package server

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const defaultPort = 50051

type Option func(*Options)

type Options struct {
	port            int
	listener        net.Listener
	logger          *zap.Logger
	reflection      bool
	enableLogging   bool
	enableRequestID bool
	observer        RPCObserver
}

// WithPort sets the TCP port. Zero lets the kernel pick one.
func WithPort(port int) Option {
	return func(o *Options) { o.port = port }
}

// WithListener serves on lis instead of opening a TCP port.
func WithListener(lis net.Listener) Option {
	return func(o *Options) { o.listener = lis }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.logger = logger }
}

func WithReflection(enabled bool) Option {
	return func(o *Options) { o.reflection = enabled }
}

func WithLogging(enabled bool) Option {
	return func(o *Options) { o.enableLogging = enabled }
}

// WithRequestID tags every call with an x-request-id, minting one when the caller sent none.
func WithRequestID(enabled bool) Option {
	return func(o *Options) { o.enableRequestID = enabled }
}

// WithMetrics reports every unary call to observer.
func WithMetrics(observer RPCObserver) Option {
	return func(o *Options) { o.observer = observer }
}

func (o *Options) listen() (net.Listener, error) {
	if o.listener != nil {
		return o.listener, nil
	}
	if o.port < 0 || o.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 0 and 65535", o.port)
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", o.port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", o.port, err)
	}
	return lis, nil
}

// chain orders the interceptors. Recovery runs outermost so a panic in any later
// interceptor is still converted; metrics sit outside logging so they time the whole call.
func (o *Options) chain() []grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{RecoveryInterceptor(o.logger)}
	if o.enableRequestID {
		chain = append(chain, RequestIDInterceptor())
	}
	if o.observer != nil {
		chain = append(chain, MetricsInterceptor(o.observer))
	}
	if o.enableLogging {
		chain = append(chain, LoggingInterceptor(o.logger))
	}
	return chain
}

type Server struct {
	grpcServer   *grpc.Server
	lis          net.Listener
	logger       *zap.Logger
	healthServer *health.Server
}

// New creates a gRPC server with the health service registered and the overall
// status set to SERVING.
func New(opts ...Option) (*Server, error) {
	options := &Options{port: defaultPort}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	lis, err := options.listen()
	if err != nil {
		return nil, err
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(options.chain()...))
	if options.reflection {
		reflection.Register(grpcServer)
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{
		grpcServer:   grpcServer,
		lis:          lis,
		logger:       options.logger.Named("grpc-server"),
		healthServer: healthServer,
	}, nil
}

// RegisterService hands the underlying server to registerFunc.
func (s *Server) RegisterService(registerFunc func(s *grpc.Server)) {
	registerFunc(s.grpcServer)
}

// RegisterServiceWithHealth registers a service and marks it SERVING.
func (s *Server) RegisterServiceWithHealth(serviceName string, registerFunc func(s *grpc.Server)) {
	registerFunc(s.grpcServer)
	if serviceName == "" {
		return
	}
	s.healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("registered service with health check", zap.String("service", serviceName))
}

// SetServiceHealth changes the status reported for serviceName.
func (s *Server) SetServiceHealth(serviceName string, status healthpb.HealthCheckResponse_ServingStatus) {
	s.healthServer.SetServingStatus(serviceName, status)
	s.logger.Info("updated service health",
		zap.String("service", serviceName),
		zap.String("status", status.String()))
}

// Start runs the server in a goroutine and returns immediately.
func (s *Server) Start() {
	s.logger.Info("gRPC server starting", zap.String("addr", s.lis.Addr().String()))

	go func() {
		if err := s.grpcServer.Serve(s.lis); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()
}

// Shutdown reports NOT_SERVING, drains in-flight calls and falls back to a hard stop
// when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("gRPC server shutting down")
	s.healthServer.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("forced shutdown due to timeout")
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}
