package grpc

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/bibbank/loanbook/pkg/auth"
	"github.com/bibbank/loanbook/pkg/tlsutil"
)

// TLSFiles points at the PEM files for server TLS. Empty CertFile or KeyFile disables TLS.
type TLSFiles struct {
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

// ServerOptions tune the gRPC server.
type ServerOptions struct {
	// JWT validates bearer tokens. Nil disables authentication.
	JWT        *auth.JWTService
	TLS        TLSFiles
	Reflection bool
}

// Server wraps a gRPC server with the loan book handler registered.
type Server struct {
	gs      *grpc.Server
	health  *health.Server
	handler *LoanBookHandler
	logger  *slog.Logger
}

// NewServer creates and configures the gRPC server.
func NewServer(handler *LoanBookHandler, logger *slog.Logger, opts ServerOptions) (*Server, error) {
	var serverOpts []grpc.ServerOption

	interceptors := []grpc.UnaryServerInterceptor{LoggingInterceptor(logger)}
	if opts.JWT != nil {
		interceptors = append(interceptors, auth.UnaryAuthInterceptor(opts.JWT, []string{
			"/grpc.health.v1.Health/Check",
			"/grpc.health.v1.Health/Watch",
		}))
	} else {
		logger.Warn("gRPC authentication disabled")
	}
	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(interceptors...))

	if opts.TLS.CertFile != "" && opts.TLS.KeyFile != "" {
		creds, err := tlsutil.ServerTLSConfig(opts.TLS.CertFile, opts.TLS.KeyFile, opts.TLS.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("grpc tls: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
		logger.Info("gRPC TLS enabled", "cert", opts.TLS.CertFile, "mtls", opts.TLS.ClientCAFile != "")
	} else {
		logger.Info("gRPC TLS not configured, running without TLS")
	}

	gs := grpc.NewServer(serverOpts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if opts.Reflection {
		reflection.Register(gs)
	}

	RegisterLoanBookServiceServer(gs, handler)

	return &Server{
		gs:      gs,
		health:  healthSrv,
		handler: handler,
		logger:  logger,
	}, nil
}

// Serve starts the gRPC server on the specified address.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.logger.Info("gRPC server listening", "addr", addr)
	return s.gs.Serve(lis)
}

// ServeListener serves on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.gs.Serve(lis)
}

// GracefulStop marks the service as not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.logger.Info("gRPC server shutting down")
	s.health.Shutdown()
	s.gs.GracefulStop()
}
