package grpc

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/dmitrijs2005/saveme/internal/logging"
	pb "github.com/dmitrijs2005/saveme/internal/proto"
	"github.com/dmitrijs2005/saveme/internal/services"
	"google.golang.org/grpc"
)

type Server struct {
	address   string
	vault     services.Vault
	logger    logging.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
	limiter   RateLimiter
	allowWipe bool
	tmpDir    string
}

type Option func(*Server)

func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithLoginRate limits login attempts per user id.
func WithLoginRate(perMinute, burst int) Option {
	return func(s *Server) { s.limiter = NewUserRateLimiter(perMinute, time.Minute, burst, 15*time.Minute) }
}

func WithRateLimiter(l RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithRemoteWipe lets clients call Wipe. It is off by default.
func WithRemoteWipe(allow bool) Option {
	return func(s *Server) { s.allowWipe = allow }
}

// WithTempDir sets where uploaded and revealed media are staged.
func WithTempDir(dir string) Option {
	return func(s *Server) { s.tmpDir = dir }
}

func NewServer(a string, l logging.Logger, v services.Vault, secretKey string, opts ...Option) *Server {
	s := &Server{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		vault:     v,
		jwtSecret: []byte(secretKey),
		tokenTTL:  15 * time.Minute,
		tmpDir:    os.TempDir(),
	}
	for _, fn := range opts {
		fn(s)
	}
	if s.limiter == nil {
		s.limiter = NewUserRateLimiter(10, time.Minute, 5, 15*time.Minute)
	}
	return s
}

func (s *Server) newGRPCServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.requestLoggerInterceptor, s.accessTokenInterceptor),
		grpc.MaxRecvMsgSize(pb.MaxMessageSize),
		grpc.MaxSendMsgSize(pb.MaxMessageSize),
	)
	srv.RegisterService(&serviceDesc, s)
	return srv
}

func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newGRPCServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
