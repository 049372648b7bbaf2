package grpc_executor

import (
	"context"
	"fmt"
	"net"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/go-logr/logr"
	"github.com/loadmesh/jenkins-converge/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCExecutorService exposes a local Executor to GRPCExecutor clients.
type GRPCExecutorService struct {
	executor api.Executor
	options  *options
	log      *fscommon.Logger
}

type options struct {
	lis net.Listener
	log *logr.Logger
}

type Option interface {
	apply(option *options) (*options, error)
}

type optionFunc func(*options) (*options, error)

func (f optionFunc) apply(c *options) (*options, error) {
	return f(c)
}

func WithListener(lis net.Listener) Option {
	return optionFunc(func(o *options) (*options, error) {
		o.lis = lis
		return o, nil
	})
}

func WithLogger(log *logr.Logger) Option {
	return optionFunc(func(o *options) (*options, error) {
		o.log = log
		return o, nil
	})
}

func NewGRPCExecutorService(executor api.Executor, opts ...Option) (*GRPCExecutorService, error) {
	o := &options{}
	for _, opt := range opts {
		_, err := opt.apply(o)
		if err != nil {
			return nil, err
		}
	}
	if o.lis == nil {
		return nil, fmt.Errorf("listener is required")
	}
	var log *fscommon.Logger
	if o.log == nil {
		log = fscommon.NewDefaultLogger()
	} else {
		log = fscommon.NewLogger(o.log)
	}
	return &GRPCExecutorService{
		executor: executor,
		options:  o,
		log:      log,
	}, nil
}

type serverImpl struct {
	executor api.Executor
	log      *fscommon.Logger
}

var _ executorServer = &serverImpl{}

func (s *serverImpl) Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cmd, err := commandFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.log.Info("running command for remote client", "command", cmd.String())
	out, runErr := s.executor.Run(ctx, cmd)
	if runErr != nil {
		s.log.Error(runErr, "command could not be run", "command", cmd.String())
	}
	return outputToStruct(out, runErr)
}

func (s *GRPCExecutorService) getServer() *grpc.Server {
	grpcSvr := grpc.NewServer()
	svrImpl := &serverImpl{
		executor: s.executor,
		log:      s.log,
	}
	grpcSvr.RegisterService(&executorServiceDesc, svrImpl)
	return grpcSvr
}

func (s *GRPCExecutorService) Serve(ctx context.Context) error {
	svr := s.getServer()
	go func() {
		<-ctx.Done()
		svr.GracefulStop()
	}()
	s.log.Info("serving executor", "address", s.options.lis.Addr().String())
	return svr.Serve(s.options.lis)
}
