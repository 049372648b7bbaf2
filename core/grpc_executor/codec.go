package grpc_executor

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/loadmesh/jenkins-converge/model"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName = "jenkinsconverge.Executor"
	runMethod   = "/" + serviceName + "/Run"
)

// executorServer is the server side of the Executor service.
type executorServer interface {
	Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func runHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(executorServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: runMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(executorServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var executorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*executorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Run",
			Handler:    runHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jenkinsconverge/executor",
}

func commandToStruct(cmd model.Command) (*structpb.Struct, error) {
	args := make([]interface{}, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = a
	}
	fields := map[string]interface{}{
		"verb":       cmd.Verb,
		"args":       args,
		"configPath": cmd.ConfigPath,
	}
	if cmd.Payload != nil {
		fields["payload"] = base64.StdEncoding.EncodeToString(cmd.Payload)
	}
	return structpb.NewStruct(fields)
}

func commandFromStruct(s *structpb.Struct) (model.Command, error) {
	f := s.GetFields()
	cmd := model.Command{
		Verb:       f["verb"].GetStringValue(),
		ConfigPath: f["configPath"].GetStringValue(),
	}
	if cmd.Verb == "" {
		return model.Command{}, fmt.Errorf("request has no verb")
	}
	for _, v := range f["args"].GetListValue().GetValues() {
		cmd.Args = append(cmd.Args, v.GetStringValue())
	}
	if p, ok := f["payload"]; ok {
		payload, err := base64.StdEncoding.DecodeString(p.GetStringValue())
		if err != nil {
			return model.Command{}, fmt.Errorf("invalid payload: %w", err)
		}
		cmd.Payload = payload
	}
	return cmd, nil
}

// outputToStruct encodes the result of a run. runErr is set when the
// command could not be run on the agent.
func outputToStruct(out *model.Output, runErr error) (*structpb.Struct, error) {
	fields := map[string]interface{}{}
	if runErr != nil {
		fields["error"] = runErr.Error()
	} else {
		fields["stdout"] = out.Stdout
		fields["stderr"] = out.Stderr
		fields["exitCode"] = out.ExitCode
	}
	return structpb.NewStruct(fields)
}

func outputFromStruct(s *structpb.Struct) (*model.Output, string) {
	f := s.GetFields()
	if e := f["error"].GetStringValue(); e != "" {
		return nil, e
	}
	return &model.Output{
		Stdout:   f["stdout"].GetStringValue(),
		Stderr:   f["stderr"].GetStringValue(),
		ExitCode: int(f["exitCode"].GetNumberValue()),
	}, ""
}
