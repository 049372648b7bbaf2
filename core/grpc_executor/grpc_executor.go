/*
 * Copyright 2024 LoadMesh Org.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package grpc_executor

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/loadmesh/jenkins-converge/api"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ExecutorStatusNotReady int32 = iota
	ExecutorStatusReady    int32 = iota
)

// GRPCExecutor runs commands on a remote agent that has the Jenkins CLI.
type GRPCExecutor struct {
	endpoint string
	dialOpts []grpc.DialOption
	conn     *grpc.ClientConn
	status   int32
	log      *fscommon.Logger
}

var _ api.Executor = &GRPCExecutor{}

func NewGRPCExecutor(endpoint string, log *fscommon.Logger, dialOpts ...grpc.DialOption) *GRPCExecutor {
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &GRPCExecutor{
		endpoint: endpoint,
		dialOpts: dialOpts,
		log:      log,
	}
}

func (e *GRPCExecutor) Connect() error {
	conn, err := grpc.NewClient(e.endpoint, e.dialOpts...)
	if err != nil {
		e.log.Error(err, "failed to connect to executor", "endpoint", e.endpoint)
		return fmt.Errorf("failed to connect to executor %s: %w", e.endpoint, err)
	}
	e.conn = conn
	atomic.CompareAndSwapInt32(&e.status, ExecutorStatusNotReady, ExecutorStatusReady)
	e.log.Info("connected to executor", "endpoint", e.endpoint)
	return nil
}

func (e *GRPCExecutor) Close() error {
	if !atomic.CompareAndSwapInt32(&e.status, ExecutorStatusReady, ExecutorStatusNotReady) {
		return nil
	}
	return e.conn.Close()
}

// Run ships the command to the agent. The config file is read locally, as
// the agent may not share this host's filesystem.
func (e *GRPCExecutor) Run(ctx context.Context, cmd model.Command) (*model.Output, error) {
	if atomic.LoadInt32(&e.status) != ExecutorStatusReady {
		return nil, fmt.Errorf("%w: %s", common.ErrExecutorNotReady, e.endpoint)
	}
	if cmd.Payload == nil && cmd.ConfigPath != "" {
		payload, err := os.ReadFile(cmd.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), err)
		}
		cmd.Payload = payload
	}
	req, err := commandToStruct(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), err)
	}
	res := new(structpb.Struct)
	if err := e.conn.Invoke(ctx, runMethod, req, res); err != nil {
		return nil, fmt.Errorf("%w: %q on %s: %w", common.ErrCommandNotRun, cmd.String(), e.endpoint, err)
	}
	out, remoteErr := outputFromStruct(res)
	if remoteErr != "" {
		return nil, fmt.Errorf("%w: %q on %s: %s", common.ErrCommandNotRun, cmd.String(), e.endpoint, remoteErr)
	}
	return out, nil
}

func (e *GRPCExecutor) RunChecked(ctx context.Context, cmd model.Command) (*model.Output, error) {
	out, err := e.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return out, out.Check(cmd)
}
