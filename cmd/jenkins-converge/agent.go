package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/loadmesh/jenkins-converge/core"
	"github.com/loadmesh/jenkins-converge/core/grpc_executor"
	"github.com/spf13/cobra"
)

const defaultListen = ":50051"

func newAgentCommand(root *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve the local Jenkins CLI to remote jenkins-converge clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Server.URL == "" {
				return fmt.Errorf("server.url is required to run an agent")
			}
			if listen == "" {
				listen = cfg.Remote.Listen
			}
			if listen == "" {
				listen = defaultListen
			}
			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listen, err)
			}
			svc, err := grpc_executor.NewGRPCExecutorService(
				core.NewCLIExecutor(cfg.ExecOptions(), fscommon.NewLogger(log)),
				grpc_executor.WithListener(lis),
				grpc_executor.WithLogger(log),
			)
			if err != nil {
				return err
			}
			if err := svc.Serve(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to serve on (default from remote.listen)")
	return cmd
}
