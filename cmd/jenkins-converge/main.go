package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/loadmesh/jenkins-converge/api"
	"github.com/loadmesh/jenkins-converge/config"
	"github.com/loadmesh/jenkins-converge/core"
	"github.com/loadmesh/jenkins-converge/core/grpc_executor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	manifest string
	server   string
	verbose  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "jenkins-converge",
		Short:         "Converge Jenkins slaves, nodes and jobs towards a declared state",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.manifest, "file", "f", "jenkins.toml", "Path to the manifest")
	flags.StringVar(&opts.server, "server", "", "Override the Jenkins server URL of the manifest")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable development logging")

	cmd.AddCommand(
		newConvergeCommand(opts),
		newProbeCommand(opts),
		newRunCommand(opts),
		newAgentCommand(opts),
	)
	return cmd
}

func newLogger(verbose bool) (*logr.Logger, error) {
	var (
		zapLogger *zap.Logger
		err       error
	)
	if verbose {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log := zapr.NewLogger(zapLogger)
	return &log, nil
}

// environment is what every subcommand needs: the manifest, a logger and
// an executor bound to the configured server.
type environment struct {
	cfg      *config.Config
	logr     *logr.Logger
	log      *fscommon.Logger
	executor api.Executor
	close    func()
}

func (o *rootOptions) load() (*config.Config, *logr.Logger, error) {
	log, err := newLogger(o.verbose)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(o.manifest)
	if err != nil {
		return nil, nil, err
	}
	if o.server != "" {
		cfg.Server.URL = o.server
	}
	return cfg, log, nil
}

func (o *rootOptions) environment() (*environment, error) {
	cfg, logrLogger, err := o.load()
	if err != nil {
		return nil, err
	}
	log := fscommon.NewLogger(logrLogger)
	env := &environment{
		cfg:   cfg,
		logr:  logrLogger,
		log:   log,
		close: func() {},
	}
	if cfg.Remote.Endpoint == "" {
		env.executor = core.NewCLIExecutor(cfg.ExecOptions(), log)
		return env, nil
	}
	remote := grpc_executor.NewGRPCExecutor(cfg.Remote.Endpoint, log)
	if err := remote.Connect(); err != nil {
		return nil, err
	}
	env.executor = remote
	env.close = func() {
		_ = remote.Close()
	}
	return env, nil
}
