package main

import (
	"fmt"

	"github.com/loadmesh/jenkins-converge/core"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type runOptions struct {
	dryRun bool
}

func addRunFlags(flags *pflag.FlagSet, opts *runOptions) {
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Report what would change without changing anything")
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run ACTION KIND NAME",
		Short: "Run a single action against one resource",
		Long: "Run a single action against one resource. Resources declared in the manifest use their " +
			"declared attributes; others may only be deleted or driven through imperative actions.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := model.ParseAction(args[0])
			if err != nil {
				return err
			}
			kind, err := model.ParseKind(args[1])
			if err != nil {
				return err
			}
			env, err := root.environment()
			if err != nil {
				return err
			}
			defer env.close()
			resource, err := lookupResource(env, kind, args[2], intent)
			if err != nil {
				return err
			}
			reconciler, err := core.NewReconciler(
				core.WithExecutor(env.executor),
				core.WithDryRun(opts.dryRun || env.cfg.DryRun),
				core.WithLogger(env.logr),
			)
			if err != nil {
				return err
			}
			result := reconciler.Reconcile(cmd.Context(), resource, intent)
			results := []*model.ReconcileResult{result}
			printResults(cmd.OutOrStdout(), results)
			return resultsError(results)
		},
	}
	addRunFlags(cmd.Flags(), opts)
	return cmd
}

// lookupResource finds the declared resource, or builds a bare one for
// intents that need nothing but the name.
func lookupResource(env *environment, kind model.Kind, name string, intent model.Action) (model.Resource, error) {
	desired, err := env.cfg.Desired()
	if err != nil {
		return nil, err
	}
	for _, d := range desired {
		if d.Resource.GetKind() == kind && d.Resource.GetName() == name {
			return d.Resource, nil
		}
	}
	if intent.EnsuresPresent() {
		return nil, fmt.Errorf("%w: %s/%s is not declared in the manifest", common.ErrInvalidConfig, kind, name)
	}
	switch kind {
	case model.KindJob:
		return model.NewJob(model.Job{Name: name})
	case model.KindNode:
		return model.NewNode(model.Agent{Name: name}, "")
	}
	return model.NewSlave(model.Agent{Name: name})
}
