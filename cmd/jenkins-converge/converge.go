package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/loadmesh/jenkins-converge/core"
	"github.com/loadmesh/jenkins-converge/model"
	"github.com/spf13/cobra"
)

func newConvergeCommand(root *rootOptions) *cobra.Command {
	var (
		dryRun bool
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "converge",
		Short: "Reconcile every resource of the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.environment()
			if err != nil {
				return err
			}
			defer env.close()
			if cmd.Flags().Changed("dry-run") {
				env.cfg.DryRun = dryRun
			}
			desired, err := env.cfg.Desired()
			if err != nil {
				return err
			}
			reconciler, err := core.NewReconciler(
				core.WithExecutor(env.executor),
				core.WithDryRun(env.cfg.DryRun),
				core.WithLogger(env.logr),
			)
			if err != nil {
				return err
			}

			if watch {
				interval, err := env.cfg.WatchInterval()
				if err != nil {
					return err
				}
				converger, err := core.NewConverger(reconciler, desired, interval, env.cfg.Concurrency,
					func(r *model.ReconcileResult) {
						printResults(cmd.OutOrStdout(), []*model.ReconcileResult{r})
					})
				if err != nil {
					return err
				}
				if err := converger.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}

			results := reconciler.ReconcileAll(cmd.Context(), desired, env.cfg.Concurrency)
			printResults(cmd.OutOrStdout(), results)
			return resultsError(results)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "Report what would change without changing anything")
	flags.BoolVar(&watch, "watch", false, "Keep converging at the manifest interval until interrupted")
	return cmd
}

func printResults(w io.Writer, results []*model.ReconcileResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tACTION\tCHANGED\tSTATE\tCOMMAND\tERROR")
	for _, r := range results {
		changed := fmt.Sprint(r.Changed)
		if r.DryRun && r.Changed {
			changed = "would change"
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s/%s\t%s\t%s\t%s\t%s\t%s\n", r.Kind, r.Name, r.Action, changed, r.State, r.Command, errText)
	}
	_ = tw.Flush()
}

func resultsError(results []*model.ReconcileResult) error {
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d resources failed to converge", failed, len(results))
	}
	return nil
}
