package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/loadmesh/jenkins-converge/core"
	"github.com/loadmesh/jenkins-converge/model"
	"github.com/spf13/cobra"
)

func newProbeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe KIND NAME",
		Short: "Show the current state of a slave, node or job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			env, err := root.environment()
			if err != nil {
				return err
			}
			defer env.close()
			state, err := core.NewXMLStateProbe(env.executor, env.log).Fetch(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), kind, args[1], state)
			return nil
		},
	}
}

func printState(w io.Writer, kind model.Kind, name string, s *model.CurrentState) {
	if !s.Present {
		fmt.Fprintf(w, "%s/%s: absent\n", kind, name)
		return
	}
	fmt.Fprintf(w, "%s/%s: present\n", kind, name)
	if kind == model.KindJob {
		fmt.Fprintf(w, "  type:         %s\n", s.Class)
		fmt.Fprintf(w, "  description:  %s\n", s.Description)
		fmt.Fprintf(w, "  disabled:     %t\n", s.Disabled)
		return
	}
	var labels []string
	if s.Labels != nil {
		labels = s.Labels.ToSlice()
		sort.Strings(labels)
	}
	fmt.Fprintf(w, "  description:  %s\n", s.Description)
	fmt.Fprintf(w, "  remote_fs:    %s\n", s.RemoteFS)
	fmt.Fprintf(w, "  mode:         %s\n", s.Mode)
	fmt.Fprintf(w, "  executors:    %d\n", s.Executors)
	fmt.Fprintf(w, "  labels:       %s\n", strings.Join(labels, " "))
	fmt.Fprintf(w, "  launcher:     %s (%s)\n", s.Launcher.Type, s.Class)
	fmt.Fprintf(w, "  availability: %s\n", s.Availability.Type)
	fmt.Fprintf(w, "  user_id:      %s\n", s.UserID)
}
