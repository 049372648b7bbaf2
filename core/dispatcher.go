package core

import (
	"fmt"
	"sort"

	"github.com/loadmesh/jenkins-converge/api"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
)

// CommandDispatcher maps an action on a resource to exactly one CLI command.
type CommandDispatcher struct{}

var _ api.ActionDispatcher = &CommandDispatcher{}

func NewCommandDispatcher() *CommandDispatcher {
	return &CommandDispatcher{}
}

var jobVerbs = map[model.Action]string{
	model.ActionCreate:  "create-job",
	model.ActionUpdate:  "update-job",
	model.ActionDelete:  "delete-job",
	model.ActionEnable:  "enable-job",
	model.ActionDisable: "disable-job",
	model.ActionBuild:   "build",
}

var nodeVerbs = map[model.Action]string{
	model.ActionCreate:     "create-node",
	model.ActionUpdate:     "update-node",
	model.ActionDelete:     "delete-node",
	model.ActionConnect:    "connect-node",
	model.ActionDisconnect: "disconnect-node",
	model.ActionOnline:     "online-node",
	model.ActionOffline:    "offline-node",
}

func unknownAction(action model.Action, resource model.Resource) error {
	return fmt.Errorf("%w: %q is not supported for %s %q", common.ErrUnknownAction, action,
		resource.GetKind(), resource.GetName())
}

func (d *CommandDispatcher) CommandFor(action model.Action, resource model.Resource) (model.Command, error) {
	switch r := resource.(type) {
	case *model.Job:
		return jobCommand(action, r)
	case *model.Slave:
		return agentCommand(action, r, &r.Agent, "")
	case *model.Node:
		return agentCommand(action, r, &r.Agent, r.JVMOptions)
	}
	return model.Command{}, unknownAction(action, resource)
}

func jobCommand(action model.Action, job *model.Job) (model.Command, error) {
	verb, ok := jobVerbs[action]
	if !ok {
		return model.Command{}, unknownAction(action, job)
	}
	cmd := model.NewCommand(verb, job.Name)
	switch action {
	case model.ActionCreate, model.ActionUpdate:
		path, err := job.ResolveConfig()
		if err != nil {
			return model.Command{}, err
		}
		cmd.ConfigPath = path
	case model.ActionBuild:
		if job.WaitForBuild {
			cmd.Args = append(cmd.Args, "-s")
		}
		keys := make([]string, 0, len(job.BuildParameters))
		for k := range job.BuildParameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Args = append(cmd.Args, "-p", k+"="+job.BuildParameters[k])
		}
	}
	return cmd, nil
}

func agentCommand(action model.Action, resource model.Resource, agent *model.Agent, jvmOptions string) (model.Command, error) {
	verb, ok := nodeVerbs[action]
	if !ok {
		return model.Command{}, unknownAction(action, resource)
	}
	cmd := model.NewCommand(verb, agent.Name)
	switch action {
	case model.ActionCreate, model.ActionUpdate:
		payload, err := renderAgent(agent, jvmOptions)
		if err != nil {
			return model.Command{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
		}
		cmd.Payload = payload
	case model.ActionOffline:
		if agent.OfflineMessage != "" {
			cmd.Args = append(cmd.Args, "-m", agent.OfflineMessage)
		}
	}
	return cmd, nil
}
