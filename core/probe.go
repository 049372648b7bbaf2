package core

import (
	"context"
	"fmt"
	"strings"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/loadmesh/jenkins-converge/api"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
)

const (
	noSuchNodeMarker = "No such node"
	noSuchJobMarker  = "No such job"
)

// XMLStateProbe reads the current state of a remote object with the
// read-only get-node and get-job commands.
type XMLStateProbe struct {
	executor api.Executor
	log      *fscommon.Logger
}

var _ api.StateProbe = &XMLStateProbe{}

func NewXMLStateProbe(executor api.Executor, log *fscommon.Logger) *XMLStateProbe {
	return &XMLStateProbe{
		executor: executor,
		log:      log,
	}
}

func probeCommand(kind model.Kind, name string) (model.Command, string, error) {
	switch kind {
	case model.KindSlave, model.KindNode:
		return model.NewCommand("get-node", name), noSuchNodeMarker, nil
	case model.KindJob:
		return model.NewCommand("get-job", name), noSuchJobMarker, nil
	}
	return model.Command{}, "", fmt.Errorf("%w: cannot probe kind %q", common.ErrProbeFailed, kind)
}

func (p *XMLStateProbe) Fetch(ctx context.Context, kind model.Kind, name string) (*model.CurrentState, error) {
	cmd, marker, err := probeCommand(kind, name)
	if err != nil {
		return nil, err
	}
	out, err := p.executor.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", common.ErrProbeFailed, kind, name, err)
	}
	// The absence marker wins over anything else in the output.
	if out.Contains(marker) {
		p.log.Info("remote object does not exist", "kind", kind, "name", name)
		return model.Absent(), nil
	}
	if !out.OK() {
		return nil, fmt.Errorf("%w: %q exited with %d: %s", common.ErrProbeFailed, cmd.String(), out.ExitCode,
			strings.TrimSpace(out.Stderr))
	}

	var state *model.CurrentState
	if kind == model.KindJob {
		state, err = parseJob(name, out.Stdout)
	} else {
		state, err = parseAgent(out.Stdout)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", common.ErrProbeFailed, kind, name, err)
	}
	p.log.Info("remote object exists", "kind", kind, "name", name, "class", state.Class)
	return state, nil
}
