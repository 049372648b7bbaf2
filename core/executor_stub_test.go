package core

import (
	"context"
	"sync"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/loadmesh/jenkins-converge/api"
	"github.com/loadmesh/jenkins-converge/model"
)

// TestExecutor answers each verb with a canned output and records calls.
type TestExecutor struct {
	sync.Mutex
	outputs map[string]*model.Output
	err     error
	calls   []model.Command
}

var _ api.Executor = &TestExecutor{}

func NewTestExecutor() *TestExecutor {
	return &TestExecutor{
		outputs: make(map[string]*model.Output),
	}
}

func (e *TestExecutor) On(verb string, out *model.Output) *TestExecutor {
	e.Lock()
	defer e.Unlock()
	e.outputs[verb] = out
	return e
}

func (e *TestExecutor) Fail(err error) *TestExecutor {
	e.Lock()
	defer e.Unlock()
	e.err = err
	return e
}

func (e *TestExecutor) Run(_ context.Context, cmd model.Command) (*model.Output, error) {
	e.Lock()
	defer e.Unlock()
	e.calls = append(e.calls, cmd)
	if e.err != nil {
		return nil, e.err
	}
	if out, ok := e.outputs[cmd.Verb]; ok {
		copied := *out
		return &copied, nil
	}
	return &model.Output{}, nil
}

func (e *TestExecutor) RunChecked(ctx context.Context, cmd model.Command) (*model.Output, error) {
	return runChecked(ctx, e, cmd)
}

func (e *TestExecutor) Calls() []model.Command {
	e.Lock()
	defer e.Unlock()
	calls := make([]model.Command, len(e.calls))
	copy(calls, e.calls)
	return calls
}

// TestProbe returns a fixed state and counts fetches.
type TestProbe struct {
	sync.Mutex
	state   *model.CurrentState
	err     error
	fetches int
}

var _ api.StateProbe = &TestProbe{}

func (p *TestProbe) Fetch(_ context.Context, _ model.Kind, _ string) (*model.CurrentState, error) {
	p.Lock()
	defer p.Unlock()
	p.fetches++
	return p.state, p.err
}

func (p *TestProbe) Fetches() int {
	p.Lock()
	defer p.Unlock()
	return p.fetches
}

func presentProbe() *TestProbe {
	return &TestProbe{state: &model.CurrentState{Present: true}}
}

func absentProbe() *TestProbe {
	return &TestProbe{state: model.Absent()}
}

func testLogger() *fscommon.Logger {
	return fscommon.NewDefaultLogger()
}
