package core

import (
	"context"
	"errors"
	"fmt"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/loadmesh/jenkins-converge/api"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
	"golang.org/x/sync/errgroup"
)

// Reconciler runs convergence passes: probe, decide, dispatch.
type Reconciler struct {
	opts *options
	log  *fscommon.Logger
}

var _ api.ResourceReconciler = &Reconciler{}

type options struct {
	executor   api.Executor
	probe      api.StateProbe
	dispatcher api.ActionDispatcher
	dryRun     bool
	log        *logr.Logger
}

type ReconcilerOption interface {
	apply(option *options) (*options, error)
}

type optionFunc func(*options) (*options, error)

func (f optionFunc) apply(c *options) (*options, error) {
	return f(c)
}

func WithExecutor(executor api.Executor) ReconcilerOption {
	return optionFunc(func(o *options) (*options, error) {
		o.executor = executor
		return o, nil
	})
}

func WithStateProbe(probe api.StateProbe) ReconcilerOption {
	return optionFunc(func(o *options) (*options, error) {
		o.probe = probe
		return o, nil
	})
}

func WithDispatcher(dispatcher api.ActionDispatcher) ReconcilerOption {
	return optionFunc(func(o *options) (*options, error) {
		o.dispatcher = dispatcher
		return o, nil
	})
}

// WithDryRun makes every pass decide and report without dispatching.
func WithDryRun(dryRun bool) ReconcilerOption {
	return optionFunc(func(o *options) (*options, error) {
		o.dryRun = dryRun
		return o, nil
	})
}

func WithLogger(log *logr.Logger) ReconcilerOption {
	return optionFunc(func(o *options) (*options, error) {
		o.log = log
		return o, nil
	})
}

func NewReconciler(opts ...ReconcilerOption) (*Reconciler, error) {
	o := &options{}
	for _, opt := range opts {
		_, err := opt.apply(o)
		if err != nil {
			return nil, err
		}
	}
	if o.executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	var log *fscommon.Logger
	if o.log == nil {
		log = fscommon.NewDefaultLogger()
	} else {
		log = fscommon.NewLogger(o.log)
	}
	if o.probe == nil {
		o.probe = NewXMLStateProbe(o.executor, log)
	}
	if o.dispatcher == nil {
		o.dispatcher = NewCommandDispatcher()
	}
	return &Reconciler{
		opts: o,
		log:  log,
	}, nil
}

func (r *Reconciler) DryRun() bool {
	return r.opts.dryRun
}

func (r *Reconciler) Reconcile(ctx context.Context, resource model.Resource, intent model.Action) *model.ReconcileResult {
	p := &pass{
		Reconciler: r,
		resource:   resource,
		intent:     intent,
		result: &model.ReconcileResult{
			PassID: uuid.New().String(),
			Kind:   resource.GetKind(),
			Name:   resource.GetName(),
			Intent: intent,
			Action: model.ActionNone,
			DryRun: r.opts.dryRun,
			State:  model.Unprobed,
		},
	}
	p.run(ctx)
	return p.result
}

// ReconcileAll runs one pass per desired resource. Passes touch disjoint
// remote objects, so up to concurrency of them run at once.
func (r *Reconciler) ReconcileAll(ctx context.Context, desired []model.Desired, concurrency int) []*model.ReconcileResult {
	results := make([]*model.ReconcileResult, len(desired))
	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, d := range desired {
		g.Go(func() error {
			results[i] = r.Reconcile(ctx, d.Resource, d.Intent)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// pass holds the state of a single convergence pass. current is the
// pass-scoped memo of the probed remote state.
type pass struct {
	*Reconciler
	resource model.Resource
	intent   model.Action
	current  *model.CurrentState
	result   *model.ReconcileResult
}

func (p *pass) kv(keysAndValues ...any) []any {
	return append([]any{"pass", p.result.PassID, "resource", model.ResourceKey(p.resource)}, keysAndValues...)
}

func (p *pass) run(ctx context.Context) {
	res := p.result
	p.log.Info("starting convergence pass", p.kv("intent", p.intent, "dry_run", res.DryRun)...)

	if err := ctx.Err(); err != nil {
		p.fail(fmt.Errorf("pass aborted: %w", err))
		return
	}
	if err := p.checkInput(); err != nil {
		p.fail(err)
		return
	}

	action, err := p.decide(ctx)
	if err != nil {
		p.fail(err)
		return
	}
	res.Action = action
	res.State = model.Decided
	if action == model.ActionNone {
		res.State = model.Applied
		p.log.Info("resource already converged", p.kv()...)
		return
	}

	cmd, err := p.opts.dispatcher.CommandFor(action, p.resource)
	if err != nil {
		p.fail(err)
		return
	}
	res.Command = cmd.String()

	if p.opts.dryRun {
		res.Changed = true
		res.State = model.Applied
		p.log.Info("dry-run, skipping dispatch", p.kv("action", action, "command", res.Command)...)
		return
	}
	if _, err := p.opts.executor.RunChecked(ctx, cmd); err != nil {
		p.fail(fmt.Errorf("%w: %s %s %q: %w", common.ErrActionFailed, action, res.Kind, res.Name, err))
		return
	}
	res.Changed = true
	res.State = model.Applied
	p.log.Info("resource converged", p.kv("action", action, "command", res.Command)...)
}

// checkInput rejects unusable input before anything reaches the executor.
func (p *pass) checkInput() error {
	if !p.intent.Known() {
		return fmt.Errorf("%w: %q", common.ErrUnknownAction, p.intent)
	}
	if err := p.resource.Validate(); err != nil {
		return err
	}
	if !p.intent.EnsuresPresent() {
		return nil
	}
	if cs, ok := p.resource.(model.ConfigSourced); ok {
		if _, err := cs.ResolveConfig(); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) decide(ctx context.Context) (model.Action, error) {
	switch {
	case p.intent.Imperative():
		return p.intent, nil
	case p.intent.EnsuresPresent():
		current, err := p.currentState(ctx)
		if err != nil {
			return "", err
		}
		if current.Present {
			return model.ActionUpdate, nil
		}
		return model.ActionCreate, nil
	case p.intent.EnsuresAbsent():
		current, err := p.currentState(ctx)
		if err != nil {
			return "", err
		}
		if current.Present {
			return model.ActionDelete, nil
		}
		return model.ActionNone, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownAction, p.intent)
}

func (p *pass) currentState(ctx context.Context) (*model.CurrentState, error) {
	if p.current != nil {
		return p.current, nil
	}
	current, err := p.opts.probe.Fetch(ctx, p.resource.GetKind(), p.resource.GetName())
	if err != nil {
		if !errors.Is(err, common.ErrProbeFailed) {
			err = fmt.Errorf("%w: %w", common.ErrProbeFailed, err)
		}
		return nil, err
	}
	p.current = current
	p.result.State = model.Probed
	p.log.Info("probed remote state", p.kv("present", current.Present)...)
	return current, nil
}

func (p *pass) fail(err error) {
	p.result.State = model.Failed
	p.result.Changed = false
	p.result.Err = err
	p.log.Error(err, "convergence pass failed", p.kv("intent", p.intent, "action", p.result.Action)...)
}
