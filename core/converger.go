package core

import (
	"context"
	"fmt"
	"time"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/loadmesh/jenkins-converge/model"
)

// Converger repeats convergence passes over a fixed set of desired
// resources. Failed resources are retried with backoff between full passes.
type Converger struct {
	reconciler  *Reconciler
	desired     []model.Desired
	interval    time.Duration
	concurrency int
	retries     *RetryTracker
	onResult    func(*model.ReconcileResult)
	log         *fscommon.Logger
}

func NewConverger(reconciler *Reconciler, desired []model.Desired, interval time.Duration, concurrency int,
	onResult func(*model.ReconcileResult)) (*Converger, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if onResult == nil {
		onResult = func(*model.ReconcileResult) {}
	}
	return &Converger{
		reconciler:  reconciler,
		desired:     desired,
		interval:    interval,
		concurrency: concurrency,
		retries:     NewRetryTracker(reconciler.log),
		onResult:    onResult,
		log:         reconciler.log,
	}, nil
}

func (c *Converger) record(d model.Desired, result *model.ReconcileResult) {
	if result.Failed() {
		c.retries.Add(d)
	} else {
		c.retries.Remove(d.Key())
	}
	c.onResult(result)
}

// RunOnce reconciles every desired resource once.
func (c *Converger) RunOnce(ctx context.Context) []*model.ReconcileResult {
	results := c.reconciler.ReconcileAll(ctx, c.desired, c.concurrency)
	for i, result := range results {
		c.record(c.desired[i], result)
	}
	return results
}

// Run converges until ctx is done.
func (c *Converger) Run(ctx context.Context) error {
	go c.retries.Start(ctx)
	c.RunOnce(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	c.log.Info("start convergence loop", "resources", len(c.desired), "interval", c.interval.String())
	for {
		select {
		case <-ticker.C:
			c.RunOnce(ctx)
		case d := <-c.retries.GetRetryCh():
			c.record(d, c.reconciler.Reconcile(ctx, d.Resource, d.Intent))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending is the number of resources waiting for a retry.
func (c *Converger) Pending() int {
	return c.retries.Len()
}
