package api

import (
	"context"

	"github.com/loadmesh/jenkins-converge/model"
)

type ResourceReconciler interface {
	Reconcile(ctx context.Context, resource model.Resource, intent model.Action) *model.ReconcileResult
}
