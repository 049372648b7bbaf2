package api

import (
	"context"

	"github.com/loadmesh/jenkins-converge/model"
)

type StateProbe interface {
	Fetch(ctx context.Context, kind model.Kind, name string) (*model.CurrentState, error)
}

type ActionDispatcher interface {
	CommandFor(action model.Action, resource model.Resource) (model.Command, error)
}
