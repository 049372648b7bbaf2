package api

import (
	"context"

	"github.com/loadmesh/jenkins-converge/model"
)

// Executor runs a single remote-management command.
type Executor interface {
	// Run returns an error only if the command could not be run at all.
	// A command that ran and reported failure returns an Output that is not OK.
	Run(ctx context.Context, cmd model.Command) (*model.Output, error)
	// RunChecked is Run, but a non-zero exit is an error as well.
	RunChecked(ctx context.Context, cmd model.Command) (*model.Output, error)
}
