package model

import (
	"fmt"

	"github.com/loadmesh/jenkins-converge/core/common"
)

type Kind string

const (
	KindSlave Kind = "slave"
	KindNode  Kind = "node"
	KindJob   Kind = "job"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSlave, KindNode, KindJob:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown resource kind %q", common.ErrInvalidConfig, s)
}

// Resource is the validated desired state of one remote object.
type Resource interface {
	GetKind() Kind
	GetName() string
	Validate() error
}

// ConfigSourced is implemented by kinds whose create and update submit a
// caller-supplied config file.
type ConfigSourced interface {
	Resource
	// ResolveConfig returns the config path, or an error if it does not
	// resolve to a readable regular file.
	ResolveConfig() (string, error)
}

// Desired pairs a resource with the intent requested for it.
type Desired struct {
	Resource Resource
	Intent   Action
}

func (d Desired) Key() string {
	return ResourceKey(d.Resource)
}

func ResourceKey(r Resource) string {
	return fmt.Sprintf("%s/%s", r.GetKind(), r.GetName())
}
