package model

import (
	"fmt"

	"github.com/loadmesh/jenkins-converge/core/common"
)

type Action string

const (
	ActionNone       Action = "none"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionEnable     Action = "enable"
	ActionDisable    Action = "disable"
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionOnline     Action = "online"
	ActionOffline    Action = "offline"
	ActionBuild      Action = "build"
)

var Actions = []Action{
	ActionCreate, ActionUpdate, ActionDelete,
	ActionEnable, ActionDisable,
	ActionConnect, ActionDisconnect,
	ActionOnline, ActionOffline,
	ActionBuild,
}

func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownAction, s)
}

// EnsuresPresent reports whether the action converges towards an existing object.
func (a Action) EnsuresPresent() bool {
	return a == ActionCreate || a == ActionUpdate
}

func (a Action) EnsuresAbsent() bool {
	return a == ActionDelete
}

// Imperative actions are always dispatched, whatever the current state.
func (a Action) Imperative() bool {
	switch a {
	case ActionEnable, ActionDisable, ActionConnect, ActionDisconnect, ActionOnline, ActionOffline, ActionBuild:
		return true
	}
	return false
}

func (a Action) Known() bool {
	return a.EnsuresPresent() || a.EnsuresAbsent() || a.Imperative()
}
