package model

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// CurrentState is the live configuration of a remote object at probe time.
// When Present is false every other field is zero.
type CurrentState struct {
	Present bool

	Name         string
	Description  string
	RemoteFS     string
	Mode         Mode
	Executors    int
	Labels       mapset.Set[string]
	Launcher     Launcher
	Availability Availability
	Env          map[string]string

	// Job only.
	Disabled bool

	// Read-only fields reported by the server.
	UserID string
	// Class is the launcher class of a node, or the root element of a job.
	Class string
	Raw   string
}

func Absent() *CurrentState {
	return &CurrentState{}
}

type PassState string

const (
	Unprobed PassState = "unprobed"
	Probed   PassState = "probed"
	Decided  PassState = "decided"
	Applied  PassState = "applied"
	Failed   PassState = "failed"
)

// ReconcileResult reports the outcome of one convergence pass.
type ReconcileResult struct {
	PassID string
	Kind   Kind
	Name   string
	Intent Action
	Action Action
	// Changed is true iff a mutating command was dispatched, or would have been in dry-run.
	Changed bool
	DryRun  bool
	Command string
	State   PassState
	Err     error
}

func (r *ReconcileResult) Failed() bool {
	return r.State == Failed
}
