package model

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeExclusive Mode = "exclusive"
)

type LauncherType string

const (
	LauncherJNLP    LauncherType = "jnlp"
	LauncherCommand LauncherType = "command"
	LauncherSSH     LauncherType = "ssh"
)

// Launcher is the mechanism an agent uses to connect to the server. Only
// the fields of the selected Type may be set.
type Launcher struct {
	Type LauncherType

	// command
	Command string

	// ssh
	Host       string
	Port       int
	Username   string
	Credential string
}

func (l Launcher) Validate() error {
	isCommand := l.Type == LauncherCommand
	isSSH := l.Type == LauncherSSH
	return firstError(
		enumOf("launcher", l.Type, LauncherJNLP, LauncherCommand, LauncherSSH),
		emptyUnless("launcher.command", l.Command != "", isCommand, string(LauncherCommand)),
		emptyUnless("launcher.host", l.Host != "", isSSH, string(LauncherSSH)),
		emptyUnless("launcher.port", l.Port != 0, isSSH, string(LauncherSSH)),
		emptyUnless("launcher.username", l.Username != "", isSSH, string(LauncherSSH)),
		emptyUnless("launcher.credential", l.Credential != "", isSSH, string(LauncherSSH)),
		requiredFor(isCommand, "launcher.command", l.Command),
		requiredFor(isSSH, "launcher.host", l.Host),
		nonNegativeInt("launcher.port", l.Port),
	)
}

func requiredFor(cond bool, field, v string) error {
	if !cond {
		return nil
	}
	return nonEmptyString(field, v)
}

type AvailabilityType string

const (
	AvailabilityAlways AvailabilityType = "always"
	AvailabilityDemand AvailabilityType = "demand"
)

// Availability is the retention strategy of an agent. Delays are in
// minutes and only apply to the demand variant.
type Availability struct {
	Type          AvailabilityType
	InDemandDelay int
	IdleDelay     int
}

func (a Availability) Validate() error {
	isDemand := a.Type == AvailabilityDemand
	return firstError(
		enumOf("availability", a.Type, AvailabilityAlways, AvailabilityDemand),
		emptyUnless("availability.in_demand_delay", a.InDemandDelay != 0, isDemand, string(AvailabilityDemand)),
		emptyUnless("availability.idle_delay", a.IdleDelay != 0, isDemand, string(AvailabilityDemand)),
		nonNegativeInt("availability.in_demand_delay", a.InDemandDelay),
		nonNegativeInt("availability.idle_delay", a.IdleDelay),
	)
}

// Agent holds the attributes shared by slaves and generic nodes.
type Agent struct {
	Name           string
	Description    string
	RemoteFS       string
	Mode           Mode
	Executors      int
	Labels         mapset.Set[string]
	Launcher       Launcher
	Availability   Availability
	Env            map[string]string
	OfflineMessage string
}

func (a *Agent) GetName() string {
	return a.Name
}

// SortedLabels returns the labels in a stable order.
func (a *Agent) SortedLabels() []string {
	if a.Labels == nil {
		return nil
	}
	labels := a.Labels.ToSlice()
	sort.Strings(labels)
	return labels
}

func (a *Agent) applyDefaults() {
	if a.Mode == "" {
		a.Mode = ModeNormal
	}
	if a.Launcher.Type == "" {
		a.Launcher.Type = LauncherJNLP
	}
	if a.Availability.Type == "" {
		a.Availability.Type = AvailabilityAlways
	}
	if a.Labels == nil {
		a.Labels = mapset.NewSet[string]()
	}
}

func (a *Agent) Validate() error {
	return firstError(
		nonEmptyString("name", a.Name),
		enumOf("mode", a.Mode, ModeNormal, ModeExclusive),
		nonNegativeInt("executors", a.Executors),
		setOfString("labels", a.Labels),
		a.Launcher.Validate(),
		a.Availability.Validate(),
	)
}

type Slave struct {
	Agent
}

// NewSlave applies defaults and validates the agent.
func NewSlave(a Agent) (*Slave, error) {
	a.applyDefaults()
	s := &Slave{Agent: a}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Slave) GetKind() Kind {
	return KindSlave
}

type Node struct {
	Agent
	// JVMOptions are passed to the agent JVM by the ssh launcher.
	JVMOptions string
}

func NewNode(a Agent, jvmOptions string) (*Node, error) {
	a.applyDefaults()
	n := &Node{Agent: a, JVMOptions: jvmOptions}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) GetKind() Kind {
	return KindNode
}

func (n *Node) Validate() error {
	return firstError(
		n.Agent.Validate(),
		emptyUnless("jvm_options", n.JVMOptions != "", n.Launcher.Type == LauncherSSH, string(LauncherSSH)),
	)
}
