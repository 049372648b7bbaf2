package model

import (
	"fmt"
	"strings"

	"github.com/loadmesh/jenkins-converge/core/common"
)

// Command is one remote-management command as handed to an Executor.
// ConfigPath or Payload, when set, is fed to the command's standard input.
type Command struct {
	Verb       string
	Args       []string
	ConfigPath string
	Payload    []byte
}

func NewCommand(verb string, args ...string) Command {
	return Command{Verb: verb, Args: args}
}

// ReadOnly reports whether the command only reads remote state.
func (c Command) ReadOnly() bool {
	return strings.HasPrefix(c.Verb, "get-") || c.Verb == "who-am-i"
}

func (c Command) HasInput() bool {
	return c.ConfigPath != "" || c.Payload != nil
}

// String renders the command as "<verb> <args>" or "<verb> <args> < <config-path>".
func (c Command) String() string {
	parts := append([]string{c.Verb}, c.Args...)
	s := strings.Join(parts, " ")
	switch {
	case c.ConfigPath != "":
		s += " < " + c.ConfigPath
	case c.Payload != nil:
		s += " < -"
	}
	return s
}

// Output is what a command printed and how it exited.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (o *Output) OK() bool {
	return o.ExitCode == 0
}

// Contains reports whether either stream contains s.
func (o *Output) Contains(s string) bool {
	return strings.Contains(o.Stdout, s) || strings.Contains(o.Stderr, s)
}

// Check turns a logical failure into an ErrCommandFailed error.
func (o *Output) Check(cmd Command) error {
	if o.OK() {
		return nil
	}
	return fmt.Errorf("%w: %q exited with %d: %s", common.ErrCommandFailed, cmd.String(), o.ExitCode,
		strings.TrimSpace(o.Stderr))
}

// ExecOptions are the named options an Executor turns into an invocation.
// Credentials are opaque here.
type ExecOptions struct {
	ServerURL    string
	Username     string
	Password     string
	PasswordFile string
	KeyFile      string
	JVMOptions   string
	WorkingDir   string
	CLIJar       string
	JavaHome     string
}
