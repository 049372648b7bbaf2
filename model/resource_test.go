package model

import (
	"os"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlaveDefaults(t *testing.T) {
	s, err := NewSlave(Agent{Name: "builder-1", Executors: 2})
	require.NoError(t, err)
	assert.Equal(t, KindSlave, s.GetKind())
	assert.Equal(t, "builder-1", s.GetName())
	assert.Equal(t, ModeNormal, s.Mode)
	assert.Equal(t, LauncherJNLP, s.Launcher.Type)
	assert.Equal(t, AvailabilityAlways, s.Availability.Type)
	assert.NotNil(t, s.Labels)
}

func TestAgentValidation(t *testing.T) {
	tests := []struct {
		name  string
		agent Agent
	}{
		{"empty name", Agent{Name: " "}},
		{"bad mode", Agent{Name: "a", Mode: "shared"}},
		{"negative executors", Agent{Name: "a", Executors: -1}},
		{"label with space", Agent{Name: "a", Labels: mapset.NewSet("linux x64")}},
		{"bad launcher", Agent{Name: "a", Launcher: Launcher{Type: "telnet"}}},
		{"ssh field on jnlp", Agent{Name: "a", Launcher: Launcher{Type: LauncherJNLP, Host: "h"}}},
		{"command without command", Agent{Name: "a", Launcher: Launcher{Type: LauncherCommand}}},
		{"ssh without host", Agent{Name: "a", Launcher: Launcher{Type: LauncherSSH, Port: 22}}},
		{"command field on ssh", Agent{Name: "a", Launcher: Launcher{Type: LauncherSSH, Host: "h", Command: "x"}}},
		{"delay on always", Agent{Name: "a", Availability: Availability{Type: AvailabilityAlways, IdleDelay: 5}}},
		{"negative delay", Agent{Name: "a", Availability: Availability{Type: AvailabilityDemand, IdleDelay: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSlave(tt.agent)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestValidLaunchers(t *testing.T) {
	_, err := NewSlave(Agent{Name: "a", Launcher: Launcher{Type: LauncherCommand, Command: "ssh host java -jar agent.jar"}})
	assert.NoError(t, err)
	_, err = NewSlave(Agent{Name: "a", Launcher: Launcher{Type: LauncherSSH, Host: "h", Port: 22, Credential: "c"}})
	assert.NoError(t, err)
	_, err = NewSlave(Agent{Name: "a", Availability: Availability{Type: AvailabilityDemand, InDemandDelay: 1, IdleDelay: 10}})
	assert.NoError(t, err)
}

func TestNodeJVMOptionsNeedSSH(t *testing.T) {
	_, err := NewNode(Agent{Name: "n"}, "-Xmx1g")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	n, err := NewNode(Agent{Name: "n", Launcher: Launcher{Type: LauncherSSH, Host: "h"}}, "-Xmx1g")
	require.NoError(t, err)
	assert.Equal(t, KindNode, n.GetKind())
}

func TestSortedLabels(t *testing.T) {
	a := Agent{Labels: mapset.NewSet("linux", "docker", "amd64")}
	assert.Equal(t, []string{"amd64", "docker", "linux"}, a.SortedLabels())
}

func TestJobResolveConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")
	require.NoError(t, os.WriteFile(path, []byte("<project/>"), 0o600))

	j, err := NewJob(Job{Name: "build-x", Config: path})
	require.NoError(t, err)
	got, err := j.ResolveConfig()
	require.NoError(t, err)
	assert.Equal(t, path, got)

	missing := &Job{Name: "build-x", Config: filepath.Join(dir, "missing.xml")}
	_, err = missing.ResolveConfig()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = (&Job{Name: "build-x", Config: dir}).ResolveConfig()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = (&Job{Name: "build-x"}).ResolveConfig()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = NewJob(Job{})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
		assert.True(t, got.Known())
	}
	_, err := ParseAction("restart")
	assert.ErrorIs(t, err, common.ErrUnknownAction)
	assert.False(t, ActionNone.Known())

	assert.True(t, ActionCreate.EnsuresPresent())
	assert.True(t, ActionUpdate.EnsuresPresent())
	assert.True(t, ActionDelete.EnsuresAbsent())
	assert.True(t, ActionBuild.Imperative())
	assert.False(t, ActionDelete.Imperative())
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "delete-job build-x", NewCommand("delete-job", "build-x").String())
	assert.Equal(t, "create-job build-x < /tmp/config.xml",
		Command{Verb: "create-job", Args: []string{"build-x"}, ConfigPath: "/tmp/config.xml"}.String())
	assert.Equal(t, "create-node n < -", Command{Verb: "create-node", Args: []string{"n"}, Payload: []byte("<slave/>")}.String())

	assert.True(t, NewCommand("get-node", "n").ReadOnly())
	assert.False(t, NewCommand("delete-node", "n").ReadOnly())
}

func TestOutputCheck(t *testing.T) {
	cmd := NewCommand("build", "build-x")
	assert.NoError(t, (&Output{}).Check(cmd))

	out := &Output{Stderr: "ERROR: No such job 'build-x'\n", ExitCode: 3}
	assert.False(t, out.OK())
	assert.True(t, out.Contains("No such job"))
	assert.ErrorIs(t, out.Check(cmd), common.ErrCommandFailed)
}
