package core

import (
	"context"
	"errors"
	"testing"

	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sshSlaveDoc = `<?xml version="1.1" encoding="UTF-8"?>
<slave>
  <name>builder-1</name>
  <description>linux builder</description>
  <remoteFS>/home/jenkins</remoteFS>
  <numExecutors>4</numExecutors>
  <mode>EXCLUSIVE</mode>
  <retentionStrategy class="hudson.slaves.RetentionStrategy$Demand">
    <inDemandDelay>1</inDemandDelay>
    <idleDelay>10</idleDelay>
  </retentionStrategy>
  <launcher class="hudson.plugins.sshslaves.SSHLauncher" plugin="ssh-slaves@1.31">
    <host>10.0.0.5</host>
    <port>2222</port>
    <credentialsId>builder-key</credentialsId>
  </launcher>
  <label>linux docker</label>
  <nodeProperties>
    <hudson.slaves.EnvironmentVariablesNodeProperty>
      <envVars serialization="custom">
        <unserializable-parents/>
        <tree-map>
          <default>
            <comparator class="hudson.util.CaseInsensitiveComparator"/>
          </default>
          <int>2</int>
          <string>JAVA_HOME</string>
          <string>/opt/java</string>
          <string>PATH</string>
          <string>/usr/bin</string>
        </tree-map>
      </envVars>
    </hudson.slaves.EnvironmentVariablesNodeProperty>
  </nodeProperties>
  <userId>admin</userId>
</slave>
`

func probeWith(out *model.Output) (*XMLStateProbe, *TestExecutor) {
	e := NewTestExecutor()
	e.On("get-node", out).On("get-job", out)
	return NewXMLStateProbe(e, testLogger()), e
}

func TestProbeSlaveDocument(t *testing.T) {
	p, e := probeWith(&model.Output{Stdout: sshSlaveDoc})
	state, err := p.Fetch(context.Background(), model.KindSlave, "builder-1")
	require.NoError(t, err)

	require.Len(t, e.Calls(), 1)
	assert.Equal(t, "get-node builder-1", e.Calls()[0].String())

	assert.True(t, state.Present)
	assert.Equal(t, "builder-1", state.Name)
	assert.Equal(t, "linux builder", state.Description)
	assert.Equal(t, "/home/jenkins", state.RemoteFS)
	assert.Equal(t, 4, state.Executors)
	assert.Equal(t, model.ModeExclusive, state.Mode)
	assert.True(t, state.Labels.Contains("linux", "docker"))
	assert.Equal(t, 2, state.Labels.Cardinality())
	assert.Equal(t, model.Launcher{Type: model.LauncherSSH, Host: "10.0.0.5", Port: 2222, Credential: "builder-key"}, state.Launcher)
	assert.Equal(t, model.Availability{Type: model.AvailabilityDemand, InDemandDelay: 1, IdleDelay: 10}, state.Availability)
	assert.Equal(t, map[string]string{"JAVA_HOME": "/opt/java", "PATH": "/usr/bin"}, state.Env)
	assert.Equal(t, "admin", state.UserID)
	assert.Equal(t, sshLauncherClass, state.Class)
	assert.Equal(t, sshSlaveDoc, state.Raw)
}

func TestProbeMinimalSlaveDocument(t *testing.T) {
	p, _ := probeWith(&model.Output{Stdout: "<slave><name>bare</name></slave>"})
	state, err := p.Fetch(context.Background(), model.KindNode, "bare")
	require.NoError(t, err)
	assert.True(t, state.Present)
	assert.Equal(t, "bare", state.Name)
	assert.Equal(t, 0, state.Executors)
	assert.Empty(t, state.RemoteFS)
	assert.Equal(t, 0, state.Labels.Cardinality())
	assert.Nil(t, state.Env)
	assert.Equal(t, model.Launcher{}, state.Launcher)
}

func TestProbeAbsent(t *testing.T) {
	tests := []struct {
		name string
		kind model.Kind
		out  *model.Output
	}{
		{"node", model.KindSlave, &model.Output{Stderr: "ERROR: No such node 'builder-1'\n", ExitCode: 3}},
		{"node with trailing noise", model.KindNode, &model.Output{Stdout: "<slave><name>", Stderr: "ERROR: No such node 'x'", ExitCode: 3}},
		{"job", model.KindJob, &model.Output{Stderr: "ERROR: No such job 'build-x'\n", ExitCode: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := probeWith(tt.out)
			state, err := p.Fetch(context.Background(), tt.kind, "builder-1")
			require.NoError(t, err)
			assert.False(t, state.Present)
		})
	}
}

func TestProbeFailures(t *testing.T) {
	tests := []struct {
		name string
		kind model.Kind
		out  *model.Output
	}{
		{"missing name", model.KindSlave, &model.Output{Stdout: "<slave><numExecutors>1</numExecutors></slave>"}},
		{"malformed xml", model.KindSlave, &model.Output{Stdout: "<slave><name>x</name>"}},
		{"bad executors", model.KindSlave, &model.Output{Stdout: "<slave><name>x</name><numExecutors>many</numExecutors></slave>"}},
		{"failed without marker", model.KindSlave, &model.Output{Stderr: "ERROR: access denied", ExitCode: 6}},
		{"malformed job", model.KindJob, &model.Output{Stdout: "<project>"}},
		{"unknown kind", model.Kind("view"), &model.Output{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := probeWith(tt.out)
			_, err := p.Fetch(context.Background(), tt.kind, "x")
			assert.ErrorIs(t, err, common.ErrProbeFailed)
		})
	}
}

func TestProbeExecutorError(t *testing.T) {
	cause := errors.New("connection refused")
	e := NewTestExecutor().Fail(cause)
	_, err := NewXMLStateProbe(e, testLogger()).Fetch(context.Background(), model.KindJob, "build-x")
	assert.ErrorIs(t, err, common.ErrProbeFailed)
	assert.ErrorIs(t, err, cause)
}

func TestProbeJobDocument(t *testing.T) {
	doc := `<?xml version='1.1' encoding='UTF-8'?>
<flow-definition plugin="workflow-job@2.40">
  <description>pipeline</description>
  <disabled>true</disabled>
</flow-definition>`
	p, e := probeWith(&model.Output{Stdout: doc})
	state, err := p.Fetch(context.Background(), model.KindJob, "build-x")
	require.NoError(t, err)
	assert.Equal(t, "get-job build-x", e.Calls()[0].String())
	assert.True(t, state.Present)
	assert.Equal(t, "build-x", state.Name)
	assert.Equal(t, "pipeline", state.Description)
	assert.True(t, state.Disabled)
	assert.Equal(t, "flow-definition", state.Class)
}

func TestRenderAgentRoundTrip(t *testing.T) {
	n, err := model.NewNode(model.Agent{
		Name:      "builder-2",
		RemoteFS:  "/srv/agent",
		Executors: 3,
		Mode:      model.ModeExclusive,
		Launcher:  model.Launcher{Type: model.LauncherSSH, Host: "10.0.0.6", Port: 22, Credential: "key"},
		Availability: model.Availability{
			Type:          model.AvailabilityDemand,
			InDemandDelay: 2,
			IdleDelay:     15,
		},
		Env: map[string]string{"B": "2", "A": "1"},
	}, "-Xmx512m")
	require.NoError(t, err)
	n.Labels.Add("linux")

	doc, err := renderAgent(&n.Agent, n.JVMOptions)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<jvmOptions>-Xmx512m</jvmOptions>")

	state, err := parseAgent(string(doc))
	require.NoError(t, err)
	assert.Equal(t, "builder-2", state.Name)
	assert.Equal(t, "/srv/agent", state.RemoteFS)
	assert.Equal(t, 3, state.Executors)
	assert.Equal(t, model.ModeExclusive, state.Mode)
	assert.Equal(t, n.Launcher, state.Launcher)
	assert.Equal(t, n.Availability, state.Availability)
	assert.Equal(t, n.Env, state.Env)
	assert.True(t, state.Labels.Equal(n.Labels))
}
