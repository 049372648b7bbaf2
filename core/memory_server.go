/*
 * Copyright 2024 LoadMesh Org.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"context"
	"fmt"
	"os"
	"sync"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/loadmesh/jenkins-converge/api"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
)

// MemoryServer is an in-memory stand-in for a Jenkins server that answers
// CLI commands and applies their effects to its own state.
type MemoryServer struct {
	sync.Mutex
	nodes       map[string]string
	jobs        map[string]string
	disabled    map[string]bool
	offline     map[string]bool
	connected   map[string]bool
	builds      map[string]int
	failures    map[string]string
	unreachable error
	calls       []model.Command
	log         *fscommon.Logger
}

var _ api.Executor = &MemoryServer{}

func NewMemoryServer(log *fscommon.Logger) *MemoryServer {
	return &MemoryServer{
		nodes:     make(map[string]string),
		jobs:      make(map[string]string),
		disabled:  make(map[string]bool),
		offline:   make(map[string]bool),
		connected: make(map[string]bool),
		builds:    make(map[string]int),
		failures:  make(map[string]string),
		log:       log,
	}
}

func (m *MemoryServer) PutNode(name, doc string) {
	m.Lock()
	defer m.Unlock()
	m.nodes[name] = doc
}

func (m *MemoryServer) PutJob(name, doc string) {
	m.Lock()
	defer m.Unlock()
	m.jobs[name] = doc
}

func (m *MemoryServer) Node(name string) (string, bool) {
	m.Lock()
	defer m.Unlock()
	doc, ok := m.nodes[name]
	return doc, ok
}

func (m *MemoryServer) Job(name string) (string, bool) {
	m.Lock()
	defer m.Unlock()
	doc, ok := m.jobs[name]
	return doc, ok
}

func (m *MemoryServer) Builds(job string) int {
	m.Lock()
	defer m.Unlock()
	return m.builds[job]
}

func (m *MemoryServer) Disabled(job string) bool {
	m.Lock()
	defer m.Unlock()
	return m.disabled[job]
}

func (m *MemoryServer) Offline(node string) bool {
	m.Lock()
	defer m.Unlock()
	return m.offline[node]
}

func (m *MemoryServer) Connected(node string) bool {
	m.Lock()
	defer m.Unlock()
	return m.connected[node]
}

// FailOn makes every command with the given verb exit with an error message.
func (m *MemoryServer) FailOn(verb, message string) {
	m.Lock()
	defer m.Unlock()
	m.failures[verb] = message
}

// SetUnreachable makes every command fail to run with err. nil restores the server.
func (m *MemoryServer) SetUnreachable(err error) {
	m.Lock()
	defer m.Unlock()
	m.unreachable = err
}

// Calls returns every command received so far, in order.
func (m *MemoryServer) Calls() []model.Command {
	m.Lock()
	defer m.Unlock()
	calls := make([]model.Command, len(m.calls))
	copy(calls, m.calls)
	return calls
}

func (m *MemoryServer) MutatingCalls() []model.Command {
	var calls []model.Command
	for _, c := range m.Calls() {
		if !c.ReadOnly() {
			calls = append(calls, c)
		}
	}
	return calls
}

func readInput(cmd model.Command) (string, error) {
	if cmd.Payload != nil {
		return string(cmd.Payload), nil
	}
	if cmd.ConfigPath != "" {
		data, err := os.ReadFile(cmd.ConfigPath)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%s expects a document on standard input", cmd.Verb)
}

func failed(code int, format string, args ...any) *model.Output {
	return &model.Output{
		Stderr:   "ERROR: " + fmt.Sprintf(format, args...) + "\n",
		ExitCode: code,
	}
}

func succeeded(stdout string) *model.Output {
	return &model.Output{Stdout: stdout}
}

func (m *MemoryServer) Run(ctx context.Context, cmd model.Command) (*model.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), err)
	}
	m.Lock()
	defer m.Unlock()
	m.calls = append(m.calls, cmd)
	m.log.Info("memory server received command", "command", cmd.String())

	if m.unreachable != nil {
		return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), m.unreachable)
	}
	if msg, ok := m.failures[cmd.Verb]; ok {
		return failed(1, "%s", msg), nil
	}
	if len(cmd.Args) == 0 {
		return failed(2, "Argument is required"), nil
	}
	name := cmd.Args[0]

	switch cmd.Verb {
	case "get-node":
		return m.get(m.nodes, name, "No such node '%s'")
	case "get-job":
		return m.get(m.jobs, name, "No such job '%s'")
	case "create-node":
		return m.create(m.nodes, cmd, name, "Node '%s' already exists")
	case "create-job":
		return m.create(m.jobs, cmd, name, "Job '%s' already exists")
	case "update-node":
		return m.update(m.nodes, cmd, name, "No such node '%s'")
	case "update-job":
		return m.update(m.jobs, cmd, name, "No such job '%s'")
	case "delete-node":
		return m.remove(m.nodes, name, "No such node '%s'")
	case "delete-job":
		return m.remove(m.jobs, name, "No such job '%s'")
	case "enable-job", "disable-job":
		if _, ok := m.jobs[name]; !ok {
			return failed(3, "No such job '%s'", name), nil
		}
		m.disabled[name] = cmd.Verb == "disable-job"
		return succeeded(""), nil
	case "build":
		if _, ok := m.jobs[name]; !ok {
			return failed(3, "No such job '%s'", name), nil
		}
		m.builds[name]++
		return succeeded(""), nil
	case "connect-node", "disconnect-node":
		if _, ok := m.nodes[name]; !ok {
			return failed(3, "No such node '%s'", name), nil
		}
		m.connected[name] = cmd.Verb == "connect-node"
		return succeeded(""), nil
	case "online-node", "offline-node":
		if _, ok := m.nodes[name]; !ok {
			return failed(3, "No such node '%s'", name), nil
		}
		m.offline[name] = cmd.Verb == "offline-node"
		return succeeded(""), nil
	}
	return failed(255, "No such command %s", cmd.Verb), nil
}

func (m *MemoryServer) RunChecked(ctx context.Context, cmd model.Command) (*model.Output, error) {
	return runChecked(ctx, m, cmd)
}

func (m *MemoryServer) get(objects map[string]string, name, missing string) (*model.Output, error) {
	doc, ok := objects[name]
	if !ok {
		return failed(3, missing, name), nil
	}
	return succeeded(doc), nil
}

func (m *MemoryServer) create(objects map[string]string, cmd model.Command, name, exists string) (*model.Output, error) {
	if _, ok := objects[name]; ok {
		return failed(4, exists, name), nil
	}
	doc, err := readInput(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), err)
	}
	objects[name] = doc
	return succeeded(""), nil
}

func (m *MemoryServer) update(objects map[string]string, cmd model.Command, name, missing string) (*model.Output, error) {
	if _, ok := objects[name]; !ok {
		return failed(3, missing, name), nil
	}
	doc, err := readInput(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), err)
	}
	objects[name] = doc
	return succeeded(""), nil
}

func (m *MemoryServer) remove(objects map[string]string, name, missing string) (*model.Output, error) {
	if _, ok := objects[name]; !ok {
		return failed(3, missing, name), nil
	}
	delete(objects, name)
	return succeeded(""), nil
}
