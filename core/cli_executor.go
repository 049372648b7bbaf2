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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	fscommon "github.com/functionstream/function-stream/common"
	"github.com/loadmesh/jenkins-converge/api"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
)

const cliJarName = "jenkins-cli.jar"

// CLIExecutor runs commands through the Jenkins CLI jar.
type CLIExecutor struct {
	opts model.ExecOptions
	log  *fscommon.Logger
}

var _ api.Executor = &CLIExecutor{}

func NewCLIExecutor(opts model.ExecOptions, log *fscommon.Logger) *CLIExecutor {
	return &CLIExecutor{
		opts: opts,
		log:  log,
	}
}

func (e *CLIExecutor) javaBinary() string {
	if e.opts.JavaHome == "" {
		return "java"
	}
	return filepath.Join(e.opts.JavaHome, "bin", "java")
}

func (e *CLIExecutor) cliJar() string {
	if e.opts.CLIJar != "" {
		return e.opts.CLIJar
	}
	return filepath.Join(e.opts.WorkingDir, cliJarName)
}

// credentialArgs picks exactly one credential style, key-file first, then
// username/password, then password-file. The key file is a global CLI
// option, the others follow the command.
func credentialArgs(opts model.ExecOptions) (global []string, trailing []string) {
	switch {
	case opts.KeyFile != "":
		return []string{"-i", opts.KeyFile}, nil
	case opts.Username != "" || opts.Password != "":
		if opts.Username != "" {
			trailing = append(trailing, "--username", opts.Username)
		}
		if opts.Password != "" {
			trailing = append(trailing, "--password", opts.Password)
		}
		return nil, trailing
	case opts.PasswordFile != "":
		return nil, []string{"--password-file", opts.PasswordFile}
	}
	return nil, nil
}

// Invocation returns the program and argv used to run cmd.
func (e *CLIExecutor) Invocation(cmd model.Command) (string, []string) {
	global, trailing := credentialArgs(e.opts)
	args := strings.Fields(e.opts.JVMOptions)
	args = append(args, "-jar", e.cliJar())
	args = append(args, global...)
	args = append(args, "-s", e.opts.ServerURL, cmd.Verb)
	args = append(args, cmd.Args...)
	args = append(args, trailing...)
	return e.javaBinary(), args
}

func openInput(cmd model.Command) (io.Reader, func(), error) {
	if cmd.Payload != nil {
		return bytes.NewReader(cmd.Payload), func() {}, nil
	}
	if cmd.ConfigPath != "" {
		f, err := os.Open(cmd.ConfigPath)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}
	return nil, func() {}, nil
}

func (e *CLIExecutor) Run(ctx context.Context, cmd model.Command) (*model.Output, error) {
	name, args := e.Invocation(cmd)
	stdin, closeInput, err := openInput(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), err)
	}
	defer closeInput()

	c := exec.CommandContext(ctx, name, args...)
	c.Dir = e.opts.WorkingDir
	c.Stdin = stdin
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	e.log.Info("running jenkins cli command", "command", cmd.String(), "server", e.opts.ServerURL)
	err = c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), ctxErr)
	}
	out := &model.Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %q: %w", common.ErrCommandNotRun, cmd.String(), err)
		}
		out.ExitCode = exitErr.ExitCode()
		e.log.Info("jenkins cli command failed", "command", cmd.String(), "exit_code", out.ExitCode)
	}
	return out, nil
}

func (e *CLIExecutor) RunChecked(ctx context.Context, cmd model.Command) (*model.Output, error) {
	return runChecked(ctx, e, cmd)
}

func runChecked(ctx context.Context, e api.Executor, cmd model.Command) (*model.Output, error) {
	out, err := e.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := out.Check(cmd); err != nil {
		return out, err
	}
	return out, nil
}
