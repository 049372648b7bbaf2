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

package common

import "fmt"

var (
	// ErrInvalidConfig means the desired state cannot be used. Raised before any remote call.
	ErrInvalidConfig = fmt.Errorf("invalid config")
	// ErrProbeFailed means the current state of the remote object could not be determined.
	ErrProbeFailed = fmt.Errorf("probe failed")
	// ErrUnknownAction means an intent has no command for the resource kind.
	ErrUnknownAction = fmt.Errorf("unknown action")
	// ErrActionFailed means a dispatched command failed or could not be run.
	ErrActionFailed = fmt.Errorf("action failed")

	ErrCommandFailed    = fmt.Errorf("command exited with failure")
	ErrCommandNotRun    = fmt.Errorf("command could not be run")
	ErrExecutorNotReady = fmt.Errorf("executor is not ready")
)
