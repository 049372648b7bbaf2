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
	"sync"
	"time"

	"github.com/functionstream/function-stream/common"
	"github.com/loadmesh/jenkins-converge/model"
)

const maxRetryWaitSec = 30

type retryEntry struct {
	desired     model.Desired
	retryCount  int32
	lastFailure time.Time
}

// RetryTracker holds resources whose last pass failed and hands them back
// once their backoff has elapsed.
type RetryTracker struct {
	sync.Mutex
	retries map[string]*retryEntry
	retryCh chan model.Desired
	now     func() time.Time
	log     *common.Logger
}

func NewRetryTracker(log *common.Logger) *RetryTracker {
	return &RetryTracker{
		retries: make(map[string]*retryEntry),
		retryCh: make(chan model.Desired, 10),
		now:     time.Now,
		log:     log,
	}
}

func (r *RetryTracker) Start(ctx context.Context) {
	for {
		select {
		case <-time.After(1 * time.Second):
			r.retry(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// backoffSec doubles per retry, capped at max.
func backoffSec(current int32, max int32) int32 {
	if current > 30 {
		return max
	}
	return min(1<<current, max)
}

func (r *RetryTracker) due() []model.Desired {
	r.Lock()
	defer r.Unlock()
	now := r.now()
	var due []model.Desired
	for key, entry := range r.retries {
		waitTimeSec := backoffSec(entry.retryCount, maxRetryWaitSec)
		if entry.lastFailure.Add(time.Duration(waitTimeSec) * time.Second).Before(now) {
			r.log.Info("the resource has reached retry time, retrying it now",
				"resource", key, "retry_count", entry.retryCount, "wait_time_sec", waitTimeSec)
			due = append(due, entry.desired)
			// Stays tracked until Remove, so a failing retry keeps its count.
			entry.lastFailure = now
			entry.retryCount++
		}
	}
	return due
}

func (r *RetryTracker) retry(ctx context.Context) {
	for _, d := range r.due() {
		select {
		case r.retryCh <- d:
		case <-ctx.Done():
			return
		}
	}
}

// Add records a failed pass. A resource that is already tracked keeps its
// retry count.
func (r *RetryTracker) Add(d model.Desired) {
	r.Lock()
	defer r.Unlock()
	key := d.Key()
	if entry, ok := r.retries[key]; ok {
		entry.desired = d
		entry.lastFailure = r.now()
		return
	}
	r.retries[key] = &retryEntry{
		desired:     d,
		lastFailure: r.now(),
	}
}

func (r *RetryTracker) Remove(key string) {
	r.Lock()
	defer r.Unlock()
	delete(r.retries, key)
}

func (r *RetryTracker) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.retries)
}

func (r *RetryTracker) GetRetryCh() <-chan model.Desired {
	return r.retryCh
}
