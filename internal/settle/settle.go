/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package settle runs independent fetches concurrently and waits for all of
// them. No branch can abort another: each one settles to either its own
// value or a caller-supplied fallback, and the failure is kept alongside.
package settle

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one branch. Value is the fetched value when
// Err is nil and the fallback otherwise.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the branch produced its own value.
func (o *Outcome[T]) OK() bool { return o.Err == nil }

// Group collects branches started with Go. The zero value is ready to use.
type Group struct {
	eg errgroup.Group
}

// Go starts fetch in its own goroutine. The returned Outcome is only valid
// after Wait returns. A panic inside fetch settles the branch as failed.
func Go[T any](g *Group, ctx context.Context, fallback T, fetch func(context.Context) (T, error)) *Outcome[T] {
	out := &Outcome[T]{Value: fallback}
	g.eg.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				out.Value, out.Err = fallback, fmt.Errorf("branch panicked: %v", r)
			}
		}()
		v, ferr := fetch(ctx)
		if ferr != nil {
			out.Err = ferr
			return nil
		}
		out.Value = v
		return nil
	})
	return out
}

// Wait blocks until every branch has settled.
func (g *Group) Wait() { _ = g.eg.Wait() }
