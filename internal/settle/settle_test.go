/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package settle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupWaitsForEveryBranch(t *testing.T) {
	var g Group
	ctx := context.Background()
	var finished atomic.Int32

	slow := Go(&g, ctx, "fallback", func(context.Context) (string, error) {
		time.Sleep(30 * time.Millisecond)
		finished.Add(1)
		return "slow", nil
	})
	failed := Go(&g, ctx, 42, func(context.Context) (int, error) {
		finished.Add(1)
		return 7, errors.New("boom")
	})
	g.Wait()

	require.EqualValues(t, 2, finished.Load())
	assert.True(t, slow.OK())
	assert.Equal(t, "slow", slow.Value)
	assert.False(t, failed.OK())
	assert.Equal(t, 42, failed.Value, "a failed branch must carry the fallback, not its partial value")
	assert.EqualError(t, failed.Err, "boom")
}

func TestPanicSettlesAsFailure(t *testing.T) {
	var g Group
	out := Go(&g, context.Background(), []string{}, func(context.Context) ([]string, error) {
		panic("nil map")
	})
	g.Wait()

	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "nil map")
	assert.NotNil(t, out.Value)
}
