// Copyright 2025 Mercadia
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package guardrails

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CheckCreatesSession(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	outcome, err := store.Check(ctx, "s1", 10, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, outcome)

	sessions, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, 1, sessions[0].MessageCount)
}

func TestMemoryStore_CommitIncrementsUpToLimit(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	_, err := store.Check(ctx, "s1", 3, time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Commit(ctx, "s1", 3))
	require.NoError(t, store.Commit(ctx, "s1", 3))
	assert.ErrorIs(t, store.Commit(ctx, "s1", 3), ErrMessageLimit)
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	_, err := store.Check(ctx, "old", 10, time.Hour)
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(30 * time.Minute) }
	_, err = store.Check(ctx, "fresh", 10, time.Hour)
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(70 * time.Minute) }
	removed, err := store.SweepExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	sessions, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "fresh", sessions[0].ID)
}

func TestMemoryStore_ConcurrentCommitsSerialized(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	_, err := store.Check(ctx, "s1", 1000, time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Commit(ctx, "s1", 1000)
		}()
	}
	wg.Wait()

	sessions, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 101, sessions[0].MessageCount)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	_, err := store.Check(ctx, "s1", 10, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "s1"))
	require.NoError(t, store.Delete(ctx, "s1"))

	sessions, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
