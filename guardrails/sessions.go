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
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrMessageLimit is returned by Commit when the session reached its
// message quota between the initial check and the final update.
var ErrMessageLimit = errors.New("session message limit reached")

// Session is one tracked conversation. Records live only as long as the
// process (or the Redis backend) keeps them.
type Session struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	StartTime    time.Time `json:"startTime"`
	LastActivity time.Time `json:"lastActivity"`
}

// Age returns how long the session has existed.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// CheckOutcome is the result of the admission check for one request.
type CheckOutcome int

const (
	// OutcomeNew means no record existed; one was created with count 1.
	OutcomeNew CheckOutcome = iota
	// OutcomeOK means the existing session is within its limits.
	OutcomeOK
	// OutcomeMessageLimit means the message quota is exhausted.
	OutcomeMessageLimit
	// OutcomeExpired means the session outlived its maximum age and was
	// deleted during the check.
	OutcomeExpired
)

// SessionStore tracks per-session counters. Check and Commit are each
// atomic with respect to concurrent requests for the same session id, so
// two racing requests can never both slip past an exhausted quota.
type SessionStore interface {
	// Check admits or rejects a request for the session, creating the
	// record on first use.
	Check(ctx context.Context, id string, maxMessages int, maxAge time.Duration) (CheckOutcome, error)
	// Commit counts an accepted request: increments the message counter
	// and refreshes the activity timestamp. Returns ErrMessageLimit when
	// the quota was consumed by a concurrent request in the meantime.
	Commit(ctx context.Context, id string, maxMessages int) error
	// Touch refreshes the activity timestamp without counting a message.
	Touch(ctx context.Context, id string) error
	// Delete removes the session unconditionally.
	Delete(ctx context.Context, id string) error
	// Snapshot returns a copy of every live session.
	Snapshot(ctx context.Context) ([]Session, error)
	// SweepExpired deletes every session older than maxAge and returns
	// how many were removed.
	SweepExpired(ctx context.Context, maxAge time.Duration) (int, error)
}

// MemorySessionStore is the in-process SessionStore. All methods take a
// single mutex, which serializes every read-modify-write.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemorySessionStore returns an empty in-process store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Check(ctx context.Context, id string, maxMessages int, maxAge time.Duration) (CheckOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, ok := m.sessions[id]
	if !ok {
		m.sessions[id] = &Session{
			ID:           id,
			MessageCount: 1,
			StartTime:    now,
			LastActivity: now,
		}
		return OutcomeNew, nil
	}

	if s.MessageCount >= maxMessages {
		return OutcomeMessageLimit, nil
	}
	if s.Age(now) > maxAge {
		delete(m.sessions, id)
		return OutcomeExpired, nil
	}
	return OutcomeOK, nil
}

func (m *MemorySessionStore) Commit(ctx context.Context, id string, maxMessages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		// deleted concurrently, recreate rather than lose the count
		now := m.now()
		m.sessions[id] = &Session{ID: id, MessageCount: 1, StartTime: now, LastActivity: now}
		return nil
	}
	if s.MessageCount >= maxMessages {
		return ErrMessageLimit
	}
	s.MessageCount++
	s.LastActivity = m.now()
	return nil
}

func (m *MemorySessionStore) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.LastActivity = m.now()
	}
	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) Snapshot(ctx context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemorySessionStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if s.Age(now) > maxAge {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}
