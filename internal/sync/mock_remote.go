package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/service"
)

// MockRemote is an in-memory service.RemoteStore for tests. It assigns
// monotonically increasing write timestamps the way the real server does and
// can be scripted to fail a fixed number of times or permanently.
type MockRemote struct {
	docs          map[string]service.RemoteDocument
	mu            sync.Mutex
	clock         int64
	UpsertCalls   int
	DeleteCalls   int
	QueryCalls    int
	FailUpserts   int // fail this many UpsertBatch calls, -1 for always
	FailDeletes   int // fail this many Delete calls, -1 for always
	FailQueries   int // fail this many Query calls, -1 for always
}

// NewMockRemote creates an empty mock collection.
func NewMockRemote() *MockRemote {
	return &MockRemote{docs: make(map[string]service.RemoteDocument)}
}

// UpsertBatch implements service.RemoteStore with merge semantics.
func (m *MockRemote) UpsertBatch(_ context.Context, docs []service.RemoteDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertCalls++
	if m.FailUpserts == -1 || m.FailUpserts >= m.UpsertCalls {
		return &common.RetryableError{Err: common.ErrRemoteTransient, Retryable: true}
	}

	for _, doc := range docs {
		merged := doc
		if existing, ok := m.docs[doc.ID]; ok {
			// Merge: empty incoming fields keep the remote value.
			if merged.Notes == "" {
				merged.Notes = existing.Notes
			}
		}
		m.clock++
		merged.Timestamp = fmt.Sprintf("%020d", m.clock)
		m.docs[doc.ID] = merged
	}
	return nil
}

// Delete implements service.RemoteStore.
func (m *MockRemote) Delete(_ context.Context, _, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if m.FailDeletes == -1 || m.FailDeletes >= m.DeleteCalls {
		return &common.RetryableError{Err: common.ErrRemoteTransient, Retryable: true}
	}

	delete(m.docs, id)
	return nil
}

// Query implements service.RemoteStore: timestamp ascending, strictly after
// the cursor.
func (m *MockRemote) Query(_ context.Context, userID, startAfter string, limit int) ([]service.RemoteDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QueryCalls++
	if m.FailQueries == -1 || m.FailQueries >= m.QueryCalls {
		return nil, &common.RetryableError{Err: common.ErrRemoteTransient, Retryable: true}
	}

	var out []service.RemoteDocument
	for _, doc := range m.docs {
		if doc.UserID != userID {
			continue
		}
		if startAfter != "" && doc.Timestamp <= startAfter {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Seed inserts a document directly, stamping a server timestamp.
func (m *MockRemote) Seed(doc service.RemoteDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock++
	doc.Timestamp = fmt.Sprintf("%020d", m.clock)
	m.docs[doc.ID] = doc
}

// Get returns a stored document and whether it exists.
func (m *MockRemote) Get(id string) (service.RemoteDocument, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// Len reports the number of stored documents.
func (m *MockRemote) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// MockConnectivity is a settable service.Connectivity for tests.
type MockConnectivity struct {
	mu          sync.Mutex
	online      bool
	subscribers []func(online bool)
}

// NewMockConnectivity starts in the given state.
func NewMockConnectivity(online bool) *MockConnectivity {
	return &MockConnectivity{online: online}
}

// Online implements service.Connectivity.
func (m *MockConnectivity) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe implements service.Connectivity. Unsubscribe is a no-op; test
// fixtures do not outlive their subscribers.
func (m *MockConnectivity) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
	return func() {}
}

// SetOnline flips the state and notifies subscribers on transitions.
func (m *MockConnectivity) SetOnline(online bool) {
	m.mu.Lock()
	changed := online != m.online
	m.online = online
	subs := append([]func(online bool){}, m.subscribers...)
	m.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(online)
		}
	}
}
