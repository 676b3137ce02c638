package usage

import (
	"context"
	"sync"
)

// Snapshot is the persisted form of the ledger: every record in order, the
// identity counter and the time of the first record (Unix ms, nil if none).
type Snapshot struct {
	Records           []Record `json:"records"`
	IDCounter         int64    `json:"idCounter"`
	FirstGenerationAt *int64   `json:"firstGenerationAt"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{IDCounter: s.IDCounter}
	out.Records = make([]Record, len(s.Records))
	copy(out.Records, s.Records)
	if s.FirstGenerationAt != nil {
		v := *s.FirstGenerationAt
		out.FirstGenerationAt = &v
	}
	return out
}

// Store persists ledger snapshots. Load returns an empty snapshot and a nil
// error when nothing has been stored yet. Records are append-only, so a
// Save always carries every record of the previous Save as a prefix.
// Implementations must not retain snap after Save returns.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
	// Describe names the backend for logs, e.g. "file:usage-data.json".
	Describe() string
}

// MemoryStore keeps the snapshot in process memory. It is used for tests and
// for deployments that do not need durability.
type MemoryStore struct {
	mu   sync.Mutex
	snap Snapshot
	// SaveErr, if set, is returned by Save.
	SaveErr error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.snap = snap.Clone()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	return nil
}

func (m *MemoryStore) Describe() string { return "memory" }
