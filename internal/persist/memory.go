package persist

import (
	"context"
	"sync"

	"github.com/HendryAvila/storymap/internal/linkage"
)

// MemoryStore keeps the encoded session in process memory. It goes through
// the same codec as the durable backends.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read decodes the last written document, or returns (nil, nil).
func (m *MemoryStore) Read(ctx context.Context) (*linkage.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return Decode(m.data)
}

// Write encodes and keeps st.
func (m *MemoryStore) Write(ctx context.Context, st *linkage.State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// SetRaw stores data verbatim, bypassing the codec.
func (m *MemoryStore) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}
