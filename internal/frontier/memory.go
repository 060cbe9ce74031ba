package frontier

import (
	"context"
	"hash/fnv"
	"slices"
	"sync"
)

const defaultShards = 32

// Memory is an in-process frontier striped across independently locked
// shards.
type Memory struct {
	shards []shard
}

type shard struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewMemory returns an empty frontier. shards <= 0 selects the default.
func NewMemory(shards int) *Memory {
	if shards <= 0 {
		shards = defaultShards
	}
	m := &Memory{shards: make([]shard, shards)}
	for i := range m.shards {
		m.shards[i].set = make(map[string]struct{})
	}
	return m
}

// Claim inserts address and reports whether it was absent. It never fails.
func (m *Memory) Claim(_ context.Context, address string) (bool, error) {
	s := m.shardFor(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[address]; ok {
		return false, nil
	}
	s.set[address] = struct{}{}
	return true, nil
}

// Contains reports whether address has been claimed.
func (m *Memory) Contains(address string) bool {
	s := m.shardFor(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[address]
	return ok
}

// Len returns the number of claimed addresses.
func (m *Memory) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.set)
		s.mu.Unlock()
	}
	return n
}

// Addresses returns every claimed address in sorted order.
func (m *Memory) Addresses() []string {
	out := make([]string, 0, m.Len())
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for addr := range s.set {
			out = append(out, addr)
		}
		s.mu.Unlock()
	}
	slices.Sort(out)
	return out
}

// Size satisfies the status reporter; the context is unused.
func (m *Memory) Size(context.Context) (int64, error) {
	return int64(m.Len()), nil
}

func (m *Memory) shardFor(address string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(address))
	return &m.shards[h.Sum32()%uint32(len(m.shards))]
}
