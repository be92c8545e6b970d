package chatws

import (
	"context"
	"sync"
)

// PresenceRegistry tracks how many live connections each user has. The
// in-memory implementation covers a single-process deployment; the Redis
// implementation exists so presence can be shared across instances.
type PresenceRegistry interface {
	// Connect records one more connection and reports whether it is the
	// user's first.
	Connect(ctx context.Context, userID int64) (first bool, err error)
	// Disconnect records one connection gone and reports whether it was the
	// user's last.
	Disconnect(ctx context.Context, userID int64) (last bool, err error)
	IsOnline(ctx context.Context, userID int64) (bool, error)
}

type MemoryPresence struct {
	mu     sync.Mutex
	counts map[int64]int
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{counts: make(map[int64]int)}
}

func (p *MemoryPresence) Connect(_ context.Context, userID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID]++
	return p.counts[userID] == 1, nil
}

func (p *MemoryPresence) Disconnect(_ context.Context, userID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	count, ok := p.counts[userID]
	if !ok {
		return false, nil
	}
	if count <= 1 {
		delete(p.counts, userID)
		return true, nil
	}
	p.counts[userID] = count - 1
	return false, nil
}

func (p *MemoryPresence) IsOnline(_ context.Context, userID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID] > 0, nil
}
