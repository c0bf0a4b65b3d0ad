package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/metrics"
)

// LeaseLedger is the mapping replica id -> set of leases of spec.md §4.3,
// guarded by a single mutex the way the teacher guards its per-node
// utilization map in pkg/scaler/scaler.go.
type LeaseLedger struct {
	duration time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	leases map[string]map[string]time.Time // replicaID -> leaseID -> expiresAt
}

// NewLeaseLedger builds a ledger with the configured lease duration.
func NewLeaseLedger(duration time.Duration, logger *zap.Logger) *LeaseLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaseLedger{
		duration: duration,
		logger:   logger,
		leases:   make(map[string]map[string]time.Time),
	}
}

// Acquire creates and records a fresh lease against replicaID.
func (l *LeaseLedger) Acquire(replicaID string) string {
	id := uuid.New().String()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.leases[replicaID] == nil {
		l.leases[replicaID] = make(map[string]time.Time)
	}
	l.leases[replicaID][id] = time.Now().Add(l.duration)
	metrics.SetActiveLeases(l.countLocked())
	return id
}

// Release removes a specific lease. Safe to call even if the lease has
// already expired or been cleaned up (spec.md §4.3: "Lease release must be
// guaranteed on every exit path").
func (l *LeaseLedger) Release(replicaID, leaseID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if set, ok := l.leases[replicaID]; ok {
		delete(set, leaseID)
		if len(set) == 0 {
			delete(l.leases, replicaID)
		}
	}
	metrics.SetActiveLeases(l.countLocked())
}

// Count returns the number of unexpired leases currently held against
// replicaID, used by the lease and hybrid selection policies.
func (l *LeaseLedger) Count(replicaID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leases[replicaID])
}

// Snapshot returns the current per-replica lease counts, for /metrics.
func (l *LeaseLedger) Snapshot() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.leases))
	for rid, set := range l.leases {
		out[rid] = len(set)
	}
	return out
}

func (l *LeaseLedger) countLocked() int {
	total := 0
	for _, set := range l.leases {
		total += len(set)
	}
	return total
}

// RunCleanup evicts expired leases every interval until ctx is cancelled
// (spec.md §4.3 "A cleanup task runs every cleanup_interval").
func (l *LeaseLedger) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *LeaseLedger) sweep() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for rid, set := range l.leases {
		for id, expiresAt := range set {
			if now.After(expiresAt) {
				delete(set, id)
				evicted++
			}
		}
		if len(set) == 0 {
			delete(l.leases, rid)
		}
	}
	if evicted > 0 {
		for i := 0; i < evicted; i++ {
			metrics.RecordLeaseExpired()
		}
		metrics.SetActiveLeases(l.countLocked())
		l.logger.Debug("cleanup pass evicted expired leases", zap.Int("count", evicted))
	}
}
