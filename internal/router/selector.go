package router

import (
	"errors"
	"sync/atomic"

	"github.com/swarmguard/swarmguard/internal/metricscache"
)

// ErrNoHealthyReplica is returned when the healthy set is empty; the HTTP
// layer turns this into a 503 per spec.md §7 ("no healthy replicas as HTTP
// 503").
var ErrNoHealthyReplica = errors.New("router: no healthy replica")

// Algorithm is one of the four selection policies spec.md §4.3 names.
type Algorithm string

const (
	AlgorithmLease      Algorithm = "lease"
	AlgorithmMetrics    Algorithm = "metrics"
	AlgorithmHybrid     Algorithm = "hybrid"
	AlgorithmRoundRobin Algorithm = "round-robin"
)

// Weights are the scoring coefficients of spec.md §4.3's selection formula.
type Weights struct {
	CPU        float64
	Memory     float64
	Network    float64
	LeaseCount float64
}

// Selector chooses one replica per request according to the configured
// algorithm (spec.md §4.3 Selection policies).
type Selector struct {
	algorithm Algorithm
	weights   Weights
	leases    *LeaseLedger
	cache     *metricscache.Cache

	rrCounter uint64
}

// NewSelector builds a Selector. cache may be nil when algorithm never
// needs metrics (lease, round-robin). When the cache is nil or empty, the
// metrics algorithm degrades to round-robin (spec.md §4.3: "if the cache is
// empty, degrade to round-robin") and the hybrid algorithm degrades to the
// lease policy.
func NewSelector(algorithm Algorithm, weights Weights, leases *LeaseLedger, cache *metricscache.Cache) *Selector {
	return &Selector{algorithm: algorithm, weights: weights, leases: leases, cache: cache}
}

// Selection is the winning replica plus the lease id acquired for it, if
// the algorithm acquires one.
type Selection struct {
	Replica Replica
	LeaseID string
}

// Select picks one replica from healthy according to s.algorithm.
func (s *Selector) Select(healthy []Replica) (Selection, error) {
	if len(healthy) == 0 {
		return Selection{}, ErrNoHealthyReplica
	}

	switch s.algorithm {
	case AlgorithmLease:
		return s.selectLease(healthy)
	case AlgorithmMetrics:
		return s.selectMetrics(healthy)
	case AlgorithmHybrid:
		return s.selectHybrid(healthy)
	default:
		return s.selectRoundRobin(healthy)
	}
}

func (s *Selector) selectLease(healthy []Replica) (Selection, error) {
	winner := healthy[0]
	best := s.leases.Count(winner.ID)
	for _, r := range healthy[1:] {
		if c := s.leases.Count(r.ID); c < best {
			winner, best = r, c
		}
	}
	return Selection{Replica: winner, LeaseID: s.leases.Acquire(winner.ID)}, nil
}

func (s *Selector) selectMetrics(healthy []Replica) (Selection, error) {
	if s.cache == nil || s.cache.Empty() {
		return s.selectRoundRobin(healthy)
	}
	winner, ok := s.bestByScore(healthy)
	if !ok {
		return s.selectRoundRobin(healthy)
	}
	return Selection{Replica: winner}, nil
}

func (s *Selector) selectHybrid(healthy []Replica) (Selection, error) {
	if s.cache == nil || s.cache.Empty() {
		return s.selectLease(healthy)
	}
	winner := healthy[0]
	bestScore, ok := s.scoreWithLeases(winner)
	found := ok
	for _, r := range healthy[1:] {
		score, ok := s.scoreWithLeases(r)
		if ok && (!found || score < bestScore) {
			winner, bestScore, found = r, score, true
		}
	}
	if !found {
		return s.selectLease(healthy)
	}
	return Selection{Replica: winner, LeaseID: s.leases.Acquire(winner.ID)}, nil
}

func (s *Selector) selectRoundRobin(healthy []Replica) (Selection, error) {
	n := atomic.AddUint64(&s.rrCounter, 1) - 1
	idx := int(n % uint64(len(healthy)))
	return Selection{Replica: healthy[idx]}, nil
}

func (s *Selector) bestByScore(healthy []Replica) (Replica, bool) {
	var winner Replica
	var bestScore float64
	found := false
	for _, r := range healthy {
		score, ok := s.score(r)
		if !ok {
			continue
		}
		if !found || score < bestScore {
			winner, bestScore, found = r, score, true
		}
	}
	return winner, found
}

func (s *Selector) score(r Replica) (float64, bool) {
	m, ok := s.cache.Get(r.ID)
	if !ok {
		return 0, false
	}
	return s.weights.CPU*m.CPUPercent + s.weights.Memory*m.MemoryPercent + s.weights.Network*m.NetworkPercent, true
}

func (s *Selector) scoreWithLeases(r Replica) (float64, bool) {
	base, ok := s.score(r)
	if !ok {
		return 0, false
	}
	return base + s.weights.LeaseCount*float64(s.leases.Count(r.ID)), true
}
