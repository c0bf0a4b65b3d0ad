// Package router implements the intelligent request router of spec.md §4.3:
// replica discovery, health probing, a lease ledger, four selection
// policies, and a transparent reverse proxy.
package router

import "time"

// Replica is one discovered, addressable instance of the target service.
// Grounded on spec.md §3's Replica entity.
type Replica struct {
	ID      string
	Node    string
	Address string // base URL, e.g. "http://worker-3:8080"
	Healthy bool
}

// Lease is one outstanding claim against a replica, grounded on spec.md §3's
// Lease entity.
type Lease struct {
	ID        string
	ReplicaID string
	ExpiresAt time.Time
}
