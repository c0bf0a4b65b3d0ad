package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLeaseLedger_ExpiryCleanup covers spec.md §8 invariant 4: every lease is either
// still alive, explicitly released, or swept by the cleanup pass within one
// cleanup interval after expiry.
func TestLeaseLedger_ExpiryCleanup(t *testing.T) {
	ledger := NewLeaseLedger(10*time.Millisecond, nil)
	id := ledger.Acquire("r1")
	require.Equal(t, 1, ledger.Count("r1"))

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go ledger.RunCleanup(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return ledger.Count("r1") == 0
	}, 80*time.Millisecond, 5*time.Millisecond)

	// Releasing an already-swept lease must not panic or resurrect it.
	ledger.Release("r1", id)
	require.Equal(t, 0, ledger.Count("r1"))
}

func TestLeaseLedger_ReleaseBeforeExpiry(t *testing.T) {
	ledger := NewLeaseLedger(time.Minute, nil)
	id := ledger.Acquire("r1")
	require.Equal(t, 1, ledger.Count("r1"))

	ledger.Release("r1", id)
	require.Equal(t, 0, ledger.Count("r1"))
}

func TestLeaseLedger_Snapshot(t *testing.T) {
	ledger := NewLeaseLedger(time.Minute, nil)
	ledger.Acquire("r1")
	ledger.Acquire("r1")
	ledger.Acquire("r2")

	snap := ledger.Snapshot()
	require.Equal(t, 2, snap["r1"])
	require.Equal(t, 1, snap["r2"])
}
