package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanList_TimedBan(t *testing.T) {
	b := NewBanList()
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b.Block("10.0.0.1", 30, issued)

	assert.True(t, b.IsBanned("10.0.0.1", issued))
	assert.True(t, b.IsBanned("10.0.0.1", issued.Add(29*time.Second+999*time.Millisecond)))
	assert.False(t, b.IsBanned("10.0.0.1", issued.Add(30*time.Second)), "expiry boundary is exclusive")
	assert.False(t, b.IsBanned("10.0.0.1", issued.Add(time.Hour)))
	assert.False(t, b.IsBanned("10.0.0.2", issued))
}

func TestBanList_Permanent(t *testing.T) {
	b := NewBanList()
	now := time.Now()
	zero := b.Block("10.0.0.1", 0, now)
	neg := b.Block("10.0.0.2", -5, now)

	assert.True(t, zero.Permanent())
	assert.True(t, neg.Permanent())
	for _, later := range []time.Duration{0, time.Hour, 24 * 365 * 100 * time.Hour} {
		assert.True(t, b.IsBanned("10.0.0.1", now.Add(later)))
		assert.True(t, b.IsBanned("10.0.0.2", now.Add(later)))
	}
	assert.Equal(t, -1, zero.RemainingSeconds(now))
}

func TestBanList_OverwriteAndUnblock(t *testing.T) {
	b := NewBanList()
	now := time.Now()
	b.Block("10.0.0.1", 0, now)
	b.Block("10.0.0.1", 10, now)
	assert.False(t, b.IsBanned("10.0.0.1", now.Add(11*time.Second)), "later block replaces permanent entry")

	b.Unblock("10.0.0.1")
	assert.False(t, b.IsBanned("10.0.0.1", now))
	b.Unblock("never-seen")
	assert.Equal(t, 0, b.Len())
}

func TestBanList_LazyExpiryAndCompact(t *testing.T) {
	b := NewBanList()
	now := time.Now()
	b.Block("a", 1, now)
	b.Block("b", 100, now)
	b.Block("c", 0, now)

	later := now.Add(5 * time.Second)
	assert.False(t, b.IsBanned("a", later))
	assert.Equal(t, 3, b.Len(), "IsBanned must not purge")

	entries := b.Entries(later)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, b.Compact(later))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 0, b.Compact(later))
}

func TestBanEntry_RemainingSeconds(t *testing.T) {
	now := time.Now()
	e := BanEntry{Address: "a", ExpiresAt: now.Add(1500 * time.Millisecond)}
	assert.Equal(t, 2, e.RemainingSeconds(now))
	assert.False(t, e.Permanent())
}
