// Package testutil builds migrated stores and controllable clocks for
// package tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/bartek5186/mosync/internal/db"
	"github.com/bartek5186/mosync/internal/localtime"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/stretchr/testify/require"
)

// Plant is the zone every test clock reports in (UTC+7).
var Plant = time.FixedZone("plant", localtime.DefaultOffsetMinutes*60)

// ManualClock is a settable wall clock, safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Clock adapts c to the plant-local clock used by the store.
func (c *ManualClock) Clock() localtime.Clock {
	return localtime.Clock{Zone: Plant, Now: c.Now}
}

// OpenStore creates a migrated SQLite store under t.TempDir(). The returned
// clock starts at 2026-10-15 09:00 plant time.
func OpenStore(t *testing.T) (*store.Store, *ManualClock) {
	t.Helper()
	h, err := db.OpenAt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	require.NoError(t, h.Migrate())

	mc := NewManualClock(time.Date(2026, 10, 15, 9, 0, 0, 0, Plant))
	return store.New(h.DB, mc.Clock()), mc
}

func Ptr[T any](v T) *T { return &v }
