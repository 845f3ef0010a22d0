package localtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStampUsesOffset(t *testing.T) {
	c := New(420)
	c.Now = func() time.Time { return time.Date(2026, 10, 15, 20, 30, 0, 0, time.UTC) }
	assert.Equal(t, "2026-10-16 03:30:00", c.Stamp())
}

func TestTrailingWindowIncludesToday(t *testing.T) {
	c := Fixed(time.Date(2026, 10, 15, 9, 0, 0, 0, time.FixedZone("x", 7*3600)))
	from, to := c.TrailingWindow(7)
	assert.Equal(t, "2026-10-09 00:00:00", from)
	assert.Equal(t, "2026-10-15 23:59:59", to)
}

func TestRetentionCutoff(t *testing.T) {
	c := Fixed(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	cutoff := c.RetentionCutoff(7)
	assert.Equal(t, "2026-10-08 23:59:59", cutoff)

	eightDaysAgo := c.Time().AddDate(0, 0, -8).Format(Layout)
	sixDaysAgo := c.Time().AddDate(0, 0, -6).Format(Layout)
	assert.Less(t, eightDaysAgo, cutoff)
	assert.Greater(t, sixDaysAgo, cutoff)
}
