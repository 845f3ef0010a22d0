// Package localtime produces the plant-local wall-clock timestamps stored in
// the record store ("YYYY-MM-DD HH:MM:SS" at a fixed UTC offset).
package localtime

import "time"

// Layout is the SQL datetime layout used for every stored timestamp.
const Layout = "2006-01-02 15:04:05"

// DefaultOffsetMinutes is UTC+7.
const DefaultOffsetMinutes = 420

// Clock reports the current time in a fixed zone. Now may be replaced in
// tests.
type Clock struct {
	Zone *time.Location
	Now  func() time.Time
}

func New(offsetMinutes int) Clock {
	return Clock{
		Zone: time.FixedZone("plant", offsetMinutes*60),
		Now:  time.Now,
	}
}

// Fixed returns a clock frozen at t, in t's offset.
func Fixed(t time.Time) Clock {
	_, off := t.Zone()
	return Clock{
		Zone: time.FixedZone("plant", off),
		Now:  func() time.Time { return t },
	}
}

func (c Clock) Time() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	zone := c.Zone
	if zone == nil {
		zone = time.UTC
	}
	return now().In(zone)
}

// Stamp is the current time formatted with Layout.
func (c Clock) Stamp() string {
	return c.Time().Format(Layout)
}

// TrailingWindow returns the inclusive [from, to] bounds covering the last
// days calendar days including today.
func (c Clock) TrailingWindow(days int) (from, to string) {
	now := c.Time()
	start := now.AddDate(0, 0, -(days - 1))
	return start.Format("2006-01-02") + " 00:00:00", now.Format("2006-01-02") + " 23:59:59"
}

// RetentionCutoff is the end-of-day boundary of the date days ago; rows
// strictly older than it are purged.
func (c Clock) RetentionCutoff(days int) string {
	return c.Time().Add(-time.Duration(days) * 24 * time.Hour).Format("2006-01-02") + " 23:59:59"
}
