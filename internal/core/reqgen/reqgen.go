// Package reqgen tags asynchronous requests with a generation number so a
// late response can be recognized as stale and dropped.
package reqgen

import "sync/atomic"

// Counter hands out monotonically increasing generations. The zero value is
// ready to use.
type Counter struct {
	current atomic.Uint64
}

// Next starts a new request and returns its generation
func (c *Counter) Next() uint64 {
	return c.current.Add(1)
}

// IsCurrent reports whether gen is still the latest generation
func (c *Counter) IsCurrent(gen uint64) bool {
	return c.current.Load() == gen
}

// Invalidate makes every outstanding generation stale
func (c *Counter) Invalidate() {
	c.current.Add(1)
}

// Current returns the latest generation
func (c *Counter) Current() uint64 {
	return c.current.Load()
}
