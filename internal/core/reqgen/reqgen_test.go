package reqgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	var c Counter

	first := c.Next()
	assert.True(t, c.IsCurrent(first))

	second := c.Next()
	assert.False(t, c.IsCurrent(first), "older generation must be stale")
	assert.True(t, c.IsCurrent(second))

	c.Invalidate()
	assert.False(t, c.IsCurrent(second))
}

func TestCounter_Concurrent(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup

	seen := make(chan uint64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- c.Next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for g := range seen {
		unique[g] = true
	}
	assert.Len(t, unique, 100)
	assert.Equal(t, uint64(100), c.Current())
}
