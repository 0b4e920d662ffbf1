package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock(t *testing.T) {
	c := NewDeterministicClock()

	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch.Add(time.Second), c.Now())

	c.Reset()
	assert.Equal(t, Epoch, c.Now())
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("cp")
	assert.Equal(t, "cp-0001", g.Generate())
	assert.Equal(t, "cp-0002", g.Generate())

	assert.Equal(t, "id-0001", NewSequentialIDs("").Generate())
}

func TestSequentialIDsConcurrent(t *testing.T) {
	g := NewSequentialIDs("x")
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(g.Generate(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
}
