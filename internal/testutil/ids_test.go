package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("run-7")

	assert.Equal(t, "run-7", gen.Generate())
	assert.Equal(t, "run-7", gen.Generate())
}

func TestFixedIDGenerator_EmptyIDDefault(t *testing.T) {
	assert.Equal(t, "test-session", NewFixedIDGenerator("").Generate())
}

func TestFixedIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedIDGenerator("shared")

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 100 {
				assert.Equal(t, "shared", gen.Generate())
			}
		})
	}
	wg.Wait()
}
