package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake_UniqueAndIncreasing(t *testing.T) {
	s, err := New(3)
	require.NoError(t, err)

	var last int64
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		assert.Greater(t, id, last)
		last = id
	}
}

func TestSnowflake_Concurrent(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{})
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				id := s.Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n*500)
}

func TestNew_InvalidWorkerID(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)
	_, err = New(maxWorkerID + 1)
	assert.Error(t, err)
}

func TestGenerateEventNo(t *testing.T) {
	no := GenerateEventNo()
	assert.True(t, strings.HasPrefix(no, "PNT"))
	assert.Len(t, no, 3+14+8)
	assert.NotEqual(t, no, GenerateEventNo())
}
