package events

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLog_EmitAssignsIncreasingSequence(t *testing.T) {
	log := NewLog(10, zap.NewNop())
	log.Emit(SeverityInfo, "first")
	log.Emit(SeverityWarning, "second")

	entries := log.Since(0)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, "second", entries[1].Message)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[1].Fatal())

	after := log.Since(1)
	require.Len(t, after, 1)
	assert.Equal(t, "second", after[0].Message)
}

func TestLog_RetainsOnlyCapacity(t *testing.T) {
	log := NewLog(3, nil)
	for i := 0; i < 5; i++ {
		log.Emit(SeverityInfo, fmt.Sprintf("m%d", i))
	}
	entries := log.Since(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "m2", entries[0].Message)
	assert.Equal(t, int64(5), entries[2].Seq)
}

func TestLog_ConcurrentEmit(t *testing.T) {
	log := NewLog(1000, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Emit(SeveritySuccess, "ok")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, log.Len())
}

func TestLog_Subscribe(t *testing.T) {
	log := NewLog(10, nil)
	ch, cancel := log.Subscribe(4)

	log.Emit(SeverityError, "boom")
	entry := <-ch
	assert.Equal(t, "boom", entry.Message)
	assert.True(t, entry.Fatal())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// emitting after cancel must not panic
	log.Emit(SeverityInfo, "after")
}
