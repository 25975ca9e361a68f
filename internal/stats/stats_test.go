package stats

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecorder_RecordGeneration(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()

	require.NoError(t, rec.RecordGeneration(ctx, "remote"))
	require.NoError(t, rec.RecordGeneration(ctx, "original-format"))

	snap, err := rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.GenerationCount)
	assert.Equal(t, int64(1), snap.ByMode["remote"])
	assert.Equal(t, int64(1), snap.ByMode["original-format"])
	assert.False(t, snap.LastGenerationTime.IsZero())
}

func TestMemoryRecorder_ConcurrentRecording(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rec.RecordGeneration(ctx, "local")
		}()
	}
	wg.Wait()

	snap, err := rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), snap.GenerationCount)
}

func TestMemoryRecorder_SnapshotIsACopy(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	require.NoError(t, rec.RecordGeneration(ctx, "remote"))

	snap, err := rec.Snapshot(ctx)
	require.NoError(t, err)
	snap.ByMode["remote"] = 99

	again, err := rec.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ByMode["remote"])
}
