package evidence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"profiler-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ConcurrentAppendLosesNothing(t *testing.T) {
	store := NewStore()
	const workers = 64
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				label := fmt.Sprintf("w%d-%d", w, i)
				store.Append(models.NewEvidenceItem(models.SourceWebPage, label, "text", time.Now()))
			}
		}(w)
	}
	wg.Wait()

	snap := store.Snapshot()
	require.Len(t, snap.Items, workers*perWorker)

	seen := make(map[string]bool, len(snap.Items))
	for _, item := range snap.Items {
		assert.False(t, seen[item.Label], "duplicate %s", item.Label)
		seen[item.Label] = true
	}
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	store := NewStore()
	store.Append(models.NewEvidenceItem(models.SourceDocument, "a.txt", "one", time.Now()))

	snap := store.Snapshot()
	store.Append(models.NewEvidenceItem(models.SourceDocument, "b.txt", "two", time.Now()))
	snap.Items[0].Content = "mutated"

	assert.Len(t, snap.Items, 1)
	assert.Equal(t, "one", store.Snapshot().Items[0].Content)
	assert.Equal(t, 2, store.Len())
}

func TestStore_BeginKeepsItemsAndReplaceSubstitutes(t *testing.T) {
	store := NewStore()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.Append(models.NewEvidenceItem(models.SourceDocument, "a.txt", "one", at))
	store.Begin("Jane Doe", at)

	snap := store.Snapshot()
	assert.Equal(t, "Jane Doe", snap.Subject)
	assert.Equal(t, at, snap.ScannedAt)
	assert.Len(t, snap.Items, 1)

	items := []models.EvidenceItem{
		models.NewSocialItem("Reddit", "john", "https://reddit.com/search?q=john", "posts", at),
		models.NewEvidenceItem(models.SourceWebPage, "https://example.com", "page", at),
	}
	store.Replace("John", items, at.Add(time.Hour))
	items[0].Content = "changed"

	snap = store.Snapshot()
	assert.Equal(t, "John", snap.Subject)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "posts", snap.Items[0].Content)
	assert.Equal(t, models.EvidenceCounts{WebPages: 1, Social: 1}, store.Counts())
	assert.Equal(t, models.EvidenceCounts{WebPages: 1, Social: 1}, snap.Counts())
}
