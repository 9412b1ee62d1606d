package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter records folder creations and returns stable ids per (parent, name).
type fakeWriter struct {
	mu      sync.Mutex
	folders map[string]string // "parent/name" -> id
	creates int
	nextID  int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{folders: map[string]string{}}
}

func (f *fakeWriter) CreateFolder(_ context.Context, parentID, name string, _ map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := parentID + "/" + name
	if id, ok := f.folders[key]; ok {
		return id, nil
	}
	f.creates++
	f.nextID++
	id := fmt.Sprintf("node-%d", f.nextID)
	f.folders[key] = id
	return id, nil
}

func (f *fakeWriter) MoveDocument(context.Context, string, string) (bool, error) {
	return true, nil
}

func (f *fakeWriter) UpdateNodeProperties(context.Context, string, map[string]any) (bool, error) {
	return true, nil
}

func TestResolveCreatesHierarchy(t *testing.T) {
	t.Parallel()

	writer := newFakeWriter()
	resolver := NewResolver(writer, time.Minute)

	id, err := resolver.Resolve(context.Background(), "root", "PI-102206/ugovori")
	require.NoError(t, err)
	assert.Equal(t, "node-2", id)
	assert.Equal(t, 2, writer.creates)
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	writer := newFakeWriter()
	resolver := NewResolver(writer, time.Minute)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "root", "PI-102206")
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, "root", "PI-102206")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, writer.creates, "second resolve must not create a new folder")
}

func TestResolveEmptyPathReturnsRoot(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(newFakeWriter(), time.Minute)
	id, err := resolver.Resolve(context.Background(), "root", "")
	require.NoError(t, err)
	assert.Equal(t, "root", id)

	id, err = resolver.Resolve(context.Background(), "root", "///")
	require.NoError(t, err)
	assert.Equal(t, "root", id)
}

func TestResolveConcurrentSamePath(t *testing.T) {
	t.Parallel()

	writer := newFakeWriter()
	resolver := NewResolver(writer, time.Minute)
	ctx := context.Background()

	const workers = 20
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := resolver.Resolve(ctx, "root", "DE-555/depoziti")
			require.NoError(t, err)
			results[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, results[0], id)
	}
	assert.Equal(t, 2, writer.creates, "concurrent resolves must create each segment once")
}

func TestResolveConcurrentDistinctPaths(t *testing.T) {
	t.Parallel()

	writer := newFakeWriter()
	resolver := NewResolver(writer, time.Minute)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := resolver.Resolve(ctx, "root", fmt.Sprintf("PI-%d", i))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workers, writer.creates)
}
