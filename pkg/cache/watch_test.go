package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keySink struct {
	mu   sync.Mutex
	keys []string
}

func (s *keySink) add(k string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, k)
}

func (s *keySink) has(k string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.keys {
		if v == k {
			return true
		}
	}
	return false
}

func TestWatcher_ReportsExternalChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "cache.json")
	mine, err := Open(path)
	require.NoError(t, err)
	theirs, err := Open(path)
	require.NoError(t, err)

	sink := &keySink{}
	w, err := NewWatcher(mine, WatchConfig{
		Pattern:  ContractKeys("c1"),
		Debounce: 10 * time.Millisecond,
		OnChange: sink.add,
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return mine.State().(State).WatcherActive
	}, 2*time.Second, 10*time.Millisecond)

	now := time.Now()
	require.NoError(t, theirs.Set(StageKey("c2"), record("edit", now)))
	require.NoError(t, theirs.Set(StageKey("c1"), record("sign", now)))

	assert.Eventually(t, func() bool { return sink.has(StageKey("c1")) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, sink.has(StageKey("c2")), "keys outside the pattern are filtered")

	got, ok := mine.Get(StageKey("c1"))
	require.True(t, ok)
	assert.JSONEq(t, `"sign"`, string(got.Value))
}

func TestWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(NewMemory(), WatchConfig{})
	assert.Error(t, err)

	c, err := Open(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	_, err = NewWatcher(c, WatchConfig{Pattern: "contracts/[abc"})
	assert.Error(t, err)
}

func TestWatcher_StartTwiceFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := Open(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	w, err := NewWatcher(c, WatchConfig{})
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	defer w.Stop(context.Background())
	assert.Error(t, w.Start(ctx))
}
