package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/contractflow/pkg/core"
)

func TestTyped_RoundTrip(t *testing.T) {
	c := NewMemory()
	stages := NewTyped[core.StageRecord](c)
	at := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)

	_, ok, err := stages.Get(StageKey("c1"))
	require.NoError(t, err)
	assert.False(t, ok)

	entry := core.CacheEntry[core.StageRecord]{
		Value:       core.StageRecord{ContractID: "c1", Stage: core.StageSign, LastUpdated: at},
		LastUpdated: at,
		Source:      core.SourceLocal,
	}
	require.NoError(t, stages.Set(StageKey("c1"), entry))

	got, ok, err := stages.Get(StageKey("c1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.StageSign, got.Value.Stage)
	assert.True(t, got.LastUpdated.Equal(at))

	require.NoError(t, stages.Delete(StageKey("c1")))
	_, ok, err = stages.Get(StageKey("c1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTyped_DecodeMismatchIsError(t *testing.T) {
	c := NewMemory()
	require.NoError(t, NewTyped[string](c).Set("k", core.CacheEntry[string]{Value: "text"}))

	_, ok, err := NewTyped[core.Signatures](c).Get("k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSplitKey(t *testing.T) {
	id, kind, ok := SplitKey(StageKey("abc-123"))
	assert.True(t, ok)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, "stage", kind)

	for _, bad := range []string{"other/abc/stage", "contracts/", "contracts/abc", "contracts/abc/"} {
		_, _, ok := SplitKey(bad)
		assert.False(t, ok, bad)
	}
}
