package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/contractflow/pkg/core"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "contracts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleContract(id string) core.Contract {
	now := time.Date(2026, time.February, 22, 16, 40, 0, 0, time.UTC)
	return core.Contract{
		ID:        id,
		OwnerID:   "owner",
		Content:   []byte("two weeks of design work"),
		Status:    core.StatusPending,
		Version:   2,
		CreatedAt: now,
		UpdatedAt: now.Add(time.Hour),
		PreviousVersions: []core.Revision{
			{Content: []byte("one week"), UpdatedAt: now, Version: 1},
		},
		Metadata: core.Metadata{
			IPAddress:    "10.0.0.1",
			UserAgent:    "contractflow-test",
			LastActivity: now.Add(time.Hour),
			ViewCount:    3,
			SignedBy:     "alice",
			SignedAt:     now.Add(30 * time.Minute),
		},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestContractRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	want := sampleContract("c1")

	require.NoError(t, store.PutContract(ctx, want))
	got, err := store.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPutContractReplacesHistory(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	c := sampleContract("c1")
	require.NoError(t, store.PutContract(ctx, c))

	c.PreviousVersions = append(c.PreviousVersions, core.Revision{Content: []byte("v2"), UpdatedAt: c.UpdatedAt, Version: 2})
	c.Version = 3
	c.Metadata = core.Metadata{}
	require.NoError(t, store.PutContract(ctx, c))

	got, err := store.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	require.Len(t, got.PreviousVersions, 2)
	assert.Equal(t, []byte("v2"), got.PreviousVersions[1].Content)
	assert.True(t, got.Metadata.SignedAt.IsZero())
	assert.True(t, got.Metadata.LastActivity.IsZero())
}

func TestGetContractNotFound(t *testing.T) {
	store := openTempStore(t)
	_, err := store.GetContract(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSignatures(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutContract(ctx, sampleContract("c1")))

	sig := core.Signature{
		ContractID:     "c1",
		Role:           core.RoleDesigner,
		SignerUserID:   "u-alice",
		Name:           "Alice",
		SignatureImage: []byte{0x89, 0x50, 0x4e, 0x47},
		SignedAt:       time.Date(2026, time.February, 23, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PutSignature(ctx, sig))

	got, err := store.GetSignature(ctx, "c1", core.RoleDesigner)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	_, err = store.GetSignature(ctx, "c1", core.RoleClient)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, store.DeleteSignature(ctx, "c1", core.RoleDesigner))
	assert.ErrorIs(t, store.DeleteSignature(ctx, "c1", core.RoleDesigner), core.ErrNotFound)
}

func TestPutSignatureRequiresContract(t *testing.T) {
	store := openTempStore(t)
	err := store.PutSignature(context.Background(), core.Signature{
		ContractID: "ghost", Role: core.RoleClient, Name: "Bob", SignedAt: time.Now(),
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	store := openTempStore(t)
	require.NoError(t, store.Close())

	_, err := store.GetContract(context.Background(), "c1")
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.PutContract(ctx, sampleContract("c1"))
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestExtractUpMigration(t *testing.T) {
	got := extractUpMigration("-- +migrate Up\nCREATE TABLE a (x);\n-- +migrate Down\nDROP TABLE a;\n")
	assert.Equal(t, "\nCREATE TABLE a (x);\n", got)
	assert.Equal(t, "SELECT 1;", extractUpMigration("SELECT 1;"))
}
