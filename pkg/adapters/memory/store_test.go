package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/contractflow/pkg/core"
)

func TestStore_ContractCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	c := core.Contract{ID: "c1", OwnerID: "u1", Content: []byte("hello")}
	require.NoError(t, s.PutContract(ctx, c))
	c.Content[0] = 'j'

	got, err := s.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got.Content), "store must not alias caller memory")

	got.Content[0] = 'y'
	again, err := s.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(again.Content))
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.GetContract(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.GetSignature(ctx, "missing", core.RoleClient)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, s.DeleteSignature(ctx, "missing", core.RoleClient), core.ErrNotFound)
}

func TestStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetUnavailable(true)

	assert.ErrorIs(t, s.PutContract(ctx, core.Contract{ID: "c1"}), core.ErrUnavailable)
	_, err := s.GetContract(ctx, "c1")
	assert.ErrorIs(t, err, core.ErrUnavailable)
	assert.Equal(t, 0, s.Writes())

	s.SetUnavailable(false)
	assert.NoError(t, s.PutContract(ctx, core.Contract{ID: "c1"}))
	assert.Equal(t, 1, s.Writes())
}

func TestStore_CancelledContextIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore().GetContract(ctx, "c1")
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestStore_SignatureLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	sig := core.Signature{ContractID: "c1", Role: core.RoleDesigner, Name: "Alice"}
	require.NoError(t, s.PutSignature(ctx, sig))

	got, err := s.GetSignature(ctx, "c1", core.RoleDesigner)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	require.NoError(t, s.DeleteSignature(ctx, "c1", core.RoleDesigner))
	_, err = s.GetSignature(ctx, "c1", core.RoleDesigner)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
