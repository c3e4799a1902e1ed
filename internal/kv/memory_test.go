package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetMissingKey(t *testing.T) {
	s := NewMemory()

	val, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestMemoryRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyInventory, []byte(`{"1":{"stock":5}}`)))

	val, err := s.Get(ctx, KeyInventory)
	require.NoError(t, err)
	assert.Equal(t, `{"1":{"stock":5}}`, string(val))
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	in := []byte("original")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'X'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(out))

	out[0] = 'Y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}
