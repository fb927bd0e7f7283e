package embedding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	t.Run("Identical", func(t *testing.T) {
		v := []float32{1, 2, 3}
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
	})

	t.Run("Orthogonal", func(t *testing.T) {
		assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("Opposite", func(t *testing.T) {
		assert.InDelta(t, -1.0, Cosine([]float32{1, 2}, []float32{-1, -2}), 1e-9)
	})

	t.Run("ZeroVector", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 2}))
		assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{0, 0}))
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, 0.0, Cosine(nil, nil))
	})
}

func TestLazyConstructsOnce(t *testing.T) {
	ctx := context.Background()
	constructed := 0

	lazy := NewLazy(func() (Embedder, error) {
		constructed++
		return Func(func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0}, nil
		}), nil
	})

	for i := 0; i < 3; i++ {
		_, err := lazy.Embed(ctx, "hello")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, constructed, "backend must be built exactly once")

	t.Run("ResetRebuilds", func(t *testing.T) {
		lazy.Reset()
		_, err := lazy.Embed(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, 2, constructed)
	})
}

func TestLazyConstructionFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	lazy := NewLazy(func() (Embedder, error) {
		attempts++
		if attempts == 1 {
			return nil, fmt.Errorf("backend unavailable")
		}
		return Func(func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1}, nil
		}), nil
	})

	_, err := lazy.Embed(ctx, "x")
	require.Error(t, err)

	_, err = lazy.Embed(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
