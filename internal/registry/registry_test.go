package registry

import (
	"testing"

	"github.com/imyashkale/mcpbridge/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsDuplicateNames(t *testing.T) {
	r := New()

	first := process.New("dup", "cat", nil, nil)
	second := process.New("dup", "echo", nil, nil)

	require.NoError(t, r.Add(first))
	assert.ErrorIs(t, r.Add(second), ErrDuplicateServer)

	// The original entry is untouched
	got, ok := r.Get("dup")
	require.True(t, ok)
	assert.Equal(t, "cat", got.Command())
	assert.Equal(t, 1, r.Count())
}

func TestRemoveUnknownName(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Remove("ghost"), ErrServerNotFound)
}

func TestRepeatedRemoveReturnsNotFound(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(process.New("once", "cat", nil, nil)))

	require.NoError(t, r.Remove("once"))
	assert.ErrorIs(t, r.Remove("once"), ErrServerNotFound)
	assert.Equal(t, 0, r.Count())
}

func TestListReflectsCurrentSet(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(process.New("alpha", "cat", []string{"-u"}, nil)))
	require.NoError(t, r.Add(process.New("beta", "echo", nil, nil)))

	infos := r.List()
	require.Len(t, infos, 2)

	names := map[string]bool{}
	for _, info := range infos {
		names[info.Name] = true
		assert.False(t, info.Connected, "servers were never started")
	}
	assert.True(t, names["alpha"])
	assert.True(t, names["beta"])
}

func TestDeleteDropsEntryWithoutStopping(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(process.New("gone", "cat", nil, nil)))

	r.Delete("gone")
	_, ok := r.Get("gone")
	assert.False(t, ok)
}

func TestStopAllClearsRegistry(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(process.New("a", "cat", nil, nil)))
	require.NoError(t, r.Add(process.New("b", "cat", nil, nil)))

	r.StopAll()
	assert.Equal(t, 0, r.Count())
}
