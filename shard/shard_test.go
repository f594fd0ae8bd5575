package shard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfIsDeterministic(t *testing.T) {
	require.Equal(t, Of([]byte("foo")), Of([]byte("foo")))
}

func TestOfDiffersAcrossKeys(t *testing.T) {
	require.NotEqual(t, Of([]byte("foo")), Of([]byte("bar")))
}

func TestWorkerOfIsStableModulus(t *testing.T) {
	s := Of([]byte("foo"))
	require.Equal(t, int(s%4), WorkerOf(s, 4))
}

func TestWorkerOfInRange(t *testing.T) {
	for _, key := range [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")} {
		w := WorkerOf(Of(key), 3)
		require.GreaterOrEqual(t, w, 0)
		require.Less(t, w, 3)
	}
}
