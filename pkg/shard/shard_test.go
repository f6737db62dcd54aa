// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalcCoversRangeExactly(t *testing.T) {
	for _, tc := range []struct{ n, k int }{
		{0, 1}, {1, 1}, {100, 8}, {7, 8}, {1000, 3}, {5, 5}, {5, 7},
	} {
		c := NewCalc(tc.n, 8, tc.k)
		sum := 0
		prevEnd := 0
		for w := 0; w < tc.k; w++ {
			require.LessOrEqual(t, c.StartElem(w), c.EndElem(w))
			require.LessOrEqual(t, c.EndElem(w), tc.n)
			require.Equal(t, prevEnd, c.StartElem(w), "shards must be contiguous and disjoint")
			prevEnd = c.EndElem(w)
			sum += c.NumElems(w)
		}
		require.Equal(t, tc.n, prevEnd)
		require.Equal(t, tc.n, sum)
	}
}

func TestCalcRemainderOnLastWorker(t *testing.T) {
	c := NewCalc(10, 4, 3)
	require.Equal(t, 3, c.NumElems(0))
	require.Equal(t, 3, c.NumElems(1))
	require.Equal(t, 4, c.NumElems(2))
}

func TestCalcSingleWorker(t *testing.T) {
	c := NewCalc(42, 8, 1)
	require.Equal(t, 0, c.StartElem(0))
	require.Equal(t, 42, c.EndElem(0))
	require.Equal(t, 42, c.NumElems(0))
}

func TestCalcNLessThanK(t *testing.T) {
	c := NewCalc(2, 4, 5)
	require.Equal(t, 0, c.NumElems(0))
	require.Equal(t, 0, c.NumElems(1))
	require.Equal(t, 0, c.NumElems(2))
	require.Equal(t, 0, c.NumElems(3))
	require.Equal(t, 2, c.NumElems(4))
}

func TestCalcBytes(t *testing.T) {
	c := NewCalc(100, 4, 8)
	require.Equal(t, c.StartElem(3)*4, c.StartByte(3))
	require.Equal(t, c.NumElems(3)*4, c.NumBytes(3))
}
