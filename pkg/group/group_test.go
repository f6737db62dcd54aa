// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeBuildsOrderedMembers(t *testing.T) {
	g := Range(1, 7)
	require.Equal(t, 7, g.Count())
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, g.Members())
}

func TestWithoutRemovesSelf(t *testing.T) {
	g := Range(0, 7).Without(0)
	require.Equal(t, 7, g.Count())
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, g.Members())
}

func TestWithoutLastMemberPanics(t *testing.T) {
	g := New(3)
	require.Panics(t, func() { g.Without(3) })
}

func TestEmptyGroupPanics(t *testing.T) {
	require.Panics(t, func() { New() })
}

func TestIndexOfFindsMemberPosition(t *testing.T) {
	g := New(5, 2, 9)
	require.Equal(t, 0, g.IndexOf(5))
	require.Equal(t, 1, g.IndexOf(2))
	require.Equal(t, 2, g.IndexOf(9))
	require.Equal(t, -1, g.IndexOf(3))
}

func TestEndpointCarriesTag(t *testing.T) {
	ep := NewEndpoint(Range(0, 3), 1100)
	require.Equal(t, 1100, ep.Tag())
	require.Equal(t, 4, ep.Count())
}
