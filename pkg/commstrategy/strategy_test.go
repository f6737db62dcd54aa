// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package commstrategy

import (
	"context"
	"testing"

	"github.com/ClusterCockpit/synchromesh/pkg/group"
	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
	"github.com/ClusterCockpit/synchromesh/pkg/shard"
	"github.com/stretchr/testify/require"
)

func TestAllFansOutToEveryOtherMember(t *testing.T) {
	const k = 4
	err := rpc.Run(k, func(peer *rpc.Simulator) error {
		e := group.NewEndpoint(group.Range(0, k-1), 20)
		if peer.ID() == 0 {
			v := int32(77)
			m := marshal.NewScalar(1, &v)
			All{ExcludeSelf: true}.Send(context.Background(), peer, e, m).Wait()
		} else {
			var v int32
			m := marshal.NewScalar(1, &v)
			if err := m.Recv(context.Background(), peer, 0, e.Tag()); err != nil {
				return err
			}
			require.Equal(t, int32(77), v)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAnyReceivesFromSoleSender(t *testing.T) {
	// Only peer 2 ever sends on this endpoint's tag, so peer 0's Any.Recv
	// is deterministic regardless of goroutine scheduling order.
	err := rpc.Run(3, func(peer *rpc.Simulator) error {
		e := group.NewEndpoint(group.New(1, 2), 21)
		if peer.ID() == 2 {
			v := int32(5)
			m := marshal.NewScalar(1, &v)
			m.Send(context.Background(), peer, 0, e.Tag()).Wait()
		} else if peer.ID() == 0 {
			var v int32
			m := marshal.NewScalar(1, &v)
			if err := (Any{}).Recv(context.Background(), peer, e, m); err != nil {
				return err
			}
			require.Equal(t, int32(5), v)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestOneIsDirectPointToPoint(t *testing.T) {
	err := rpc.Run(2, func(peer *rpc.Simulator) error {
		e := group.NewEndpoint(group.New(0, 1), 22)
		if peer.ID() == 0 {
			v := int32(9)
			m := marshal.NewScalar(1, &v)
			One{Target: 1}.Send(context.Background(), peer, e, m).Wait()
		} else {
			var v int32
			m := marshal.NewScalar(1, &v)
			if err := (One{Target: 0}).Recv(context.Background(), peer, e, m); err != nil {
				return err
			}
			require.Equal(t, int32(9), v)
		}
		return nil
	})
	require.NoError(t, err)
}

// TestShardedScatterThenRawRecv mirrors the seed scenario: peer 0 scatters a
// sharded array over group [1..k-1] with Sharded.Send; each receiving peer
// reads its own raw fragment directly off the transport (the fragment
// carries no framing of its own) and decodes it in place with SetRange.
func TestShardedScatterThenRawRecv(t *testing.T) {
	const k = 8
	const n = 100
	err := rpc.Run(k, func(peer *rpc.Simulator) error {
		e := group.NewEndpoint(group.Range(1, k-1), 23)
		if peer.ID() == 0 {
			v := make([]int32, n)
			for i := range v {
				v[i] = int32(i)
			}
			m := marshal.NewShardedArray(1, &v)
			Sharded{}.Send(context.Background(), peer, e, m).Wait()
		} else {
			calc := shard.NewCalc(n, 4, e.Group().Count())
			idx := peer.ID() - 1
			v := make([]int32, calc.NumElems(idx))
			m := marshal.NewShardedArray(1, &v)

			buf := make([]byte, calc.NumBytes(idx))
			if _, err := peer.RecvData(context.Background(), 0, e.Tag(), buf); err != nil {
				return err
			}
			m.SetRange(0, buf)

			require.Equal(t, int32(calc.StartElem(idx)), v[0])
		}
		return nil
	})
	require.NoError(t, err)
}

// TestShardedGatherReassemblesFullArray exercises the reverse direction:
// every peer, the root included, sends its own shard's raw bytes directly
// to the root; the root gathers all fragments with Sharded.Recv into one
// full buffer.
func TestShardedGatherReassemblesFullArray(t *testing.T) {
	const k = 4
	const n = 101 // deliberately not divisible by k, to exercise remainder absorption
	err := rpc.Run(k, func(peer *rpc.Simulator) error {
		e := group.NewEndpoint(group.Range(0, k-1), 24)
		calc := shard.NewCalc(n, 4, k)

		idx := peer.ID()
		piece := make([]int32, calc.NumElems(idx))
		for i := range piece {
			piece[i] = int32(calc.StartElem(idx) + i)
		}
		pm := marshal.NewShardedArray(1, &piece)
		peer.SendData(0, e.Tag(), pm.Bytes())

		if peer.ID() == 0 {
			full := make([]int32, n)
			m := marshal.NewShardedArray(1, &full)
			if err := (Sharded{}).Recv(context.Background(), peer, e, m); err != nil {
				return err
			}
			require.Equal(t, int32(0), full[0])
			require.Equal(t, int32(n-1), full[n-1])
			require.Equal(t, int32(50), full[50])
		}
		return nil
	})
	require.NoError(t, err)
}
