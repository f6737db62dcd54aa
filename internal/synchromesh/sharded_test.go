// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synchromesh

import (
	"context"
	"testing"
	"time"

	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
	"github.com/ClusterCockpit/synchromesh/pkg/shard"
	"github.com/stretchr/testify/require"
)

// echoArrayFn mirrors nbodyFn's shape but is generic over whatever
// array names the test registers: global simply takes on tmp's contents.
type echoArrayFn struct{ NoArgsFn }

func (echoArrayFn) Apply(tmp, global map[string]marshal.Marshalled) {
	for name, v := range tmp {
		src := v.(*marshal.ShardedArray[float64]).Value
		dst := global[name].(*marshal.ShardedArray[float64]).Value
		*dst = append((*dst)[:0], *src...)
	}
}

func newEchoArrayFn() UpdateFn { return echoArrayFn{} }

// TestShardableArraySinglePeerRoundTrip exercises register_array(shardable)
// with a single-member group, where the whole array is exactly one shard:
// the fix's raw scatter/recv path must round-trip the array losslessly
// instead of hitting the transport's length-mismatch fatal path.
func TestShardableArraySinglePeerRoundTrip(t *testing.T) {
	functions := NewFunctionRegistry()
	fnID := functions.Register(func() UpdateFn { return newEchoArrayFn() })

	const n = 16
	err := rpc.Run(1, func(peer *rpc.Simulator) error {
		v := make([]float64, n)
		for i := range v {
			v[i] = float64(i) * 1.5
		}
		orig := append([]float64(nil), v...)

		m := New(peer, functions, nil, time.Microsecond)
		m.RegisterArray("v", marshal.NewShardedArray(0, &v), true)

		ctx := context.Background()
		if err := m.Init(ctx, fnID); err != nil {
			return err
		}
		if err := m.Update(ctx, fnID, false); err != nil {
			return err
		}
		require.Equal(t, orig, v)
		return m.Close(ctx)
	})
	require.NoError(t, err)
}

// TestShardableArrayMultiPeerOwnShardSurvives runs the same registration
// across a k-peer group. Each peer's own shard (the byte range it scatters
// to itself, as member k==its own group index, when it is the requester)
// is the only range every peer's post-Update array is guaranteed to match
// against its pre-Update value; other ranges depend on the unspecified
// arrival order of other peers' concurrent rounds. The point of this test
// is that Update completes at all for shardable=true with k>1 senders
// fragmenting the same tag space, without tripping the transport's
// length-mismatch abort.
func TestShardableArrayMultiPeerOwnShardSurvives(t *testing.T) {
	functions := NewFunctionRegistry()
	fnID := functions.Register(func() UpdateFn { return newEchoArrayFn() })

	const k = 3
	const n = 30
	err := rpc.Run(k, func(peer *rpc.Simulator) error {
		v := make([]float64, n)
		for i := range v {
			v[i] = float64(peer.ID())
		}
		calc := shard.NewCalc(n, 8, k)
		own := peer.ID()
		wantStart, wantEnd := calc.StartElem(own), calc.EndElem(own)

		m := New(peer, functions, nil, time.Microsecond)
		m.RegisterArray("v", marshal.NewShardedArray(0, &v), true)

		ctx := context.Background()
		if err := m.Init(ctx, fnID); err != nil {
			return err
		}
		if err := m.Update(ctx, fnID, false); err != nil {
			return err
		}

		for i := wantStart; i < wantEnd; i++ {
			require.Equal(t, float64(own), v[i])
		}
		return m.Close(ctx)
	})
	require.NoError(t, err)
}

// TestRegisterShardableRequiresRawBytes checks the premise of the
// registration-time guard that rejects shardable=true for a variant that
// can't be addressed by byte range: FixedArray doesn't implement
// marshal.RawBytes, so register() rejects it instead of letting it panic
// deep inside commstrategy.Sharded's first Send. The guard itself aborts
// through cclog.Fatalf, which exits the process, so it is not invoked here.
func TestRegisterShardableRequiresRawBytes(t *testing.T) {
	_, ok := marshal.NewFixedArray(0, make([]float64, 4)).(marshal.RawBytes)
	require.False(t, ok, "FixedArray must not implement RawBytes for this guard to be meaningful")
}
