// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package commstrategy

import (
	"context"
	"fmt"

	"github.com/ClusterCockpit/synchromesh/pkg/group"
	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
	"github.com/ClusterCockpit/synchromesh/pkg/shard"
)

// Sharded splits a RawBytes value into e.Group().Count() fragments with
// shard.Calc: Send scatters fragment i to the i-th group member (one
// sender, many receivers, as when a root array is handed out to be
// worked on); Recv gathers the i-th group member's fragment back into
// the caller's buffer at the correct offset (one receiver, many
// senders, as when updated shards are reassembled into the full
// array). Both sides already agree on the element count and size from
// registration, so no length prefix travels with a fragment; the
// byte count for fragment i is always num_elems(i) * elem_size, never
// num_elems(i) alone. A fragment of zero bytes is neither sent nor
// received.
type Sharded struct{}

// asRawBytes requires m to support byte-range addressing; any other
// Marshalled variant is a programming error for this policy.
func asRawBytes(m marshal.Marshalled) marshal.RawBytes {
	rb, ok := m.(marshal.RawBytes)
	if !ok {
		panic(fmt.Sprintf("commstrategy: Sharded requires a marshal.RawBytes value, got %T", m))
	}
	return rb
}

func (s Sharded) Send(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) rpc.Request {
	rb := asRawBytes(m)
	members := e.Group()
	calc := shard.NewCalc(rb.NumElems(), m.ElemSize(), members.Count())
	data := rb.Bytes()

	rg := rpc.NewRequestGroup()
	for i := 0; i < members.Count(); i++ {
		frag := data[calc.StartByte(i):calc.EndByte(i)]
		if len(frag) == 0 {
			continue
		}
		rg.Add(t.SendData(members.At(i), e.Tag(), frag))
	}
	return rg
}

func (s Sharded) Recv(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) error {
	rb := asRawBytes(m)
	members := e.Group()
	calc := shard.NewCalc(rb.NumElems(), m.ElemSize(), members.Count())

	for i := 0; i < members.Count(); i++ {
		peer := members.At(i)
		frag := make([]byte, calc.NumBytes(i))
		if len(frag) > 0 {
			if _, err := t.RecvData(ctx, peer, e.Tag(), frag); err != nil {
				return err
			}
		}
		rb.SetRange(calc.StartByte(i), frag)
	}
	return nil
}
