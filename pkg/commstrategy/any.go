// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package commstrategy

import (
	"context"
	"runtime"

	"github.com/ClusterCockpit/synchromesh/pkg/group"
	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// Any receives from whichever group member is first to have a matching
// message queued. It has no defined send half: a peer never knows in
// advance that it will be the winner of an Any collective.
type Any struct{}

func (a Any) Send(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) rpc.Request {
	panic("commstrategy: Any.Send is not defined")
}

// Recv polls e's group in index order until a member has a message
// queued on e.Tag(), then receives from that single peer.
func (a Any) Recv(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) error {
	members := e.Group()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for i := 0; i < members.Count(); i++ {
			peer := members.At(i)
			if t.Poll(peer, e.Tag()) {
				return m.Recv(ctx, t, peer, e.Tag())
			}
		}
		runtime.Gosched()
	}
}
