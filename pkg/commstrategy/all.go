// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package commstrategy

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/group"
	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// All fans a value out to every member of a group. It has no defined
// receive half; aggregating the replies is a user-level concern (a
// reduction performed by the update function over tmp/global).
type All struct {
	// ExcludeSelf skips the caller's own id in the group when fanning out.
	ExcludeSelf bool
}

func (a All) Send(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) rpc.Request {
	targets := excludeSelf(t, e, a.ExcludeSelf)
	rg := rpc.NewRequestGroup()
	for i := 0; i < targets.Count(); i++ {
		rg.Add(m.Send(ctx, t, targets.At(i), e.Tag()))
	}
	return rg
}

func (a All) Recv(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) error {
	panic("commstrategy: All.Recv is not defined; use a reduction at the update-function level")
}
