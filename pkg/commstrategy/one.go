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

// One sends to, and receives from, a single fixed peer. A length-1
// group under any other strategy reduces to these same semantics.
type One struct {
	Target int
}

func (o One) Send(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) rpc.Request {
	return m.Send(ctx, t, o.Target, e.Tag())
}

func (o One) Recv(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) error {
	return m.Recv(ctx, t, o.Target, e.Tag())
}
