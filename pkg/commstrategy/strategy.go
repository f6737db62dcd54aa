// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package commstrategy implements the four collective communication
// policies a registered variable can be updated with: broadcast-style
// all-to-all exchange, a first-responder any-of-group read, a fixed
// one-to-one transfer, and a byte-range split/reassemble sharded
// exchange. Each policy turns a local Marshalled value plus a
// group.Endpoint into the Request(s) needed to drive one synchronization
// round.
package commstrategy

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/group"
	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// Strategy is the capability every CommStrategy variant implements. Not
// every variant defines both halves: all(m) leaves Recv undefined (its
// counterpart is a user-level reduction) and any(m) leaves Send
// undefined. Calling the undefined half panics, matching the "recv is
// not defined" wording in the collective's description.
type Strategy interface {
	// Send fans m out over e, returning an rpc.Request that completes
	// once every transfer the policy performs has been enqueued.
	Send(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) rpc.Request

	// Recv blocks until the policy's incoming transfer(s) over e have
	// landed, decoding into m.
	Recv(ctx context.Context, t rpc.Transport, e group.Endpoint, m marshal.Marshalled) error
}

// excludeSelf removes t's own id from e's group when excludeSelf is
// true, matching the "optionally excluding self" wording given for the
// all() and sharded() policies.
func excludeSelf(t rpc.Transport, e group.Endpoint, exclude bool) group.ProcessGroup {
	if !exclude {
		return e.Group()
	}
	return e.Group().Without(t.ID())
}
