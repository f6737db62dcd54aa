// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rpc defines the transport-agnostic peer-to-peer messaging core:
// tagged point-to-point byte transfer, non-blocking poll, and the Request
// handle used to observe completion of an in-flight send.
//
// Two backends implement Transport: the NATS-backed cluster transport in
// cluster.go, for real deployments, and the in-process Simulator in
// simulator.go, used for tests and local development.
package rpc

import "context"

// Sentinel values accepted by RecvData/Poll in place of a concrete source or
// tag.
const (
	AnyWorker = -1
	AnyTag    = -1
)

// Reserved tags. All other tag values are free for user payloads.
const (
	TagInitBarrier = 1000
	TagInitStart   = 1001
	TagInitDone    = 1002
	TagInitData    = 1003
	TagUpdateStart = 1100
	TagWorkerData  = 1101
	TagSyncerData  = 1200
	TagBarrier     = 1300
)

// Request is a handle to an in-flight or aggregate send. Done is
// non-blocking and idempotent; Wait blocks until every underlying transfer
// has completed and is idempotent. Requests are single-use: once Wait
// returns, the request must not be reused.
type Request interface {
	Done() bool
	Wait()
}

// completedRequest is a Request that is already satisfied, returned by
// backends whose send_data is synchronous (e.g. the simulator).
type completedRequest struct{}

func (completedRequest) Done() bool { return true }
func (completedRequest) Wait()      {}

// Completed returns a Request that is already done.
func Completed() Request { return completedRequest{} }

// RequestGroup owns a sequence of inner requests. Done is the conjunction of
// all inner requests; Wait iterates them in construction order. Both are
// idempotent: calling Wait after all requests have completed is a no-op.
type RequestGroup struct {
	reqs []Request
}

// NewRequestGroup builds an empty RequestGroup.
func NewRequestGroup() *RequestGroup {
	return &RequestGroup{}
}

// Add appends a sub-request in construction order.
func (g *RequestGroup) Add(r Request) {
	g.reqs = append(g.reqs, r)
}

// Done reports whether every sub-request has completed.
func (g *RequestGroup) Done() bool {
	for _, r := range g.reqs {
		if !r.Done() {
			return false
		}
	}
	return true
}

// Wait blocks until every sub-request has completed, in construction order.
func (g *RequestGroup) Wait() {
	for _, r := range g.reqs {
		r.Wait()
	}
}

// Transport is the interface the rest of the core relies on for tagged
// point-to-point byte transfer. Implementations must guarantee FIFO
// delivery between any ordered (src, dst, tag) triple; ordering across
// distinct tags or sources is unspecified. recv_data with a length not
// matching the corresponding send_data is a protocol violation and is
// fatal, per spec §7.
type Transport interface {
	// SendData enqueues a byte buffer for delivery to dst tagged with tag.
	// Non-blocking: the returned Request observes completion. The caller
	// may reuse/overwrite data immediately after this call returns; the
	// implementation must have already captured its contents.
	SendData(dst, tag int, data []byte) Request

	// RecvData blocks until a message of exactly len(out) bytes arrives
	// from src with tag, and copies it into out. If src is AnyWorker or
	// tag is AnyTag, the first available matching message is consumed and
	// the concrete source is returned.
	RecvData(ctx context.Context, src, tag int, out []byte) (actualSrc int, err error)

	// Poll reports, without blocking, whether a matching message is
	// already queued.
	Poll(src, tag int) bool

	First() int
	Last() int
	ID() int
	NumWorkers() int
}
