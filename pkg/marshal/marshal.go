// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package marshal implements the type-tagged serialization layer: scalars,
// fixed arrays, resizable sequences, maps, sharded arrays, and sequences of
// heterogeneous values, each carrying a stable registry id so a receiver
// that does not know the variant a priori can reconstruct it.
//
// Every Marshalled variant encodes payload bytes in native endianness
// (homogeneous clusters are assumed, per spec); variable-length variants
// transmit a count before the payload so the receiver can size its buffer
// ahead of the blocking Transport.RecvData call.
package marshal

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// Marshalled is the capability set every payload variant implements:
// a stable registry id, a copy used to allocate independent scratch/
// authoritative storage (the tmp/global tables), and direct send/recv
// against a Transport for a single peer and tag.
type Marshalled interface {
	// ID returns this value's registry id.
	ID() int

	// Copy returns a fresh instance with independent storage of the same
	// shape (same length for arrays/sequences), used to allocate the
	// tmp/global tables from a registered local entry.
	Copy() Marshalled

	// Shardable reports whether this variant's storage may be split
	// across a group by ShardCalc.
	Shardable() bool

	// ElemSize returns the per-element size in bytes for scalar, fixed
	// array, sequence and sharded variants (the record size for Scalar),
	// and 0 for maps and value sequences.
	ElemSize() int

	// Send encodes the value and enqueues it for dst on tag.
	Send(ctx context.Context, t rpc.Transport, dst, tag int) rpc.Request

	// Recv blocks until the value has arrived from src on tag, decoding
	// it in place.
	Recv(ctx context.Context, t rpc.Transport, src, tag int) error
}

// RawBytes is implemented by variants whose storage is a contiguous
// numeric region that CommStrategy's sharded policy can split directly,
// bypassing Marshalled's own Send/Recv framing.
type RawBytes interface {
	Marshalled
	NumElems() int
	Bytes() []byte
	SetRange(startByte int, data []byte)
}
