// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marshal

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// ShardedArray marshals a contiguous numeric region that may be split
// across a group by shard.Calc. Its own Send/Recv (used by the "one" and
// "all" strategies, and for direct round trips) behave like Sequence: a
// count prefix followed by the full payload. The sharded CommStrategy
// instead uses Bytes/SetRange to address byte ranges directly, bypassing
// this framing.
type ShardedArray[T any] struct {
	id    int
	Value *[]T
}

// NewShardedArray wraps v for marshalling under registry id id.
func NewShardedArray[T any](id int, v *[]T) *ShardedArray[T] {
	return &ShardedArray[T]{id: id, Value: v}
}

func (s *ShardedArray[T]) ID() int         { return s.id }
func (s *ShardedArray[T]) Shardable() bool { return true }

func (s *ShardedArray[T]) ElemSize() int {
	var zero T
	return sizeOf(zero)
}

func (s *ShardedArray[T]) NumElems() int { return len(*s.Value) }

// Copy allocates a new ShardedArray over an independent slice of the same
// length.
func (s *ShardedArray[T]) Copy() Marshalled {
	v := make([]T, len(*s.Value))
	return &ShardedArray[T]{id: s.id, Value: &v}
}

// Bytes returns the whole backing array encoded in native endianness.
func (s *ShardedArray[T]) Bytes() []byte {
	return encodeFixed(*s.Value)
}

// SetRange decodes data into the elements starting at byte offset
// startByte, in place.
func (s *ShardedArray[T]) SetRange(startByte int, data []byte) {
	elemSize := s.ElemSize()
	if elemSize == 0 || len(data) == 0 {
		return
	}
	start := startByte / elemSize
	n := len(data) / elemSize
	decodeFixed(data, (*s.Value)[start:start+n])
}

func (s *ShardedArray[T]) Send(ctx context.Context, t rpc.Transport, dst, tag int) rpc.Request {
	rg := rpc.NewRequestGroup()
	rg.Add(t.SendData(dst, tag, encodeCount(len(*s.Value))))
	rg.Add(t.SendData(dst, tag, s.Bytes()))
	return rg
}

func (s *ShardedArray[T]) Recv(ctx context.Context, t rpc.Transport, src, tag int) error {
	countBuf := make([]byte, countWordSize)
	if _, err := t.RecvData(ctx, src, tag, countBuf); err != nil {
		return err
	}
	n := decodeCount(countBuf)

	vals := make([]T, n)
	buf := make([]byte, n*s.ElemSize())
	if _, err := t.RecvData(ctx, src, tag, buf); err != nil {
		return err
	}
	if n > 0 {
		decodeFixed(buf, vals)
	}
	*s.Value = vals
	return nil
}
