// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marshal

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// Sequence marshals a resizable, homogeneous collection of scalar elements:
// a count prefix followed by the payload, per spec §4.4's wire table.
type Sequence[T any] struct {
	id    int
	Value *[]T
}

// NewSequence wraps v for marshalling under registry id id.
func NewSequence[T any](id int, v *[]T) *Sequence[T] {
	return &Sequence[T]{id: id, Value: v}
}

func (s *Sequence[T]) ID() int         { return s.id }
func (s *Sequence[T]) Shardable() bool { return false }

func (s *Sequence[T]) ElemSize() int {
	var zero T
	return sizeOf(zero)
}

// Copy allocates a new Sequence over an independent, currently-empty slice.
func (s *Sequence[T]) Copy() Marshalled {
	v := make([]T, 0)
	return &Sequence[T]{id: s.id, Value: &v}
}

func (s *Sequence[T]) Send(ctx context.Context, t rpc.Transport, dst, tag int) rpc.Request {
	rg := rpc.NewRequestGroup()
	rg.Add(t.SendData(dst, tag, encodeCount(len(*s.Value))))
	rg.Add(t.SendData(dst, tag, encodeFixed(*s.Value)))
	return rg
}

func (s *Sequence[T]) Recv(ctx context.Context, t rpc.Transport, src, tag int) error {
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
