// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marshal

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// FixedArray marshals a slice whose element count is known a priori by
// both peers (no count prefix on the wire, unlike Sequence).
type FixedArray[T any] struct {
	id    int
	Value []T
}

// NewFixedArray wraps v (len(v) fixed for the lifetime of this value).
func NewFixedArray[T any](id int, v []T) *FixedArray[T] {
	return &FixedArray[T]{id: id, Value: v}
}

func (a *FixedArray[T]) ID() int         { return a.id }
func (a *FixedArray[T]) Shardable() bool { return false }

func (a *FixedArray[T]) ElemSize() int {
	var zero T
	return sizeOf(zero)
}

// Copy allocates a new, independent zeroed array of the same length.
func (a *FixedArray[T]) Copy() Marshalled {
	return &FixedArray[T]{id: a.id, Value: make([]T, len(a.Value))}
}

func (a *FixedArray[T]) Send(ctx context.Context, t rpc.Transport, dst, tag int) rpc.Request {
	return t.SendData(dst, tag, encodeFixed(a.Value))
}

func (a *FixedArray[T]) Recv(ctx context.Context, t rpc.Transport, src, tag int) error {
	buf := make([]byte, a.ElemSize()*len(a.Value))
	if _, err := t.RecvData(ctx, src, tag, buf); err != nil {
		return err
	}
	decodeFixed(buf, a.Value)
	return nil
}
