// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marshal

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// Scalar marshals a single fixed-size record referenced by pointer.
type Scalar[T any] struct {
	id    int
	Value *T
}

// NewScalar wraps v for marshalling under registry id id.
func NewScalar[T any](id int, v *T) *Scalar[T] {
	return &Scalar[T]{id: id, Value: v}
}

func (s *Scalar[T]) ID() int         { return s.id }
func (s *Scalar[T]) Shardable() bool { return false }
func (s *Scalar[T]) ElemSize() int   { return sizeOf(*s.Value) }

// Copy allocates a new, independent zero value of T under the same id.
func (s *Scalar[T]) Copy() Marshalled {
	var v T
	return &Scalar[T]{id: s.id, Value: &v}
}

func (s *Scalar[T]) Send(ctx context.Context, t rpc.Transport, dst, tag int) rpc.Request {
	return t.SendData(dst, tag, encodeFixed(*s.Value))
}

func (s *Scalar[T]) Recv(ctx context.Context, t rpc.Transport, src, tag int) error {
	buf := make([]byte, sizeOf(*s.Value))
	if _, err := t.RecvData(ctx, src, tag, buf); err != nil {
		return err
	}
	decodeFixed(buf, s.Value)
	return nil
}
