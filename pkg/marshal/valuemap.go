// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marshal

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// ValueMap marshals a keyed collection of scalar (key, value) pairs: a
// count prefix followed by count pairs, per spec §4.4's wire table.
type ValueMap[K comparable, V any] struct {
	id    int
	Value *map[K]V
}

// NewValueMap wraps v for marshalling under registry id id.
func NewValueMap[K comparable, V any](id int, v *map[K]V) *ValueMap[K, V] {
	return &ValueMap[K, V]{id: id, Value: v}
}

func (m *ValueMap[K, V]) ID() int         { return m.id }
func (m *ValueMap[K, V]) Shardable() bool { return false }
func (m *ValueMap[K, V]) ElemSize() int   { return 0 }

// Copy allocates a new ValueMap over an independent, currently-empty map.
func (m *ValueMap[K, V]) Copy() Marshalled {
	v := make(map[K]V)
	return &ValueMap[K, V]{id: m.id, Value: &v}
}

type kvPair[K comparable, V any] struct {
	Key K
	Val V
}

func (m *ValueMap[K, V]) Send(ctx context.Context, t rpc.Transport, dst, tag int) rpc.Request {
	pairs := make([]kvPair[K, V], 0, len(*m.Value))
	for k, v := range *m.Value {
		pairs = append(pairs, kvPair[K, V]{Key: k, Val: v})
	}

	rg := rpc.NewRequestGroup()
	rg.Add(t.SendData(dst, tag, encodeCount(len(pairs))))
	rg.Add(t.SendData(dst, tag, encodeFixed(pairs)))
	return rg
}

func (m *ValueMap[K, V]) Recv(ctx context.Context, t rpc.Transport, src, tag int) error {
	countBuf := make([]byte, countWordSize)
	if _, err := t.RecvData(ctx, src, tag, countBuf); err != nil {
		return err
	}
	n := decodeCount(countBuf)

	pairs := make([]kvPair[K, V], n)
	elemSize := sizeOf(kvPair[K, V]{})
	buf := make([]byte, n*elemSize)
	if _, err := t.RecvData(ctx, src, tag, buf); err != nil {
		return err
	}
	if n > 0 {
		decodeFixed(buf, pairs)
	}

	out := make(map[K]V, n)
	for _, p := range pairs {
		out[p.Key] = p.Val
	}
	*m.Value = out
	return nil
}
