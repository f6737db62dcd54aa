// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marshal

import (
	"context"

	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// ValueSequence marshals an ordered list of heterogeneous Marshalled
// values. Each element is prefixed by its registry id so the receiver,
// which does not know any element's concrete variant a priori, can
// reconstruct it through a Registry (the type-id discovery path of
// spec §4.4).
type ValueSequence struct {
	id       int
	registry *Registry
	Values   []Marshalled
}

// NewValueSequence wraps values for marshalling under registry id id,
// resolving unknown elements on Recv through reg.
func NewValueSequence(id int, reg *Registry, values []Marshalled) *ValueSequence {
	if reg == nil {
		reg = Default
	}
	return &ValueSequence{id: id, registry: reg, Values: values}
}

func (v *ValueSequence) ID() int         { return v.id }
func (v *ValueSequence) Shardable() bool { return false }
func (v *ValueSequence) ElemSize() int   { return 0 }

// Copy allocates a new, currently-empty ValueSequence sharing the same
// registry.
func (v *ValueSequence) Copy() Marshalled {
	return &ValueSequence{id: v.id, registry: v.registry, Values: nil}
}

func (v *ValueSequence) Send(ctx context.Context, t rpc.Transport, dst, tag int) rpc.Request {
	rg := rpc.NewRequestGroup()
	rg.Add(t.SendData(dst, tag, encodeCount(len(v.Values))))
	for _, elem := range v.Values {
		rg.Add(t.SendData(dst, tag, encodeCount(elem.ID())))
		rg.Add(elem.Send(ctx, t, dst, tag))
	}
	return rg
}

func (v *ValueSequence) Recv(ctx context.Context, t rpc.Transport, src, tag int) error {
	countBuf := make([]byte, countWordSize)
	if _, err := t.RecvData(ctx, src, tag, countBuf); err != nil {
		return err
	}
	n := decodeCount(countBuf)

	values := make([]Marshalled, 0, n)
	for i := 0; i < n; i++ {
		idBuf := make([]byte, countWordSize)
		if _, err := t.RecvData(ctx, src, tag, idBuf); err != nil {
			return err
		}
		id := decodeCount(idBuf)

		factory := v.registry.MustLookup(id)
		elem := factory()
		if err := elem.Recv(ctx, t, src, tag); err != nil {
			return err
		}
		values = append(values, elem)
	}
	v.Values = values
	return nil
}
