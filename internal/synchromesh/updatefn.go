// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synchromesh

import (
	"context"
	"fmt"
	"sync"

	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

// UpdateFn is a user-supplied callable invoked by the syncer once per
// update round: Apply folds tmp (this round's incoming payload) into
// global (the syncer's authoritative copy). ReadValues pulls any bound
// parameters the calling worker supplied ahead of the registered
// variables, returning how many wire messages it consumed so the syncer
// can continue reading the registered table at the right tag.
type UpdateFn interface {
	ReadValues(ctx context.Context, t rpc.Transport, src, baseTag int) (consumed int, err error)
	Apply(tmp, global map[string]marshal.Marshalled)
}

// UpdateFnFactory produces a fresh UpdateFn instance per invocation; the
// syncer constructs a new one for every received round, exactly as
// update-function registries work over at-most-once decode paths
// elsewhere in this runtime.
type UpdateFnFactory func() UpdateFn

// FunctionRegistry assigns dense integer ids to update functions in
// registration-call order, process-wide, matching spec's "Update-function
// registry (process-wide)... ids are dense, assigned in static-registration
// order."
type FunctionRegistry struct {
	mu  sync.Mutex
	fns []UpdateFnFactory
}

// NewFunctionRegistry builds an empty FunctionRegistry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{}
}

// Register appends factory and returns its dense id (0, 1, 2, ...). Two
// processes running the same binary must call Register in the same order
// to observe identical ids for the same function.
func (r *FunctionRegistry) Register(factory UpdateFnFactory) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := int32(len(r.fns))
	r.fns = append(r.fns, factory)
	return id
}

// New constructs a fresh UpdateFn instance for id, panicking if id is
// unknown -- an unregistered update-function id is a protocol violation.
func (r *FunctionRegistry) New(id int32) UpdateFn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || int(id) >= len(r.fns) {
		panic(fmt.Sprintf("synchromesh: unknown update-function id %d", id))
	}
	return r.fns[id]()
}

// Default is the process-wide update-function registry used when a
// Synchromesh instance is not given its own.
var Default = NewFunctionRegistry()

// NoArgsFn is an embeddable UpdateFn base for functions that bind no
// parameters ahead of the registered variables; ReadValues is then a
// no-op that consumes nothing.
type NoArgsFn struct{}

func (NoArgsFn) ReadValues(ctx context.Context, t rpc.Transport, src, baseTag int) (int, error) {
	return 0, nil
}
