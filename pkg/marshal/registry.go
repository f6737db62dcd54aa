// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marshal

import (
	"fmt"
	"sync"
)

// firstRegistryID is where the monotonic id counter starts, per spec §4.4.
const firstRegistryID = 1000

// Factory produces a fresh, empty Marshalled instance of one variant, used
// by the type-id discovery path: the receiver reads an id it does not know
// a priori, looks up the factory, and dispatches Recv on the instance it
// builds.
type Factory func() Marshalled

// Registry assigns stable integer ids to marshalled variants via an
// explicit, caller-ordered Register call rather than static-initialization
// side effects (spec §9's design note: static-init ordering across
// translation units is a hazard the Go reimplementation removes). Two
// processes running the same binary must call Register in the same order
// for the same set of variants to observe identical ids -- this holds
// whenever both peers run identical bootstrap code, the same discipline the
// original relied on for deterministic static-init order.
type Registry struct {
	mu     sync.Mutex
	byName map[string]int
	byID   map[int]Factory
	nextID int
}

// NewRegistry builds an empty Registry whose ids start at 1000.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int),
		byID:   make(map[int]Factory),
		nextID: firstRegistryID,
	}
}

// Register assigns (or returns the existing) id for name and records its
// factory. Calling Register twice for the same name returns the same id
// without creating a second entry.
func (r *Registry) Register(name string, factory Factory) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.byName[name] = id
	r.byID[id] = factory
	return id
}

// Lookup returns the factory registered for id, if any.
func (r *Registry) Lookup(id int) (Factory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byID[id]
	return f, ok
}

// MustLookup is Lookup, panicking with a descriptive message on an unknown
// id -- an unknown registry id is a protocol violation per spec §7.1.
func (r *Registry) MustLookup(id int) Factory {
	f, ok := r.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("marshal: unknown registry id %d", id))
	}
	return f
}

// Default is the process-wide registry used when callers do not construct
// their own. Mirrors the update-function registry in internal/synchromesh,
// which is also process-wide and populated once, before the transport
// starts.
var Default = NewRegistry()
