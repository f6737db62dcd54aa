// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package synchromesh implements the synchronization engine: the
// registration table, the background syncer loop, the init/update/
// shutdown protocols, and the state machine that ties them together.
package synchromesh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/uuid"
	"github.com/ClusterCockpit/synchromesh/internal/metrics"
	"github.com/ClusterCockpit/synchromesh/pkg/commstrategy"
	"github.com/ClusterCockpit/synchromesh/pkg/group"
	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
	"github.com/ClusterCockpit/synchromesh/pkg/shard"
	"golang.org/x/time/rate"
)

// varEntry is one row of the registration table: a name, its owned
// Marshalled handle into user storage, and whether updates on it use the
// sharded strategy. Shardable is an explicit registration-time choice,
// independent of the Marshalled variant's own Shardable() (a
// ShardedArray-capable value may still be registered non-shardable).
type varEntry struct {
	name      string
	local     marshal.Marshalled
	shardable bool
}

// Synchromesh is one peer's synchronization engine: a registration table,
// the syncer's tmp/global tables, and the background task servicing
// update rounds from other peers.
type Synchromesh struct {
	t         rpc.Transport
	functions *FunctionRegistry
	metrics   *metrics.Metrics
	pollEvery time.Duration

	mu    sync.Mutex
	state state
	table []*varEntry // registration order irrelevant; iteration always sorted by name
	tmp   map[string]marshal.Marshalled
	global map[string]marshal.Marshalled

	shutdown context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a Synchromesh over t. pollEvery throttles the syncer loop's
// cooperative poll-yield; functions defaults to Default when nil.
func New(t rpc.Transport, functions *FunctionRegistry, m *metrics.Metrics, pollEvery time.Duration) *Synchromesh {
	if functions == nil {
		functions = Default
	}
	if pollEvery <= 0 {
		pollEvery = time.Millisecond
	}
	return &Synchromesh{
		t:         t,
		functions: functions,
		metrics:   m,
		pollEvery: pollEvery,
		state:     stateRegistering,
		tmp:       make(map[string]marshal.Marshalled),
		global:    make(map[string]marshal.Marshalled),
	}
}

// RegisterPod registers a fixed-size value under name. Legal only before
// the first Init call.
func (s *Synchromesh) RegisterPod(name string, v marshal.Marshalled) {
	s.register(name, v, false)
}

// RegisterArray registers an array-shaped value under name, explicitly
// choosing whether update rounds split it across the group with the
// sharded strategy or fan it out whole with the all strategy.
func (s *Synchromesh) RegisterArray(name string, v marshal.Marshalled, shardable bool) {
	s.register(name, v, shardable)
}

func (s *Synchromesh) register(name string, v marshal.Marshalled, shardable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRegistering {
		cclog.Fatalf("synchromesh: register_%s(%q) called after init; registration is frozen", kindOf(shardable), name)
	}
	for _, e := range s.table {
		if e.name == name {
			cclog.Fatalf("synchromesh: %q already registered", name)
		}
	}
	if shardable {
		if _, ok := v.(marshal.RawBytes); !ok {
			cclog.Fatalf("synchromesh: register_array(%q) with shardable=true requires a marshal.RawBytes variant (e.g. ShardedArray), got %T", name, v)
		}
	}
	s.table = append(s.table, &varEntry{name: name, local: v, shardable: shardable})
}

func kindOf(shardable bool) string {
	if shardable {
		return "array"
	}
	return "pod"
}

// sortedTable returns the registration table in the normative lexicographic
// order by name, the ordering both worker and syncer rely on to keep their
// per-variable tag sequences aligned.
func (s *Synchromesh) sortedTable() []*varEntry {
	out := make([]*varEntry, len(s.table))
	copy(out, s.table)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (s *Synchromesh) strategyFor(e *varEntry) commstrategy.Strategy {
	if e.shardable {
		return commstrategy.Sharded{}
	}
	return commstrategy.All{}
}

// peerGroup is every peer in [first, last], the group every collective in
// this engine runs over.
func (s *Synchromesh) peerGroup() group.ProcessGroup {
	return group.Range(s.t.First(), s.t.Last())
}

// Init runs the collective initialization protocol: a registration
// barrier, an initial data exchange that seeds tmp/global, invocation of
// the init function to populate global, and a completion barrier. It then
// starts the background syncer loop. Init must be called exactly once,
// after every register_* call this peer will ever make.
func (s *Synchromesh) Init(ctx context.Context, initFnID int32) error {
	s.mu.Lock()
	if s.state != stateRegistering {
		s.mu.Unlock()
		cclog.Fatalf("synchromesh: Init called twice or after registration was frozen")
	}
	s.state = stateRegistering // still registering until the barrier below completes
	table := s.sortedTable()
	s.mu.Unlock()

	peers := s.peerGroup()

	if err := s.initBarrier(ctx, peers, initFnID); err != nil {
		return err
	}
	if err := s.initDataExchange(ctx, peers, table, initFnID); err != nil {
		return err
	}
	if err := s.initDoneBarrier(ctx, peers); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = stateReady
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	s.shutdown = cancel
	s.wg.Add(1)
	go s.syncerLoop(runCtx)

	return nil
}

func (s *Synchromesh) initBarrier(ctx context.Context, peers group.ProcessGroup, initFnID int32) error {
	ep := group.NewEndpoint(peers, rpc.TagInitBarrier)
	out := encodeStruct(initOptions{InitFnID: initFnID})
	rg := rpc.NewRequestGroup()
	for i := 0; i < peers.Count(); i++ {
		rg.Add(s.t.SendData(peers.At(i), ep.Tag(), out))
	}
	rg.Wait()

	size := structSize(initOptions{})
	for i := 0; i < peers.Count(); i++ {
		buf := make([]byte, size)
		if _, err := s.t.RecvData(ctx, peers.At(i), ep.Tag(), buf); err != nil {
			return fmt.Errorf("synchromesh: init barrier recv from %d: %w", peers.At(i), err)
		}
	}
	return nil
}

// initDataExchange broadcasts this peer's local payload for every
// registered variable to the whole group, then receives one full set per
// peer; the first set received for each variable seeds tmp/global via
// Copy and invokes the init function, the remaining sets are drained to
// keep the wire discipline symmetric.
func (s *Synchromesh) initDataExchange(ctx context.Context, peers group.ProcessGroup, table []*varEntry, initFnID int32) error {
	for idx, e := range table {
		tag := rpc.TagInitData + idx
		ep := group.NewEndpoint(peers, tag)
		commstrategy.All{}.Send(ctx, s.t, ep, e.local).Wait()
	}

	seeded := false
	for i := 0; i < peers.Count(); i++ {
		peer := peers.At(i)
		for idx, e := range table {
			tag := rpc.TagInitData + idx
			if !seeded {
				tmp := e.local.Copy()
				if err := tmp.Recv(ctx, s.t, peer, tag); err != nil {
					return fmt.Errorf("synchromesh: init data recv %q from %d: %w", e.name, peer, err)
				}
				s.mu.Lock()
				s.tmp[e.name] = tmp
				s.global[e.name] = e.local.Copy()
				s.mu.Unlock()
			} else {
				discard := e.local.Copy()
				if err := discard.Recv(ctx, s.t, peer, tag); err != nil {
					return fmt.Errorf("synchromesh: init data drain %q from %d: %w", e.name, peer, err)
				}
			}
		}
		if !seeded {
			fn := s.functions.New(initFnID)
			s.mu.Lock()
			fn.Apply(s.tmp, s.global)
			s.mu.Unlock()
			seeded = true
		}
	}
	return nil
}

func (s *Synchromesh) initDoneBarrier(ctx context.Context, peers group.ProcessGroup) error {
	ep := group.NewEndpoint(peers, rpc.TagInitDone)
	rg := rpc.NewRequestGroup()
	marker := []byte{1}
	for i := 0; i < peers.Count(); i++ {
		rg.Add(s.t.SendData(peers.At(i), ep.Tag(), marker))
	}
	rg.Wait()

	for i := 0; i < peers.Count(); i++ {
		buf := make([]byte, 1)
		if _, err := s.t.RecvData(ctx, peers.At(i), ep.Tag(), buf); err != nil {
			return fmt.Errorf("synchromesh: init done recv from %d: %w", peers.At(i), err)
		}
	}
	return nil
}

// Update runs one synchronization round: it broadcasts a kUpdateStart
// control record and this peer's bound args to every peer, sends every
// non-shardable entry of its local table whole to every peer and every
// shardable entry as one fragment per peer, then blocks for this peer's
// own syncer to ship back the resulting global snapshot into local.
func (s *Synchromesh) Update(ctx context.Context, updateFnID int32, waitForAll bool, args ...marshal.Marshalled) error {
	if waitForAll {
		if s.metrics != nil {
			s.metrics.WaitForAllRejected.Inc()
		}
		cclog.Fatalf("synchromesh: wait_for_all=true is not implemented; its collective-barrier semantics were never settled upstream")
	}

	s.mu.Lock()
	if s.state != stateReady {
		s.mu.Unlock()
		cclog.Fatalf("synchromesh: Update called while engine is in state %s, not READY", s.state)
	}
	s.state = stateUpdating
	table := s.sortedTable()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RoundsStarted.Inc()
		s.metrics.InFlight.Inc()
	}
	start := time.Now()
	defer func() {
		s.mu.Lock()
		s.state = stateReady
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.InFlight.Dec()
		}
	}()

	peers := s.peerGroup()
	opts := syncOptions{WaitForAll: false, UpdateFnID: updateFnID, WorkerID: int32(s.t.ID())}
	startEP := group.NewEndpoint(peers, rpc.TagUpdateStart)
	rg := rpc.NewRequestGroup()
	out := encodeStruct(opts)
	for i := 0; i < peers.Count(); i++ {
		rg.Add(s.t.SendData(peers.At(i), startEP.Tag(), out))
	}
	rg.Wait()

	idx := 0
	for _, a := range args {
		ep := group.NewEndpoint(peers, rpc.TagWorkerData+idx)
		commstrategy.All{}.Send(ctx, s.t, ep, a).Wait()
		idx++
	}
	for _, e := range table {
		ep := group.NewEndpoint(peers, rpc.TagWorkerData+idx)
		s.strategyFor(e).Send(ctx, s.t, ep, e.local).Wait()
		idx++
	}

	for i, e := range table {
		tag := rpc.TagSyncerData + i
		if err := e.local.Recv(ctx, s.t, s.t.ID(), tag); err != nil {
			return fmt.Errorf("synchromesh: update recv global %q: %w", e.name, err)
		}
	}

	if s.metrics != nil {
		s.metrics.RoundsCompleted.Inc()
		s.metrics.RoundLatency.Observe(time.Since(start).Seconds())
	}
	return nil
}

// syncerLoop is the background task servicing update rounds from any
// peer. It polls (any-worker, kUpdateStart), cooperatively yielding via a
// token-bucket rate.Limiter (one token per pollEvery) between unsuccessful
// polls rather than a bare busy-spin.
func (s *Synchromesh) syncerLoop(ctx context.Context) {
	defer s.wg.Done()
	limiter := rate.NewLimiter(rate.Every(s.pollEvery), 1)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !s.t.Poll(rpc.AnyWorker, rpc.TagUpdateStart) {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			continue
		}

		if err := s.serviceOneRound(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			cclog.Errorf("synchromesh: syncer round failed: %v", err)
		}
	}
}

func (s *Synchromesh) serviceOneRound(ctx context.Context) error {
	size := structSize(syncOptions{})
	buf := make([]byte, size)
	requester, err := s.t.RecvData(ctx, rpc.AnyWorker, rpc.TagUpdateStart, buf)
	if err != nil {
		return err
	}
	var opts syncOptions
	decodeStruct(buf, &opts)

	if opts.WaitForAll {
		if s.metrics != nil {
			s.metrics.WaitForAllRejected.Inc()
		}
		cclog.Fatalf("synchromesh: received wait_for_all=true from peer %d; not implemented", requester)
	}

	corr := uuid.New().String()
	cclog.Debugf("synchromesh: request %s servicing round from peer %d, update-fn %d", corr, requester, opts.UpdateFnID)

	fn := s.functions.New(opts.UpdateFnID)
	consumed, err := fn.ReadValues(ctx, s.t, requester, rpc.TagWorkerData)
	if err != nil {
		return fmt.Errorf("synchromesh: read_values from %d: %w", requester, err)
	}

	s.mu.Lock()
	table := s.sortedTable()
	s.mu.Unlock()

	peers := s.peerGroup()
	myShard := peers.IndexOf(s.t.ID())

	for idx, e := range table {
		tag := rpc.TagWorkerData + consumed + idx
		if _, ok := s.tmp[e.name]; !ok {
			s.mu.Lock()
			s.tmp[e.name] = e.local.Copy()
			s.mu.Unlock()
		}
		if e.shardable {
			// The sender used Sharded.Send to scatter one fragment per
			// peer in the same group; recover only this peer's own
			// fragment, raw and unframed, at its group-relative offset.
			rb := s.tmp[e.name].(marshal.RawBytes)
			calc := shard.NewCalc(rb.NumElems(), e.local.ElemSize(), peers.Count())
			frag := make([]byte, calc.NumBytes(myShard))
			if len(frag) > 0 {
				if _, err := s.t.RecvData(ctx, requester, tag, frag); err != nil {
					return fmt.Errorf("synchromesh: recv shard %q from %d: %w", e.name, requester, err)
				}
			}
			rb.SetRange(calc.StartByte(myShard), frag)
			continue
		}
		if err := s.tmp[e.name].Recv(ctx, s.t, requester, tag); err != nil {
			return fmt.Errorf("synchromesh: recv %q from %d: %w", e.name, requester, err)
		}
	}

	s.mu.Lock()
	fn.Apply(s.tmp, s.global)
	s.mu.Unlock()

	for idx, e := range table {
		tag := rpc.TagSyncerData + idx
		s.global[e.name].Send(ctx, s.t, requester, tag).Wait()
	}
	return nil
}

// Close executes the shutdown barrier (send-all + recv-all on kBarrier),
// stops the syncer loop, and joins it. Single-use: a second call is a
// no-op.
func (s *Synchromesh) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateDone || s.state == stateStopping {
		s.mu.Unlock()
		return nil
	}
	s.state = stateStopping
	s.mu.Unlock()

	peers := s.peerGroup()
	ep := group.NewEndpoint(peers, rpc.TagBarrier)
	rg := rpc.NewRequestGroup()
	marker := []byte{1}
	for i := 0; i < peers.Count(); i++ {
		rg.Add(s.t.SendData(peers.At(i), ep.Tag(), marker))
	}
	rg.Wait()
	for i := 0; i < peers.Count(); i++ {
		buf := make([]byte, 1)
		if _, err := s.t.RecvData(ctx, peers.At(i), ep.Tag(), buf); err != nil {
			return fmt.Errorf("synchromesh: shutdown barrier recv from %d: %w", peers.At(i), err)
		}
	}

	if s.shutdown != nil {
		s.shutdown()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = stateDone
	s.mu.Unlock()
	return nil
}
