// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"golang.org/x/sync/errgroup"
)

// Simulator is an in-process, thread-backed Transport used for tests and
// local development. It pretends to run a cluster using one goroutine per
// peer, communicating through per-destination mailboxes. SendData is
// synchronous (its Request is already done on return); RecvData busy-yields
// while draining mailboxes, matching spec §4.1's description of the
// simulator backend.
type Simulator struct {
	id    int
	first int
	last  int

	mailboxes *mailboxSet
}

// mailboxSet is shared by every peer spawned from a single Run call.
// Packets are keyed by (dst, src, tag) so that a recv for a concrete src
// never observes a packet sent by a different peer, while AnyWorker/AnyTag
// receives can still scan across the other dimensions.
type mailboxSet struct {
	mu   sync.Mutex
	data map[int]map[int]map[int][][]byte // dst -> src -> tag -> FIFO queue
}

func newMailboxSet() *mailboxSet {
	return &mailboxSet{data: make(map[int]map[int]map[int][][]byte)}
}

func (m *mailboxSet) push(dst, src, tag int, packet []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[dst] == nil {
		m.data[dst] = make(map[int]map[int][][]byte)
	}
	if m.data[dst][src] == nil {
		m.data[dst][src] = make(map[int][][]byte)
	}
	m.data[dst][src][tag] = append(m.data[dst][src][tag], packet)
}

// pop removes and returns the first queued packet addressed to dst matching
// src/tag (either of which may be the Any sentinel). When src is AnyWorker,
// candidate sources are scanned in ascending numeric order, matching the
// "polls the group in index order" rule spec §4.5 gives CommStrategy's
// AnyComm.
func (m *mailboxSet) pop(dst, src, tag int) (packet []byte, matchedSrc int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySrc := m.data[dst]
	if bySrc == nil {
		return nil, 0, false
	}

	if src != AnyWorker {
		return popTag(bySrc[src], tag, src)
	}

	srcs := make([]int, 0, len(bySrc))
	for s := range bySrc {
		srcs = append(srcs, s)
	}
	sort.Ints(srcs)
	for _, s := range srcs {
		if packet, matched, ok := popTag(bySrc[s], tag, s); ok {
			return packet, matched, true
		}
	}
	return nil, 0, false
}

func popTag(byTag map[int][][]byte, tag, src int) ([]byte, int, bool) {
	if byTag == nil {
		return nil, 0, false
	}
	if tag != AnyTag {
		q := byTag[tag]
		if len(q) == 0 {
			return nil, 0, false
		}
		byTag[tag] = q[1:]
		return q[0], src, true
	}
	for t, q := range byTag {
		if len(q) > 0 {
			byTag[t] = q[1:]
			return q[0], src, true
		}
	}
	return nil, 0, false
}

func (m *mailboxSet) poll(dst, src, tag int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySrc := m.data[dst]
	if bySrc == nil {
		return false
	}
	check := func(byTag map[int][][]byte) bool {
		if byTag == nil {
			return false
		}
		if tag != AnyTag {
			return len(byTag[tag]) > 0
		}
		for _, q := range byTag {
			if len(q) > 0 {
				return true
			}
		}
		return false
	}
	if src != AnyWorker {
		return check(bySrc[src])
	}
	for _, byTag := range bySrc {
		if check(byTag) {
			return true
		}
	}
	return false
}

// Run constructs n simulated peers sharing one mailbox set and invokes
// fn(peer_i) on each concurrently, joining all before returning. The first
// error from any peer is returned; all peers are still joined.
func Run(n int, fn func(*Simulator) error) error {
	if n < 1 {
		return fmt.Errorf("rpc: Run requires n >= 1, got %d", n)
	}
	mbx := newMailboxSet()
	g := new(errgroup.Group)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			peer := &Simulator{id: i, first: 0, last: n - 1, mailboxes: mbx}
			return fn(peer)
		})
	}
	return g.Wait()
}

func (s *Simulator) First() int      { return s.first }
func (s *Simulator) Last() int       { return s.last }
func (s *Simulator) ID() int         { return s.id }
func (s *Simulator) NumWorkers() int { return s.last - s.first + 1 }

// SendData is synchronous for the simulator: the packet is enqueued before
// this call returns, so the Request is already complete.
func (s *Simulator) SendData(dst, tag int, data []byte) Request {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mailboxes.push(dst, s.id, tag, cp)
	return Completed()
}

// RecvData blocks, busy-yielding between unsuccessful polls, until a
// matching packet is available, then copies it into out. A length mismatch
// against the matched packet is a protocol violation and is fatal.
func (s *Simulator) RecvData(ctx context.Context, src, tag int, out []byte) (int, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		if packet, matchedSrc, ok := s.mailboxes.pop(s.id, src, tag); ok {
			if len(packet) != len(out) {
				cclog.Fatalf("rpc: recv length mismatch: expected %d bytes, got %d", len(out), len(packet))
			}
			copy(out, packet)
			return matchedSrc, nil
		}
		runtime.Gosched()
	}
}

// Poll reports whether a matching message is already queued, without
// consuming it. It must never block.
func (s *Simulator) Poll(src, tag int) bool {
	return s.mailboxes.poll(s.id, src, tag)
}
