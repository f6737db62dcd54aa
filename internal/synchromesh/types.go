// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synchromesh

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// state is the engine's lifecycle: REGISTERING -> READY -> READY* ->
// STOPPING -> DONE, per spec.
type state int

const (
	stateRegistering state = iota
	stateReady
	stateUpdating // "READY*": an update round is in flight
	stateStopping
	stateDone
)

func (s state) String() string {
	switch s {
	case stateRegistering:
		return "REGISTERING"
	case stateReady:
		return "READY"
	case stateUpdating:
		return "READY*"
	case stateStopping:
		return "STOPPING"
	case stateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// initOptions is the control record exchanged on the init barrier: every
// peer sends its chosen init function id to every peer, itself included,
// then waits for one from each of them, so no peer can start the data
// exchange before all peers
// have finished registering.
type initOptions struct {
	InitFnID int32
}

// syncOptions is the control record a worker sends on kUpdateStart to
// announce one update round.
type syncOptions struct {
	WaitForAll bool
	UpdateFnID int32
	WorkerID   int32
}

// These control records are internal plumbing, not user-registered
// Marshalled values, so they are framed directly rather than through the
// registry-aware marshal package.

func encodeStruct(v any) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.NativeEndian, v); err != nil {
		panic(fmt.Sprintf("synchromesh: %T is not fixed-size: %v", v, err))
	}
	return buf.Bytes()
}

func decodeStruct(data []byte, out any) {
	if err := binary.Read(bytes.NewReader(data), binary.NativeEndian, out); err != nil {
		panic(fmt.Sprintf("synchromesh: cannot decode into %T: %v", out, err))
	}
}

func structSize(v any) int {
	n := binary.Size(v)
	if n < 0 {
		panic(fmt.Sprintf("synchromesh: %T is not fixed-size", v))
	}
	return n
}
