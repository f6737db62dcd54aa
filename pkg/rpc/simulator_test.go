// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulatorPointToPointRoundTrip(t *testing.T) {
	err := Run(2, func(peer *Simulator) error {
		if peer.ID() == 0 {
			req := peer.SendData(1, 42, []byte("hello"))
			req.Wait()
		} else {
			buf := make([]byte, len("hello"))
			src, err := peer.RecvData(context.Background(), 0, 42, buf)
			if err != nil {
				return err
			}
			require.Equal(t, 0, src)
			require.Equal(t, "hello", string(buf))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSimulatorDoesNotCrossSources(t *testing.T) {
	err := Run(3, func(peer *Simulator) error {
		switch peer.ID() {
		case 0:
			peer.SendData(2, 7, []byte("from-0")).Wait()
		case 1:
			peer.SendData(2, 7, []byte("from-1")).Wait()
		case 2:
			buf := make([]byte, len("from-1"))
			src, err := peer.RecvData(context.Background(), 1, 7, buf)
			if err != nil {
				return err
			}
			require.Equal(t, 1, src)
			require.Equal(t, "from-1", string(buf))

			buf2 := make([]byte, len("from-0"))
			src2, err := peer.RecvData(context.Background(), 0, 7, buf2)
			if err != nil {
				return err
			}
			require.Equal(t, 0, src2)
			require.Equal(t, "from-0", string(buf2))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSimulatorAnyWorkerMatchesFirstAvailable(t *testing.T) {
	err := Run(3, func(peer *Simulator) error {
		switch peer.ID() {
		case 1:
			peer.SendData(0, 9, []byte("from-1")).Wait()
		case 2:
			// peer 2 sends nothing, so peer 1's message is the only one
			// queued on tag 9
		case 0:
			buf := make([]byte, len("from-1"))
			for {
				if peer.Poll(AnyWorker, 9) {
					break
				}
			}
			src, err := peer.RecvData(context.Background(), AnyWorker, 9, buf)
			if err != nil {
				return err
			}
			require.Equal(t, 1, src)
			require.Equal(t, "from-1", string(buf))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSimulatorPollNeverBlocksAndIsAccurate(t *testing.T) {
	err := Run(2, func(peer *Simulator) error {
		if peer.ID() == 0 {
			// Nobody ever sends on tag 999, so Poll must report false
			// regardless of scheduling.
			require.False(t, peer.Poll(1, 999))

			buf := make([]byte, 1)
			_, rerr := peer.RecvData(context.Background(), 1, 5, buf)
			require.NoError(t, rerr)
			require.True(t, peer.Poll(1, 999) == false)
		} else {
			peer.SendData(0, 5, []byte("x")).Wait()
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRunRejectsZeroWorkers(t *testing.T) {
	err := Run(0, func(*Simulator) error { return nil })
	require.Error(t, err)
}
