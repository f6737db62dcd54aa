// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSimulatorConfig(t *testing.T) {
	raw := json.RawMessage(`{
        "self": 0, "first": 0, "last": 3,
        "transport": "simulator",
        "poll-interval-ms": 5
    }`)

	cfg, err := Load(raw)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Self)
	require.Equal(t, 3, cfg.Last)
	require.Equal(t, "simulator", cfg.Transport)
	require.Nil(t, cfg.Cluster)
}

func TestLoadClusterConfig(t *testing.T) {
	raw := json.RawMessage(`{
        "self": 1, "first": 0, "last": 7,
        "transport": "cluster",
        "cluster": {"address": "nats://localhost:4222"}
    }`)

	cfg, err := Load(raw)
	require.NoError(t, err)
	require.NotNil(t, cfg.Cluster)
	require.Equal(t, "nats://localhost:4222", cfg.Cluster.Address)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	raw := json.RawMessage(`{
        "self": 0, "first": 0, "last": 0, "transport": "simulator",
        "bogus-field": true
    }`)
	_, err := Load(raw)
	require.Error(t, err)
}
