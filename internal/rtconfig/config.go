// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rtconfig loads and validates the single JSON document a worker
// process is started with: its transport backend, peer id range, and the
// tuning knobs the syncer loop and metrics exporter need.
package rtconfig

import (
	"bytes"
	"encoding/json"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Config is the runtime configuration for one worker process.
type Config struct {
	// Self is this process's peer id; First/Last bound the group [first, last].
	Self  int `json:"self"`
	First int `json:"first"`
	Last  int `json:"last"`

	// Transport selects the Transport backend: "simulator" or "cluster".
	Transport string `json:"transport"`

	// Cluster is required when Transport is "cluster".
	Cluster *rpc.ClusterConfig `json:"cluster,omitempty"`

	// PollIntervalMS throttles the syncer loop's poll-for-kUpdateStart cycle.
	PollIntervalMS int `json:"poll-interval-ms"`

	// MetricsAddr, if non-empty, is the listen address for the Prometheus
	// exporter (e.g. "127.0.0.1:9091"). Empty disables metrics serving.
	MetricsAddr string `json:"metrics-addr,omitempty"`
}

// Schema is the JSON schema Load validates every configuration document
// against before decoding.
const Schema = `{
    "type": "object",
    "description": "Runtime configuration for a synchromesh worker process.",
    "properties": {
        "self": {
            "description": "This process's peer id.",
            "type": "integer",
            "minimum": 0
        },
        "first": {
            "description": "Lowest peer id in the group.",
            "type": "integer",
            "minimum": 0
        },
        "last": {
            "description": "Highest peer id in the group.",
            "type": "integer",
            "minimum": 0
        },
        "transport": {
            "description": "Transport backend: 'simulator' or 'cluster'.",
            "type": "string",
            "enum": ["simulator", "cluster"]
        },
        "cluster": {
            "description": "Cluster transport connection settings (required when transport is 'cluster').",
            "type": "object",
            "properties": {
                "address": { "type": "string" },
                "username": { "type": "string" },
                "password": { "type": "string" },
                "creds-file-path": { "type": "string" }
            },
            "required": ["address"]
        },
        "poll-interval-ms": {
            "description": "Syncer loop poll throttle, in milliseconds.",
            "type": "integer",
            "minimum": 0
        },
        "metrics-addr": {
            "description": "Listen address for the Prometheus exporter; omit to disable.",
            "type": "string"
        }
    },
    "required": ["self", "first", "last", "transport"]
}`

// Validate compiles schema and checks instance against it, aborting the
// process on either a bad schema or a document that fails validation.
func Validate(schema string, instance json.RawMessage) {
	sch, err := jsonschema.CompileString("rtconfig.json", schema)
	if err != nil {
		cclog.Fatalf("rtconfig: invalid schema: %#v", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		cclog.Fatalf("rtconfig: invalid json: %v", err)
	}

	if err := sch.Validate(v); err != nil {
		cclog.Fatalf("rtconfig: validation failed: %#v", err)
	}
}

// Load validates and decodes raw into a Config. Unknown fields are
// rejected: a config typo should fail loudly, not silently no-op.
func Load(raw json.RawMessage) (Config, error) {
	Validate(Schema, raw)

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		cclog.Errorf("rtconfig: decode failed: %s", err.Error())
		return Config{}, err
	}

	if cfg.Transport == "cluster" && cfg.Cluster == nil {
		cclog.Fatalf("rtconfig: transport 'cluster' requires a 'cluster' block")
	}
	if cfg.Last < cfg.First {
		cclog.Fatalf("rtconfig: last (%d) must be >= first (%d)", cfg.Last, cfg.First)
	}
	if cfg.Self < cfg.First || cfg.Self > cfg.Last {
		cclog.Fatalf("rtconfig: self (%d) must be within [first, last] = [%d, %d]", cfg.Self, cfg.First, cfg.Last)
	}

	return cfg, nil
}
