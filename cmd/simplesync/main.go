// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command simplesync is a minimal smoke-test binary: it registers one
// array and one fixed-size record, runs update rounds (one by default, set
// with -rounds) whose update function just logs which variables arrived,
// and exits. It mirrors the simplest seed
// scenario this runtime is built against.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/synchromesh/internal/metrics"
	"github.com/ClusterCockpit/synchromesh/internal/rtconfig"
	"github.com/ClusterCockpit/synchromesh/internal/synchromesh"
	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
)

type abc struct {
	A, B, C int32
}

// simpleUpdateFn just logs which variables arrived in tmp this round,
// matching the original smoke test's update function.
type simpleUpdateFn struct{ synchromesh.NoArgsFn }

func (simpleUpdateFn) Apply(tmp, global map[string]marshal.Marshalled) {
	for name := range tmp {
		cclog.Debugf("simplesync: processing %q", name)
	}
}

func main() {
	flagConfig := flag.String("config", "./config.json", "path to a runtime config file")
	flagRounds := flag.Int("rounds", 1, "number of update rounds to run")
	flag.Parse()

	cclog.Init("info", true)

	raw, err := os.ReadFile(*flagConfig)
	if err != nil {
		cclog.Fatalf("simplesync: reading config: %v", err)
	}
	cfg, err := rtconfig.Load(json.RawMessage(raw))
	if err != nil {
		cclog.Fatalf("simplesync: loading config: %v", err)
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, m.Handler()); err != nil {
				cclog.Errorf("simplesync: metrics server: %v", err)
			}
		}()
	}

	functions := synchromesh.NewFunctionRegistry()
	fnID := functions.Register(func() synchromesh.UpdateFn { return simpleUpdateFn{} })

	pollEvery := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	if pollEvery <= 0 {
		pollEvery = time.Millisecond
	}

	run := func(t rpc.Transport) error {
		var test1 [10]float32
		var test2 abc
		test2.A = int32(t.ID())

		sm := synchromesh.New(t, functions, m, pollEvery)
		sm.RegisterArray("test_1", marshal.NewFixedArray(0, test1[:]), false)
		sm.RegisterPod("test_2", marshal.NewScalar(1, &test2))

		ctx := context.Background()
		if err := sm.Init(ctx, fnID); err != nil {
			return err
		}
		for i := 0; i < *flagRounds; i++ {
			if err := sm.Update(ctx, fnID, false); err != nil {
				return err
			}
		}
		return sm.Close(ctx)
	}

	if cfg.Transport == "cluster" {
		t, err := rpc.DialCluster(*cfg.Cluster, cfg.Self, cfg.First, cfg.Last)
		if err != nil {
			cclog.Fatalf("simplesync: dialing cluster transport: %v", err)
		}
		if err := run(t); err != nil {
			cclog.Fatalf("simplesync: %v", err)
		}
		return
	}

	n := cfg.Last - cfg.First + 1
	if err := rpc.Run(n, func(peer *rpc.Simulator) error { return run(peer) }); err != nil {
		cclog.Fatalf("simplesync: %v", err)
	}
}
