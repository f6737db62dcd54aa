// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command nbody runs a toy N-body particle exchange: every worker seeds
// its own shard of x/y/z coordinates, registers them as non-shardable
// arrays (the full set is exchanged every round, since force computation
// needs every other particle's position), and runs a fixed number of
// update rounds.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/synchromesh/internal/metrics"
	"github.com/ClusterCockpit/synchromesh/internal/rtconfig"
	"github.com/ClusterCockpit/synchromesh/internal/synchromesh"
	"github.com/ClusterCockpit/synchromesh/pkg/marshal"
	"github.com/ClusterCockpit/synchromesh/pkg/rpc"
	"github.com/ClusterCockpit/synchromesh/pkg/shard"
)

const numParticles = 10
const numRounds = 10

// nbodyUpdateFn echoes each worker's own coordinates back as the global
// snapshot; a real force computation belongs here, but is out of scope.
type nbodyUpdateFn struct{ synchromesh.NoArgsFn }

func (nbodyUpdateFn) Apply(tmp, global map[string]marshal.Marshalled) {
	for _, name := range []string{"x", "y", "z"} {
		src := tmp[name].(*marshal.FixedArray[float64]).Value
		dst := global[name].(*marshal.FixedArray[float64]).Value
		copy(dst, src)
	}
}

func main() {
	flagConfig := flag.String("config", "./config.json", "path to a runtime config file")
	flag.Parse()

	cclog.Init("info", true)

	raw, err := os.ReadFile(*flagConfig)
	if err != nil {
		cclog.Fatalf("nbody: reading config: %v", err)
	}
	cfg, err := rtconfig.Load(json.RawMessage(raw))
	if err != nil {
		cclog.Fatalf("nbody: loading config: %v", err)
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, m.Handler()); err != nil {
				cclog.Errorf("nbody: metrics server: %v", err)
			}
		}()
	}

	functions := synchromesh.NewFunctionRegistry()
	fnID := functions.Register(func() synchromesh.UpdateFn { return nbodyUpdateFn{} })

	pollEvery := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	if pollEvery <= 0 {
		pollEvery = time.Millisecond
	}

	numWorkers := cfg.Last - cfg.First + 1

	run := func(t rpc.Transport) error {
		x := make([]float64, numParticles)
		y := make([]float64, numParticles)
		z := make([]float64, numParticles)

		w := t.ID() - t.First()
		calc := shard.NewCalc(numParticles, 8, numWorkers)
		rng := rand.New(rand.NewSource(int64(t.ID())))
		for i := calc.StartElem(w); i < calc.EndElem(w); i++ {
			x[i] = rng.Float64()*2 - 1
			y[i] = rng.Float64()*2 - 1
			z[i] = rng.Float64()*2 - 1
		}

		sm := synchromesh.New(t, functions, m, pollEvery)
		// Arrays are registered non-shardable: every round exchanges the
		// full particle set, not a per-worker byte range of it.
		sm.RegisterArray("x", marshal.NewFixedArray(0, x), false)
		sm.RegisterArray("y", marshal.NewFixedArray(1, y), false)
		sm.RegisterArray("z", marshal.NewFixedArray(2, z), false)

		ctx := context.Background()
		if err := sm.Init(ctx, fnID); err != nil {
			return err
		}

		for round := 0; round < numRounds; round++ {
			if err := sm.Update(ctx, fnID, false); err != nil {
				return err
			}
			cclog.Infof("nbody: worker %d round %d: x[0]=%.6f y[0]=%.6f z[0]=%.6f", t.ID(), round, x[0], y[0], z[0])
		}

		return sm.Close(ctx)
	}

	if cfg.Transport == "cluster" {
		t, err := rpc.DialCluster(*cfg.Cluster, cfg.Self, cfg.First, cfg.Last)
		if err != nil {
			cclog.Fatalf("nbody: dialing cluster transport: %v", err)
		}
		if err := run(t); err != nil {
			cclog.Fatalf("nbody: %v", err)
		}
		return
	}

	if err := rpc.Run(numWorkers, func(peer *rpc.Simulator) error { return run(peer) }); err != nil {
		cclog.Fatalf("nbody: %v", err)
	}
}
