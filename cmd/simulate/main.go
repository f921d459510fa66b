package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/zeusync/rigidbody/internal/config"
	"github.com/zeusync/rigidbody/internal/core/events/bus"
	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/injector"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config (defaults when empty)")
		duration   = flag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
		bodies     = flag.Int("bodies", 8, "number of bodies in the demo stack")
		stream     = flag.Bool("stream", false, "enable the websocket stream regardless of config")
		replayPath = flag.String("replay", "", "record snapshots to this file regardless of config")
	)
	flag.Parse()

	if err := run(*configPath, *duration, *bodies, *stream, *replayPath); err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
}

func run(configPath string, duration time.Duration, bodies int, stream bool, replayPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if stream {
		cfg.Stream.Enabled = true
	}
	if replayPath != "" {
		cfg.Replay.Enabled = true
		cfg.Replay.Path = replayPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sim, cleanup, err := injector.InitializeSimulation(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := sim.Logger.With(log.String("component", "simulate"))
	sub, err := sim.Bus.Subscribe(bus.TypeCollisionBegin, func(e bus.Event) error {
		logger.Debug("collision", log.Uint64("tick", e.Tick()), log.Any("pair", e.Data()))
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Cancel() }()

	ground, err := populate(sim.Scene.Backend(), bodies)
	if err != nil {
		return err
	}
	var landings atomic.Uint64
	groundSub, err := sim.Bus.SubscribeTopic(bus.BodyTopic(uint32(ground.PhysicsID())), bus.TypeCollisionBegin,
		func(bus.Event) error {
			landings.Add(1)
			return nil
		})
	if err != nil {
		return err
	}
	defer func() { _ = groundSub.Cancel() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	logger.Info("simulation starting",
		log.Int("bodies", bodies),
		log.Bool("stream", cfg.Stream.Enabled),
		log.Bool("replay", cfg.Replay.Enabled),
	)
	if err := sim.Run(ctx); err != nil {
		return err
	}

	tick, simTime := sim.Scene.Tick()
	logger.Info("simulation finished",
		log.Uint64("tick", tick),
		log.Float64("sim_time", simTime),
		log.Uint64("digest", sim.Scene.Digest()),
		log.Uint64("landings", landings.Load()),
	)
	return nil
}
