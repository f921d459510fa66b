// Package config loads the simulator configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/backend"
	"github.com/zeusync/rigidbody/internal/core/physics/scene"
	"github.com/zeusync/rigidbody/internal/persistence/replay"
	"github.com/zeusync/rigidbody/internal/server"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Physics PhysicsConfig `yaml:"physics"`
	Stream  StreamConfig  `yaml:"stream"`
	Replay  ReplayConfig  `yaml:"replay"`
}

type LogConfig struct {
	Level log.Level `yaml:"level"`
}

type PhysicsConfig struct {
	Backend            string     `yaml:"backend"`
	TickRateHz         float64    `yaml:"tick_rate_hz"`
	MaxStepsPerFrame   int        `yaml:"max_steps_per_frame"`
	Gravity            [3]float64 `yaml:"gravity"`
	SleepTicks         int        `yaml:"sleep_ticks"`
	SleepThreshold     float64    `yaml:"sleep_threshold"`
	PositionIterations uint32     `yaml:"position_iterations"`
	VelocityIterations uint32     `yaml:"velocity_iterations"`
	MaxAngularVelocity float64    `yaml:"max_angular_velocity"`
	Restitution        float64    `yaml:"restitution"`
}

type StreamConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ListenAddr   string        `yaml:"listen_addr"`
	Path         string        `yaml:"path"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// SendBuffer is the number of snapshots queued per client before the
	// client is dropped.
	SendBuffer int `yaml:"send_buffer"`
}

type ReplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// Level is the zstd encoder level, 1 (fastest) to 4 (best).
	Level int `yaml:"level"`
	// EveryTicks records one snapshot out of every N ticks.
	EveryTicks int `yaml:"every_ticks"`
}

func Default() Config {
	opts := backend.DefaultOptions()
	return Config{
		Log: LogConfig{Level: log.LevelInfo},
		Physics: PhysicsConfig{
			Backend:            "reference",
			TickRateHz:         60,
			MaxStepsPerFrame:   5,
			Gravity:            [3]float64{opts.Gravity[0], opts.Gravity[1], opts.Gravity[2]},
			SleepTicks:         opts.SleepTicks,
			SleepThreshold:     opts.SleepThreshold,
			PositionIterations: opts.PositionIterations,
			VelocityIterations: opts.VelocityIterations,
			MaxAngularVelocity: opts.MaxAngularVelocity,
		},
		Stream: StreamConfig{
			ListenAddr:   "127.0.0.1:8090",
			Path:         "/stream",
			WriteTimeout: 2 * time.Second,
			SendBuffer:   64,
		},
		Replay: ReplayConfig{
			Path:       "replay.jsonl.zst",
			Level:      2,
			EveryTicks: 1,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	p := c.Physics
	if p.Backend == "" {
		errs = append(errs, fmt.Errorf("%w: physics.backend is empty", ErrInvalid))
	}
	if p.TickRateHz <= 0 {
		errs = append(errs, fmt.Errorf("%w: physics.tick_rate_hz must be positive", ErrInvalid))
	}
	if p.MaxStepsPerFrame <= 0 {
		errs = append(errs, fmt.Errorf("%w: physics.max_steps_per_frame must be positive", ErrInvalid))
	}
	if p.SleepTicks <= 0 {
		errs = append(errs, fmt.Errorf("%w: physics.sleep_ticks must be positive", ErrInvalid))
	}
	if p.PositionIterations == 0 || p.VelocityIterations == 0 {
		errs = append(errs, fmt.Errorf("%w: physics solver iterations must be positive", ErrInvalid))
	}
	if p.Restitution < 0 || p.Restitution > 1 {
		errs = append(errs, fmt.Errorf("%w: physics.restitution must be within [0, 1]", ErrInvalid))
	}
	if c.Stream.Enabled {
		if c.Stream.ListenAddr == "" {
			errs = append(errs, fmt.Errorf("%w: stream.listen_addr is empty", ErrInvalid))
		}
		if err := c.Stream.ServerConfig().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: stream: %w", ErrInvalid, err))
		}
	}
	if c.Replay.Enabled {
		if err := c.Replay.Options().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: replay: %w", ErrInvalid, err))
		}
	}
	return errors.Join(errs...)
}

// BackendKind is the configured backend tag.
func (p PhysicsConfig) BackendKind() physics.BackendKind {
	return physics.BackendKind(p.Backend)
}

func (p PhysicsConfig) BackendOptions(logger log.Log) backend.Options {
	return backend.Options{
		Gravity:            mgl64.Vec3(p.Gravity),
		SleepTicks:         p.SleepTicks,
		SleepThreshold:     p.SleepThreshold,
		PositionIterations: p.PositionIterations,
		VelocityIterations: p.VelocityIterations,
		MaxAngularVelocity: p.MaxAngularVelocity,
		Restitution:        p.Restitution,
		Logger:             logger,
	}
}

func (p PhysicsConfig) SceneConfig() scene.Config {
	return scene.Config{
		TickRate:         p.TickRateHz,
		MaxStepsPerFrame: p.MaxStepsPerFrame,
	}
}

func (s StreamConfig) ServerConfig() server.Config {
	return server.Config{
		ListenAddr:   s.ListenAddr,
		Path:         s.Path,
		WriteTimeout: s.WriteTimeout,
		SendBuffer:   s.SendBuffer,
	}
}

func (r ReplayConfig) Options() replay.Options {
	return replay.Options{
		Path:       r.Path,
		Level:      r.Level,
		EveryTicks: r.EveryTicks,
	}
}
