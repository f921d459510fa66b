// Package replay records scene snapshots as zstd compressed JSON lines and
// reads them back.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics/scene"
)

type Options struct {
	Path string
	// Level is the zstd encoder level, 1 (fastest) to 4 (best compression).
	Level int
	// EveryTicks keeps one snapshot out of every N ticks.
	EveryTicks int
}

func DefaultOptions() Options {
	return Options{Path: "replay.jsonl.zst", Level: 2, EveryTicks: 1}
}

func (o Options) Validate() error {
	switch {
	case o.Path == "":
		return fmt.Errorf("%w: path is empty", ErrInvalidOptions)
	case o.Level < int(zstd.SpeedFastest) || o.Level > int(zstd.SpeedBestCompression):
		return fmt.Errorf("%w: level %d out of range", ErrInvalidOptions, o.Level)
	case o.EveryTicks < 1:
		return fmt.Errorf("%w: every_ticks must be at least 1", ErrInvalidOptions)
	}
	return nil
}

// Writer appends one JSON line per recorded snapshot. It implements
// scene.Observer; write failures are logged and kept for Err.
type Writer struct {
	opts   Options
	logger log.Log

	mu      sync.Mutex
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	seen    uint64
	written uint64
	err     error
}

// Create truncates opts.Path and opens it for recording.
func Create(opts Options, logger log.Log) (*Writer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}
	}
	f, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.EncoderLevel(opts.Level)))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("replay: %w", err)
	}
	return &Writer{
		opts:   opts,
		logger: log.OrNop(logger).With(log.String("component", "replay"), log.String("path", opts.Path)),
		f:      f,
		enc:    enc,
		w:      bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

func (w *Writer) OnTick(snapshot scene.Snapshot) {
	if err := w.Record(snapshot); err != nil {
		w.logger.Error("failed to record snapshot", log.Uint64("tick", snapshot.Tick), log.Error(err))
	}
}

// Record writes the snapshot unless it falls between EveryTicks samples.
func (w *Writer) Record(snapshot scene.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return ErrWriterClosed
	}
	w.seen++
	if (w.seen-1)%uint64(w.opts.EveryTicks) != 0 {
		return nil
	}

	b, err := json.Marshal(snapshot)
	if err != nil {
		return w.fail(err)
	}
	if _, err := w.w.Write(b); err != nil {
		return w.fail(err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return w.fail(err)
	}
	w.written++
	return nil
}

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return err
}

// Written is the number of snapshots recorded so far.
func (w *Writer) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Err returns the first write failure.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}

	flushErr := w.w.Flush()
	encErr := w.enc.Close()
	fileErr := w.f.Close()
	w.w, w.enc, w.f = nil, nil, nil

	w.logger.Info("replay closed", log.Uint64("snapshots", w.written))
	for _, err := range []error{flushErr, encErr, fileErr} {
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
	}
	return nil
}
