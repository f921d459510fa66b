package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/zeusync/rigidbody/internal/core/physics/scene"
)

// Reader iterates the snapshots of a replay file in recording order.
type Reader struct {
	f    *os.File
	dec  *zstd.Decoder
	sc   *bufio.Scanner
	line int
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.f = f
	return r, nil
}

// NewReader decodes a replay stream from src. Close does not close src.
func NewReader(src io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Reader{dec: dec, sc: sc}, nil
}

// Next returns the following snapshot, or io.EOF after the last one.
func (r *Reader) Next() (scene.Snapshot, error) {
	for r.sc.Scan() {
		r.line++
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap scene.Snapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return scene.Snapshot{}, fmt.Errorf("replay line %d: %w", r.line, err)
		}
		return snap, nil
	}
	if err := r.sc.Err(); err != nil {
		return scene.Snapshot{}, fmt.Errorf("replay line %d: %w", r.line+1, err)
	}
	return scene.Snapshot{}, io.EOF
}

// Each calls fn for every remaining snapshot and stops at the first error.
func (r *Reader) Each(fn func(scene.Snapshot) error) error {
	for {
		snap, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

func (r *Reader) Close() error {
	r.dec.Close()
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

// Verify recomputes every snapshot digest from its bodies and returns how
// many snapshots were checked.
func Verify(r *Reader) (int, error) {
	n := 0
	err := r.Each(func(snap scene.Snapshot) error {
		if got := scene.Digest(snap.Bodies); got != snap.Digest {
			return fmt.Errorf("%w: tick %d recorded %016x, computed %016x", ErrDigestMismatch, snap.Tick, snap.Digest, got)
		}
		n++
		return nil
	})
	return n, err
}
