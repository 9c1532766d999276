package store

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Gate serializes every load-modify-save cycle on one accounts file.
//
// The committed store is kept as an immutable snapshot: mutations work on a
// clone and only publish it after the file write succeeded, so readers never
// observe a torn store and a failed write leaves memory and disk in step.
type Gate struct {
	codec    *Codec
	mu       sync.Mutex
	snapshot atomic.Pointer[Store]
}

// NewGate returns a gate over codec. The file is loaded lazily on first use.
func NewGate(codec *Codec) *Gate {
	return &Gate{codec: codec}
}

var (
	sharedMu    sync.Mutex
	sharedGates = make(map[string]*Gate)
)

// Shared returns the process-wide gate for path, creating it on first call.
// Two gates over the same file would race each other, so callers outside
// tests should always go through Shared.
func Shared(path string) *Gate {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if g, ok := sharedGates[key]; ok {
		return g
	}
	g := NewGate(NewCodec(path))
	sharedGates[key] = g
	return g
}

// Path returns the accounts file path.
func (g *Gate) Path() string {
	return g.codec.Path()
}

// Snapshot returns the last committed store. The returned value is shared
// and must not be modified.
func (g *Gate) Snapshot() (*Store, error) {
	if s := g.snapshot.Load(); s != nil {
		return s, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loadLocked()
}

// Update runs fn against a private copy of the store and persists the result.
func (g *Gate) Update(fn func(s *Store) error) error {
	_, err := Mutate(g, func(s *Store) (struct{}, error) {
		return struct{}{}, fn(s)
	})
	return err
}

// Mutate runs fn with exclusive access to a copy of the current store, saves
// the copy and publishes it. If fn or the save fails nothing is published and
// the error is returned unchanged, except ErrNoChange which skips the save.
func Mutate[R any](g *Gate, fn func(s *Store) (R, error)) (R, error) {
	var zero R

	g.mu.Lock()
	defer g.mu.Unlock()

	current, err := g.loadLocked()
	if err != nil {
		return zero, err
	}

	next := current.Clone()
	result, err := fn(next)
	if errors.Is(err, ErrNoChange) {
		return result, nil
	}
	if err != nil {
		return zero, err
	}
	if err := next.Validate(); err != nil {
		log.Error().Err(err).Msg("❌ Refusing to commit invalid account store")
		return zero, err
	}
	if err := g.codec.Save(next); err != nil {
		log.Error().Err(err).Str("path", g.codec.Path()).Msg("❌ Failed to save account store")
		return zero, err
	}

	g.snapshot.Store(next)
	return result, nil
}

// loadLocked returns the cached store, reading the file on first use.
// Caller must hold g.mu.
func (g *Gate) loadLocked() (*Store, error) {
	if s := g.snapshot.Load(); s != nil {
		return s, nil
	}
	s, err := g.codec.Load()
	if err != nil {
		return nil, err
	}
	g.snapshot.Store(s)
	log.Info().Int("accounts", len(s.Accounts)).Str("path", g.codec.Path()).Msg("📦 Loaded account store")
	return s, nil
}
