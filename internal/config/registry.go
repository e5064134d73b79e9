package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/natea/conversational-reflection/internal/emotion"
	"github.com/natea/conversational-reflection/pkg/synth"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: not registered")

// Registry maps synth adapter and emotion source names to their constructor
// functions. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	synths  map[string]func(SynthConfig) (synth.Adapter, error)
	sources map[SourceKind]func(EmotionConfig) (emotion.Source, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		synths:  make(map[string]func(SynthConfig) (synth.Adapter, error)),
		sources: make(map[SourceKind]func(EmotionConfig) (emotion.Source, error)),
	}
}

// RegisterSynth registers a synth adapter factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSynth(name string, factory func(SynthConfig) (synth.Adapter, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synths[name] = factory
}

// RegisterSource registers an emotion source factory under kind.
func (r *Registry) RegisterSource(kind SourceKind, factory func(EmotionConfig) (emotion.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[kind] = factory
}

// CreateSynth instantiates a synth adapter using the factory registered under
// cfg.Name. Returns [ErrNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateSynth(cfg SynthConfig) (synth.Adapter, error) {
	r.mu.RLock()
	factory, ok := r.synths[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: synth/%q", ErrNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateSource instantiates an emotion source using the factory registered
// under cfg.Source. An empty kind falls back to [SourceStatic].
func (r *Registry) CreateSource(cfg EmotionConfig) (emotion.Source, error) {
	kind := cfg.Source
	if kind == "" {
		kind = SourceStatic
	}
	r.mu.RLock()
	factory, ok := r.sources[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: emotion source/%q", ErrNotRegistered, kind)
	}
	return factory(cfg)
}
