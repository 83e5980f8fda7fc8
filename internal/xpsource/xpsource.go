// Package xpsource defines the pluggable XP-producer interface and the
// registry that owns producer lifecycle. The registry coordinates sources;
// it never computes XP itself.
package xpsource

import (
	"log/slog"
	"sort"
	"sync"
)

// Source is one XP producer: spell casts, passive game-time, or an
// externally registered modder source.
type Source interface {
	// Name is the stable identifier used for settings keys and cap tracking.
	Name() string
	DisplayName() string
	Description() string

	Enabled() bool
	SetEnabled(enabled bool)

	// Available reports whether the source's dependencies are present.
	Available() bool

	// Init is called once when game data is ready; Shutdown when unloading.
	Init() error
	Shutdown()

	// Priority orders enumeration; higher runs first.
	Priority() int
}

// Base carries the boilerplate of a Source. Embed it and override what the
// concrete source needs.
type Base struct {
	name        string
	displayName string
	description string

	mu      sync.Mutex
	enabled bool
}

// NewBase returns an enabled Base with the given identity.
func NewBase(name, displayName, description string) Base {
	return Base{name: name, displayName: displayName, description: description, enabled: true}
}

func (b *Base) Name() string        { return b.name }
func (b *Base) DisplayName() string { return b.displayName }
func (b *Base) Description() string { return b.description }

func (b *Base) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

func (b *Base) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

func (b *Base) Available() bool { return true }
func (b *Base) Init() error     { return nil }
func (b *Base) Shutdown()       {}
func (b *Base) Priority() int   { return 0 }

// Registry owns registered sources. Registration is append-only; Clear shuts
// everything down and empties the registry.
type Registry struct {
	mu      sync.Mutex
	sources []Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a source and re-sorts by descending priority. Stable sort
// keeps registration order among equal priorities.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, s)
	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].Priority() > r.sources[j].Priority()
	})
	slog.Info("xp source registered", "name", s.Name(), "priority", s.Priority())
}

// Get returns the source with the given name, or nil.
func (r *Registry) Get(name string) Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// All returns the sources in priority order.
func (r *Registry) All() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Active returns enabled sources whose dependencies are present, in
// priority order.
func (r *Registry) Active() []Source {
	var active []Source
	for _, s := range r.All() {
		if s.Enabled() && s.Available() {
			active = append(active, s)
		}
	}
	return active
}

// InitAll initializes every enabled source. A failing source is logged and
// skipped; the rest still come up.
func (r *Registry) InitAll() {
	for _, s := range r.All() {
		if !s.Enabled() {
			continue
		}
		if err := s.Init(); err != nil {
			slog.Error("xp source init failed", "name", s.Name(), "error", err)
			continue
		}
		slog.Info("xp source initialized", "name", s.Name())
	}
}

// ShutdownAll shuts down every source in priority order.
func (r *Registry) ShutdownAll() {
	for _, s := range r.All() {
		s.Shutdown()
	}
}

// Clear shuts down and empties the registry.
func (r *Registry) Clear() {
	r.ShutdownAll()
	r.mu.Lock()
	r.sources = nil
	r.mu.Unlock()
}
