package choropleth

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Binder owns the active display option and keeps the surface paint
// configuration consistent with it.
//
// Operations are serialized by a mutex. Paint requests and observer
// notifications are issued while the lock is held so every consumer sees
// changes in the order they were applied.
type Binder struct {
	surface Surface
	layerID string

	mu          sync.Mutex
	options     []DisplayOption
	active      int
	viewport    ViewportState
	initialized bool
	ready       bool
	closed      bool
	releases    []func()
	observers   map[int]Observer
	nextObsID   int
}

// NewBinder returns an uninitialized binder painting layerID on surface.
// home is the viewport reported until the first move notification.
func NewBinder(surface Surface, layerID string, home ViewportState) *Binder {
	return &Binder{
		surface:   surface,
		layerID:   layerID,
		viewport:  home,
		observers: make(map[int]Observer),
	}
}

// Initialize installs the option set, activates the first option and
// subscribes to the surface. The initial paint is deferred until the
// surface signals readiness.
func (b *Binder) Initialize(options []DisplayOption) error {
	if len(options) == 0 {
		return ErrNoOptions
	}
	for i, o := range options {
		if err := o.Stops.Validate(); err != nil {
			return fmt.Errorf("option %d (%s): %w", i, o.Name, err)
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.initialized {
		b.mu.Unlock()
		return ErrAlreadyInitialized
	}

	b.options = make([]DisplayOption, len(options))
	for i, o := range options {
		o.Stops = o.Stops.Clone()
		b.options[i] = o
	}
	b.active = 0
	b.initialized = true
	b.mu.Unlock()

	log.Debug().
		Int("options", len(options)).
		Str("active", options[0].Name).
		Str("layer", b.layerID).
		Msg("Choropleth binder initialized")

	// Subscriptions are registered without holding the lock: a surface that
	// is already ready invokes the callback synchronously.
	releaseMove := b.surface.OnViewportChanged(func(center LngLat, zoom float64) {
		if err := b.OnViewportMoved(center, zoom); err != nil {
			log.Trace().Err(err).Msg("Viewport notification ignored")
		}
	})
	releaseReady := b.surface.OnReady(b.handleReady)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		releaseMove()
		releaseReady()
		return ErrClosed
	}
	b.releases = append(b.releases, releaseMove, releaseReady)
	b.mu.Unlock()

	return nil
}

// handleReady applies the active binding once the surface has a paintable layer.
func (b *Binder) handleReady() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.ready {
		return
	}
	b.ready = true

	log.Info().
		Str("layer", b.layerID).
		Str("option", b.options[b.active].Name).
		Msg("Surface ready, applying initial paint binding")

	b.paintLocked()
}

// SelectOption activates options[index] and repaints with it.
func (b *Binder) SelectOption(index int) error {
	b.mu.Lock()
	if err := b.checkLocked(); err != nil {
		b.mu.Unlock()
		return err
	}
	if index < 0 || index >= len(b.options) {
		n := len(b.options)
		b.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, index, n)
	}

	b.active = index
	binding := b.options[index].Binding()
	if b.ready {
		b.paintLocked()
	} else {
		log.Debug().
			Int("index", index).
			Msg("Surface not ready, paint deferred")
	}
	for _, o := range b.observersLocked() {
		o.OptionSelected(index, binding)
	}
	b.mu.Unlock()

	log.Debug().
		Int("index", index).
		Str("property", binding.Property).
		Msg("Display option selected")

	return nil
}

// OnViewportMoved records the latest viewport and notifies observers.
// It never changes the paint binding.
func (b *Binder) OnViewportMoved(center LngLat, zoom float64) error {
	b.mu.Lock()
	if err := b.checkLocked(); err != nil {
		b.mu.Unlock()
		return err
	}

	b.viewport = ViewportState{
		Longitude: center.Lng,
		Latitude:  center.Lat,
		Zoom:      zoom,
	}
	for _, o := range b.observersLocked() {
		o.ViewportMoved(b.viewport)
	}
	b.mu.Unlock()

	return nil
}

// CurrentPaintBinding returns the binding of the active option,
// or the zero value before Initialize.
func (b *Binder) CurrentPaintBinding() PaintBinding {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return PaintBinding{}
	}
	return b.options[b.active].Binding()
}

// ViewportState returns the latest viewport.
func (b *Binder) ViewportState() ViewportState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewport
}

// Options returns a copy of the configured option set.
func (b *Binder) Options() []DisplayOption {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]DisplayOption, len(b.options))
	for i, o := range b.options {
		o.Stops = o.Stops.Clone()
		out[i] = o
	}
	return out
}

// ActiveIndex returns the index of the active option, -1 before Initialize.
func (b *Binder) ActiveIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return -1
	}
	return b.active
}

// Active returns the active option.
func (b *Binder) Active() (DisplayOption, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return DisplayOption{}, false
	}
	o := b.options[b.active]
	o.Stops = o.Stops.Clone()
	return o, true
}

// Ready reports whether the surface readiness has been observed.
func (b *Binder) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Observe registers an observer until the returned func is called.
// Observers run with the binder lock held and must not call back into it.
func (b *Binder) Observe(o Observer) (release func()) {
	b.mu.Lock()
	id := b.nextObsID
	b.nextObsID++
	b.observers[id] = o
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, id)
			b.mu.Unlock()
		})
	}
}

// Close releases surface subscriptions and observers.
func (b *Binder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	releases := b.releases
	b.releases = nil
	b.observers = make(map[int]Observer)
	b.mu.Unlock()

	for _, release := range releases {
		release()
	}

	log.Debug().Str("layer", b.layerID).Msg("Choropleth binder closed")
}

func (b *Binder) checkLocked() error {
	if b.closed {
		return ErrClosed
	}
	if !b.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (b *Binder) observersLocked() []Observer {
	out := make([]Observer, 0, len(b.observers))
	for _, o := range b.observers {
		out = append(out, o)
	}
	return out
}

func (b *Binder) paintLocked() {
	active := b.options[b.active]
	if err := b.surface.SetPaintProperty(b.layerID, FillColor, active.Binding()); err != nil {
		log.Error().
			Err(err).
			Str("layer", b.layerID).
			Str("property", active.Property).
			Msg("Failed to apply paint binding")
	}
}
