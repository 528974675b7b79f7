// Package surface implements the map display surface on the server side.
// It keeps the source, layer and paint state the browser widget must mirror,
// and relays it to connected widgets over websocket.
package surface

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/woozymasta/choromap/internal/choropleth"
	"github.com/woozymasta/choromap/internal/metrics"

	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownSource is returned when a layer references a missing data source.
	ErrUnknownSource = errors.New("unknown data source")
	// ErrUnknownLayer is returned when painting a layer that was never added.
	ErrUnknownLayer = errors.New("unknown layer")
	// ErrDuplicate is returned when a source or layer id is already in use.
	ErrDuplicate = errors.New("duplicate id")
	// ErrHubClosed is returned when a widget attaches after Close.
	ErrHubClosed = errors.New("surface hub closed")
)

const sendQueueSize = 32

// Hub is a websocket-backed map display surface.
type Hub struct {
	mu        sync.Mutex
	sources   map[string]any
	layers    map[string]string
	paint     map[string]map[string]choropleth.PaintBinding
	readyFns  map[uint64]func()
	moveFns   map[uint64]func(choropleth.LngLat, float64)
	selectFns map[uint64]func(int)
	clients   map[*client]struct{}
	status    *Status
	nextID    uint64
	ready     bool
	closed    bool
}

// NewHub returns an empty surface.
func NewHub() *Hub {
	return &Hub{
		sources:   make(map[string]any),
		layers:    make(map[string]string),
		paint:     make(map[string]map[string]choropleth.PaintBinding),
		readyFns:  make(map[uint64]func()),
		moveFns:   make(map[uint64]func(choropleth.LngLat, float64)),
		selectFns: make(map[uint64]func(int)),
		clients:   make(map[*client]struct{}),
	}
}

// AddDataSource registers data under id.
func (h *Hub) AddDataSource(id string, data any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sources[id]; ok {
		return fmt.Errorf("source %q: %w", id, ErrDuplicate)
	}
	h.sources[id] = data
	h.broadcastLocked(Message{Type: TypeSource, Source: id})

	log.Debug().Str("source", id).Msg("Data source added")
	return nil
}

// Source returns the data registered under id.
func (h *Hub) Source(id string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, ok := h.sources[id]
	return data, ok
}

// AddPaintableLayer adds a layer drawing sourceID. The first layer added
// over an existing source makes the surface ready.
func (h *Hub) AddPaintableLayer(id, sourceID string) error {
	h.mu.Lock()

	if _, ok := h.sources[sourceID]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("layer %q source %q: %w", id, sourceID, ErrUnknownSource)
	}
	if _, ok := h.layers[id]; ok {
		h.mu.Unlock()
		return fmt.Errorf("layer %q: %w", id, ErrDuplicate)
	}

	h.layers[id] = sourceID
	h.broadcastLocked(Message{Type: TypeLayer, Layer: id, Source: sourceID})

	var fire []func()
	if !h.ready {
		h.ready = true
		for _, fn := range h.readyFns {
			fire = append(fire, fn)
		}
		h.readyFns = make(map[uint64]func())
	}
	h.mu.Unlock()

	log.Debug().Str("layer", id).Str("source", sourceID).Msg("Paintable layer added")

	for _, fn := range fire {
		fn()
	}

	return nil
}

// SetPaintProperty applies binding to the named paint property of layerID.
func (h *Hub) SetPaintProperty(layerID, name string, binding choropleth.PaintBinding) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.layers[layerID]; !ok {
		return fmt.Errorf("paint %q on %q: %w", name, layerID, ErrUnknownLayer)
	}

	props, ok := h.paint[layerID]
	if !ok {
		props = make(map[string]choropleth.PaintBinding)
		h.paint[layerID] = props
	}
	props[name] = binding

	h.broadcastLocked(Message{Type: TypePaint, Layer: layerID, Name: name, Binding: &binding})
	metrics.PaintUpdates.WithLabelValues(layerID).Inc()

	log.Debug().
		Str("layer", layerID).
		Str("name", name).
		Str("property", binding.Property).
		Int("stops", len(binding.Stops)).
		Msg("Paint property set")

	return nil
}

// PaintProperty returns the binding applied to a layer property.
func (h *Hub) PaintProperty(layerID, name string) (choropleth.PaintBinding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.paint[layerID][name]
	return b, ok
}

// Ready reports whether a paintable layer exists.
func (h *Hub) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// OnReady calls fn once the surface is ready. A surface that is already
// ready calls fn immediately.
func (h *Hub) OnReady(fn func()) (release func()) {
	h.mu.Lock()
	if h.ready {
		h.mu.Unlock()
		fn()
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.readyFns[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.readyFns, id)
		h.mu.Unlock()
	}
}

// OnViewportChanged calls fn for every viewport move reported by a widget.
func (h *Hub) OnViewportChanged(fn func(center choropleth.LngLat, zoom float64)) (release func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.moveFns[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.moveFns, id)
		h.mu.Unlock()
	}
}

// OnSelect calls fn for every option selection made in a widget.
func (h *Hub) OnSelect(fn func(index int)) (release func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.selectFns[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.selectFns, id)
		h.mu.Unlock()
	}
}

// MoveViewport reports a viewport move to subscribers.
func (h *Hub) MoveViewport(center choropleth.LngLat, zoom float64) {
	h.mu.Lock()
	fns := make([]func(choropleth.LngLat, float64), 0, len(h.moveFns))
	for _, fn := range h.moveFns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(center, zoom)
	}
}

// Select reports an option selection to subscribers.
func (h *Hub) Select(index int) {
	h.mu.Lock()
	fns := make([]func(int), 0, len(h.selectFns))
	for _, fn := range h.selectFns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(index)
	}
}

// ViewportMoved implements choropleth.Observer.
func (h *Hub) ViewportMoved(v choropleth.ViewportState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.currentStatusLocked()
	st.Viewport = v.Display()
	st.Readout = v.String()
	h.status = &st
	h.broadcastLocked(Message{Type: TypeStatus, Status: &st})
}

// OptionSelected implements choropleth.Observer.
func (h *Hub) OptionSelected(index int, _ choropleth.PaintBinding) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.currentStatusLocked()
	st.Active = index
	h.status = &st
	h.broadcastLocked(Message{Type: TypeStatus, Status: &st})
}

// Snapshot returns the full surface state sent to a newly connected widget.
func (h *Hub) Snapshot() Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Clients returns the number of connected widgets.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every widget. Widgets attaching later are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) currentStatusLocked() Status {
	if h.status != nil {
		return *h.status
	}
	return Status{}
}

func (h *Hub) snapshotLocked() Message {
	msg := Message{Type: TypeState}

	for id := range h.sources {
		msg.Sources = append(msg.Sources, id)
	}
	sort.Strings(msg.Sources)

	for id, src := range h.layers {
		msg.Layers = append(msg.Layers, Layer{ID: id, Source: src})
	}
	sort.Slice(msg.Layers, func(i, j int) bool { return msg.Layers[i].ID < msg.Layers[j].ID })

	for layer, props := range h.paint {
		for name, b := range props {
			msg.Paint = append(msg.Paint, Paint{Layer: layer, Name: name, Binding: b})
		}
	}
	sort.Slice(msg.Paint, func(i, j int) bool {
		if msg.Paint[i].Layer != msg.Paint[j].Layer {
			return msg.Paint[i].Layer < msg.Paint[j].Layer
		}
		return msg.Paint[i].Name < msg.Paint[j].Name
	})

	if h.status != nil {
		st := *h.status
		msg.Status = &st
	}

	return msg
}

// broadcastLocked queues msg for every client. Clients with a full queue are dropped.
func (h *Hub) broadcastLocked(msg Message) {
	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode surface message")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("ip", c.addr).Msg("Client send queue full, dropping")
			metrics.DroppedClients.Inc()
			h.dropLocked(c)
		}
	}
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	data, err := json.Marshal(h.snapshotLocked())
	if err != nil {
		return err
	}
	c.send <- data

	h.clients[c] = struct{}{}
	metrics.SurfaceClients.Set(float64(len(h.clients)))
	return nil
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.SurfaceClients.Set(float64(len(h.clients)))
}
