// Package choropleth binds a selectable set of display options to the paint
// configuration of a map display surface.
package choropleth

import (
	"errors"
	"math"
	"strconv"
)

var (
	// ErrNotInitialized is returned by mutating operations before Initialize.
	ErrNotInitialized = errors.New("binder not initialized")
	// ErrOutOfRange is returned when a selection index is not in the option set.
	ErrOutOfRange = errors.New("option index out of range")
	// ErrNoOptions is returned when Initialize is called with an empty set.
	ErrNoOptions = errors.New("no display options")
	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("binder already initialized")
	// ErrInvalidStops is returned for an empty or unsorted color ramp.
	ErrInvalidStops = errors.New("invalid stops")
	// ErrClosed is returned by mutating operations after Close.
	ErrClosed = errors.New("binder closed")
)

// FillColor is the paint property the binding is applied to.
const FillColor = "fill-color"

// DisplayOption is a selectable choropleth configuration.
type DisplayOption struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Property    string `yaml:"property" json:"property"`
	Stops       Stops  `yaml:"stops" json:"stops"`
}

// Binding returns the paint binding derived from the option.
func (o DisplayOption) Binding() PaintBinding {
	return PaintBinding{Property: o.Property, Stops: o.Stops.Clone()}
}

// PaintBinding is the (property, stops) pair applied to the rendered layer.
// Its JSON form is the widget's property function: {"property": ..., "stops": [...]}.
type PaintBinding struct {
	Property string `json:"property" yaml:"property"`
	Stops    Stops  `json:"stops" yaml:"stops"`
}

// LngLat is a geographic coordinate.
type LngLat struct {
	Lng float64 `json:"lng" yaml:"lng"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// ViewportState is the latest map center and zoom.
type ViewportState struct {
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Zoom      float64 `json:"zoom" yaml:"zoom"`
}

// ViewportDisplay is the viewport as shown in a status readout.
type ViewportDisplay struct {
	Longitude string `json:"longitude"`
	Latitude  string `json:"latitude"`
	Zoom      string `json:"zoom"`
}

// Rounded returns the viewport rounded to display precision:
// 4 places for coordinates, 2 places for zoom.
func (v ViewportState) Rounded() ViewportState {
	return ViewportState{
		Longitude: roundTo(v.Longitude, 4),
		Latitude:  roundTo(v.Latitude, 4),
		Zoom:      roundTo(v.Zoom, 2),
	}
}

// Display formats the viewport with fixed decimals.
func (v ViewportState) Display() ViewportDisplay {
	r := v.Rounded()
	return ViewportDisplay{
		Longitude: strconv.FormatFloat(r.Longitude, 'f', 4, 64),
		Latitude:  strconv.FormatFloat(r.Latitude, 'f', 4, 64),
		Zoom:      strconv.FormatFloat(r.Zoom, 'f', 2, 64),
	}
}

// String renders the sidebar readout.
func (v ViewportState) String() string {
	d := v.Display()
	return "Longitude: " + d.Longitude + " | Latitude: " + d.Latitude + " | Zoom: " + d.Zoom
}

// roundTo rounds half away from zero on the scaled value,
// so 138.12345 becomes 138.1235 even though its binary form is slightly lower.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Surface is the map display surface the binder paints through.
// Subscriptions return a release func; a released callback must not fire.
type Surface interface {
	AddDataSource(id string, data any) error
	AddPaintableLayer(id, sourceID string) error
	SetPaintProperty(layerID, name string, binding PaintBinding) error
	OnReady(fn func()) (release func())
	OnViewportChanged(fn func(center LngLat, zoom float64)) (release func())
}

// Observer receives display state changes, e.g. for a status readout.
// Calls are made in the order the changes were applied.
type Observer interface {
	ViewportMoved(v ViewportState)
	OptionSelected(index int, binding PaintBinding)
}
