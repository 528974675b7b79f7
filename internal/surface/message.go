package surface

import (
	"github.com/woozymasta/choromap/internal/choropleth"
)

// Message types exchanged with map widget clients.
const (
	TypeState  = "state"
	TypeSource = "source"
	TypeLayer  = "layer"
	TypePaint  = "paint"
	TypeStatus = "status"
	TypeMove   = "move"
	TypeSelect = "select"
)

// Message is a websocket frame. Fields are set depending on Type.
type Message struct {
	Binding *choropleth.PaintBinding `json:"binding,omitempty"`
	Center  *choropleth.LngLat       `json:"center,omitempty"`
	Zoom    *float64                 `json:"zoom,omitempty"`
	Index   *int                     `json:"index,omitempty"`
	Status  *Status                  `json:"status,omitempty"`
	Type    string                   `json:"type"`
	Source  string                   `json:"source,omitempty"`
	Layer   string                   `json:"layer,omitempty"`
	Name    string                   `json:"name,omitempty"`
	Sources []string                 `json:"sources,omitempty"`
	Layers  []Layer                  `json:"layers,omitempty"`
	Paint   []Paint                  `json:"paint,omitempty"`
}

// Layer is a paintable layer bound to a data source.
type Layer struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// Paint is a paint property applied to a layer.
type Paint struct {
	Layer   string                  `json:"layer"`
	Name    string                  `json:"name"`
	Binding choropleth.PaintBinding `json:"binding"`
}

// Status is the display state shown in the sidebar readout.
type Status struct {
	Viewport choropleth.ViewportDisplay `json:"viewport"`
	Readout  string                     `json:"readout"`
	Active   int                        `json:"active"`
}
