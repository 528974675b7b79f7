package surface

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/woozymasta/choromap/internal/choropleth"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var popBinding = choropleth.PaintBinding{
	Property: "pop_est",
	Stops:    choropleth.Stops{{Threshold: 0, Color: "#f8d5cc"}, {Threshold: 1000000, Color: "#f4bfb6"}},
}

func TestReadyAfterSourceAndLayer(t *testing.T) {
	h := NewHub()
	fired := 0
	h.OnReady(func() { fired++ })

	assert.ErrorIs(t, h.AddPaintableLayer("countries", "countries"), ErrUnknownSource)
	assert.False(t, h.Ready())

	require.NoError(t, h.AddDataSource("countries", map[string]any{"type": "FeatureCollection"}))
	assert.ErrorIs(t, h.AddDataSource("countries", nil), ErrDuplicate)
	assert.Equal(t, 0, fired)

	require.NoError(t, h.AddPaintableLayer("countries", "countries"))
	assert.True(t, h.Ready())
	assert.Equal(t, 1, fired)

	require.NoError(t, h.AddDataSource("lakes", nil))
	require.NoError(t, h.AddPaintableLayer("lakes", "lakes"))
	assert.Equal(t, 1, fired)

	// late subscribers are called right away
	late := false
	h.OnReady(func() { late = true })
	assert.True(t, late)
}

func TestReleasedCallbacksDoNotFire(t *testing.T) {
	h := NewHub()
	readyFired, moves, selects := false, 0, 0

	releaseReady := h.OnReady(func() { readyFired = true })
	releaseMove := h.OnViewportChanged(func(choropleth.LngLat, float64) { moves++ })
	releaseSelect := h.OnSelect(func(int) { selects++ })

	h.MoveViewport(choropleth.LngLat{Lng: 1, Lat: 2}, 3)
	h.Select(1)

	releaseReady()
	releaseMove()
	releaseSelect()

	require.NoError(t, h.AddDataSource("countries", nil))
	require.NoError(t, h.AddPaintableLayer("countries", "countries"))
	h.MoveViewport(choropleth.LngLat{Lng: 1, Lat: 2}, 3)
	h.Select(0)

	assert.False(t, readyFired)
	assert.Equal(t, 1, moves)
	assert.Equal(t, 1, selects)
}

func TestSetPaintProperty(t *testing.T) {
	h := NewHub()
	assert.ErrorIs(t, h.SetPaintProperty("countries", choropleth.FillColor, popBinding), ErrUnknownLayer)

	require.NoError(t, h.AddDataSource("countries", nil))
	require.NoError(t, h.AddPaintableLayer("countries", "countries"))
	require.NoError(t, h.SetPaintProperty("countries", choropleth.FillColor, popBinding))

	got, ok := h.PaintProperty("countries", choropleth.FillColor)
	require.True(t, ok)
	assert.Equal(t, popBinding, got)

	snap := h.Snapshot()
	assert.Equal(t, TypeState, snap.Type)
	assert.Equal(t, []string{"countries"}, snap.Sources)
	assert.Equal(t, []Layer{{ID: "countries", Source: "countries"}}, snap.Layers)
	assert.Equal(t, []Paint{{Layer: "countries", Name: choropleth.FillColor, Binding: popBinding}}, snap.Paint)
}

func TestBinderDrivesHub(t *testing.T) {
	h := NewHub()
	b := choropleth.NewBinder(h, "countries", choropleth.ViewportState{Longitude: 138, Latitude: 38, Zoom: 4})
	defer b.Close()

	opts := []choropleth.DisplayOption{
		{Name: "Population", Property: "pop_est", Stops: popBinding.Stops},
		{Name: "GDP", Property: "gdp_md_est", Stops: choropleth.Stops{{Threshold: 0, Color: "#f8d5cc"}}},
	}
	require.NoError(t, b.Initialize(opts))
	b.Observe(h)

	require.NoError(t, h.AddDataSource("countries", nil))
	require.NoError(t, h.AddPaintableLayer("countries", "countries"))

	got, ok := h.PaintProperty("countries", choropleth.FillColor)
	require.True(t, ok)
	assert.Equal(t, "pop_est", got.Property)

	require.NoError(t, b.SelectOption(1))
	got, _ = h.PaintProperty("countries", choropleth.FillColor)
	assert.Equal(t, "gdp_md_est", got.Property)

	h.MoveViewport(choropleth.LngLat{Lng: 138.12345, Lat: 35.6789}, 5.678)
	assert.Equal(t, choropleth.ViewportState{Longitude: 138.12345, Latitude: 35.6789, Zoom: 5.678}, b.ViewportState())

	snap := h.Snapshot()
	require.NotNil(t, snap.Status)
	assert.Equal(t, 1, snap.Status.Active)
	assert.Equal(t, "Longitude: 138.1235 | Latitude: 35.6789 | Zoom: 5.68", snap.Status.Readout)
}

func TestWebsocketWidget(t *testing.T) {
	h := NewHub()
	require.NoError(t, h.AddDataSource("countries", nil))
	require.NoError(t, h.AddPaintableLayer("countries", "countries"))

	moved := make(chan choropleth.LngLat, 1)
	h.OnViewportChanged(func(center choropleth.LngLat, _ float64) { moved <- center })
	selected := make(chan int, 1)
	h.OnSelect(func(i int) { selected <- i })

	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snap Message
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, TypeState, snap.Type)
	assert.Equal(t, []Layer{{ID: "countries", Source: "countries"}}, snap.Layers)

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, h.SetPaintProperty("countries", choropleth.FillColor, popBinding))
	var paint Message
	require.NoError(t, conn.ReadJSON(&paint))
	assert.Equal(t, TypePaint, paint.Type)
	require.NotNil(t, paint.Binding)
	assert.Equal(t, popBinding, *paint.Binding)

	zoom := 5.0
	require.NoError(t, conn.WriteJSON(Message{Type: TypeMove, Center: &choropleth.LngLat{Lng: 10, Lat: 20}, Zoom: &zoom}))
	select {
	case c := <-moved:
		assert.Equal(t, choropleth.LngLat{Lng: 10, Lat: 20}, c)
	case <-time.After(5 * time.Second):
		t.Fatal("move not forwarded")
	}

	idx := 1
	require.NoError(t, conn.WriteJSON(Message{Type: TypeSelect, Index: &idx}))
	select {
	case i := <-selected:
		assert.Equal(t, 1, i)
	case <-time.After(5 * time.Second):
		t.Fatal("select not forwarded")
	}
}

func TestConcurrentSelectionsKeepStatusInStep(t *testing.T) {
	opts := []choropleth.DisplayOption{
		{Name: "Population", Property: "pop_est", Stops: popBinding.Stops},
		{Name: "GDP", Property: "gdp_md_est", Stops: choropleth.Stops{{Threshold: 0, Color: "#f8d5cc"}}},
	}

	for round := 0; round < 50; round++ {
		h := NewHub()
		require.NoError(t, h.AddDataSource("countries", nil))
		require.NoError(t, h.AddPaintableLayer("countries", "countries"))

		b := choropleth.NewBinder(h, "countries", choropleth.ViewportState{})
		require.NoError(t, b.Initialize(opts))
		b.Observe(h)

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					assert.NoError(t, b.SelectOption((w+i)%len(opts)))
				}
			}(w)
		}
		wg.Wait()

		snap := h.Snapshot()
		require.NotNil(t, snap.Status)
		painted, ok := h.PaintProperty("countries", choropleth.FillColor)
		require.True(t, ok)
		require.Equal(t, opts[snap.Status.Active].Property, painted.Property, "round %d", round)
		require.Equal(t, b.ActiveIndex(), snap.Status.Active, "round %d", round)

		b.Close()
	}
}

func TestClosedHubRefusesWidgets(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(h)
	defer srv.Close()

	h.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		_ = conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 0, h.Clients())

	assert.ErrorIs(t, h.register(&client{send: make(chan []byte, 1)}), ErrHubClosed)
}
