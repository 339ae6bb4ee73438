package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/relay-controller/internal/bus"
	"github.com/sweeney/relay-controller/internal/logic"
	"github.com/sweeney/relay-controller/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:     1000,
		Chip:       "gpiochip0",
		ConfigPath: "/var/lib/relay-controller/config.yaml",
		Broker:     "tcp://192.168.1.200:1883",
		Prefix:     "relays",
		HTTPAddr:   ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Publish(bus.Update{Name: bus.PropConnection, Status: bus.StatusOK, Value: "CONNECTED"})
	tr.Publish(bus.Update{Name: "relay_1", Label: "Pump", Status: bus.StatusOK, Value: "ON"})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	sj := getJSON(t, ts.URL+"/index.json")
	require.Len(t, sj.Status.Properties, 2)
	relay := sj.Status.Properties[1]
	assert.Equal(t, "relay_1", relay.Name)
	assert.Equal(t, "Pump", relay.Label)
	assert.Equal(t, "ON", relay.Value)
	assert.Equal(t, "OK", relay.Status)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "relays", sj.Status.MQTT.Prefix)
	assert.Equal(t, "gpiochip0", sj.Status.Config.Chip)
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	require.NotNil(t, sj.Status.Network)
	assert.Equal(t, "192.168.1.42", sj.Status.Network.IP)
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Publish(bus.Update{Name: bus.PropPins, Label: "GPIO pins", Status: bus.StatusBusy, Value: logic.DefaultPins})
	tr.Publish(bus.Update{Name: bus.PropLabels, Status: bus.StatusIdle, Value: [4]string{"Pump", "Fan", "Light", "Spare"}})
	tr.Publish(bus.Update{Name: "relay_2", Label: "Fan", Status: bus.StatusAlert, Value: "OFF", Message: "write relay 2 (pin 17): failed"})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	for _, want := range []string{
		"GPIO pins",
		"[16 17 20 21]",
		"Pump, Fan, Light, Spare",
		`class="alert"`,
		"pin 17",
		"gpiochip0",
	} {
		assert.Contains(t, string(body), want)
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletedPropertyDisappears(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Publish(bus.Update{Name: "relay_1", Status: bus.StatusIdle, Value: "OFF"})

	require.Len(t, getJSON(t, ts.URL+"/index.json").Status.Properties, 1)

	require.NoError(t, tr.Delete("relay_1"))

	assert.Empty(t, getJSON(t, ts.URL+"/index.json").Status.Properties)
}
