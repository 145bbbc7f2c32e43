package bridge

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/protocol"
	"github.com/muurk/powerview-ble/internal/shade"
)

const testAddress = "AA:BB:CC:DD:EE:01"

type testBridge struct {
	server  *Server
	http    *httptest.Server
	manager *shade.Manager

	mu    sync.Mutex
	links map[string]*ackLink
	mute  bool
}

func newTestBridge(t *testing.T, mute bool) *testBridge {
	t.Helper()
	tb := &testBridge{links: make(map[string]*ackLink), mute: mute}

	m, err := shade.NewManager(tb.newLink, shade.ManagerOptions{ResponseTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	tb.manager = m
	tb.server = New(&Config{CommandTimeout: 2 * time.Second}, m)
	tb.http = httptest.NewServer(tb.server.Router())

	t.Cleanup(func() {
		tb.http.Close()
		tb.server.Hub().Close()
		m.Shutdown()
	})
	return tb
}

func (tb *testBridge) newLink(address string) link.Link {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	l := &ackLink{address: address, mute: tb.mute}
	tb.links[address] = l
	return l
}

func (tb *testBridge) link(address string) *ackLink {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.links[address]
}

func (tb *testBridge) register(t *testing.T, record []byte) {
	t.Helper()
	reg := shade.Registration{Name: "Kitchen"}
	if record != nil {
		adv := advertisement(testAddress, record)
		reg.Advertisement = &adv
	}
	if _, err := tb.manager.Register(testAddress, reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
}

func (tb *testBridge) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, tb.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, []byte(buf.String())
}

func TestHealth(t *testing.T) {
	tb := newTestBridge(t, false)
	tb.register(t, nil)

	resp, body := tb.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if health.Status != "ok" || health.Shades != 1 || health.HomeKey || health.NATS {
		t.Errorf("health = %+v", health)
	}
}

func TestCORSPreflight(t *testing.T) {
	tb := newTestBridge(t, false)

	req, err := http.NewRequest(http.MethodOptions, tb.http.URL+"/shades/"+testAddress+"/stop", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight error = %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != http.MethodPost {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST", got)
	}
}

func TestListAndGetShade(t *testing.T) {
	tb := newTestBridge(t, false)
	tb.register(t, telemetryRecord(0, 25, protocol.MotionIdle, 3))

	resp, body := tb.do(t, http.MethodGet, "/shades/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var states []shade.State
	if err := json.Unmarshal(body, &states); err != nil {
		t.Fatal(err)
	}
	if len(states) != 1 || states[0].Address != testAddress || states[0].Name != "Kitchen" {
		t.Fatalf("states = %+v", states)
	}

	resp, body = tb.do(t, http.MethodGet, "/shades/aa:bb:cc:dd:ee:01/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var st shade.State
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatal(err)
	}
	if st.Telemetry == nil || st.Telemetry.Position != 25 || st.Telemetry.BatteryLevel != 100 {
		t.Errorf("telemetry = %+v", st.Telemetry)
	}
	if !st.Controls {
		t.Error("controls_available = false")
	}

	resp, _ = tb.do(t, http.MethodGet, "/shades/11:22:33:44:55:66/", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown shade status = %d, want 404", resp.StatusCode)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name       string
		record     []byte
		mute       bool
		path       string
		body       string
		wantStatus int
		wantFrame  bool
	}{
		{name: "position", path: "/position", body: `{"position": 60}`, wantStatus: http.StatusOK, wantFrame: true},
		{name: "position with tilt", path: "/position", body: `{"position": 60, "tilt": 20, "velocity": 2}`, wantStatus: http.StatusOK, wantFrame: true},
		{name: "position missing", path: "/position", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "position out of range", path: "/position", body: `{"position": 150}`, wantStatus: http.StatusBadRequest},
		{name: "velocity out of range", path: "/position", body: `{"position": 10, "velocity": 300}`, wantStatus: http.StatusBadRequest},
		{name: "malformed body", path: "/position", body: `{"position":`, wantStatus: http.StatusBadRequest},
		{name: "open without body", path: "/open", wantStatus: http.StatusOK, wantFrame: true},
		{name: "close", path: "/close", wantStatus: http.StatusOK, wantFrame: true},
		{name: "stop", path: "/stop", wantStatus: http.StatusOK, wantFrame: true},
		{name: "scene", path: "/scene", body: `{"index": 2}`, wantStatus: http.StatusOK, wantFrame: true},
		{name: "scene missing index", path: "/scene", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "scene out of range", path: "/scene", body: `{"index": 300}`, wantStatus: http.StatusBadRequest},
		{name: "identify", path: "/identify", body: `{"beeps": 2}`, wantStatus: http.StatusOK, wantFrame: true},
		{
			name:       "open when already open",
			record:     telemetryRecord(0, 100, protocol.MotionIdle, 3),
			path:       "/open",
			wantStatus: http.StatusOK,
		},
		{
			name:       "charging shade refuses commands",
			record:     telemetryRecord(0, 50, protocol.MotionCharging, 3),
			path:       "/stop",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "paired shade without home key",
			record:     telemetryRecord(0x1234, 50, protocol.MotionIdle, 3),
			path:       "/stop",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "identify bypasses controls check",
			record:     telemetryRecord(0, 50, protocol.MotionCharging, 3),
			path:       "/identify",
			wantStatus: http.StatusOK,
			wantFrame:  true,
		},
		{name: "no confirmation", mute: true, path: "/stop", wantStatus: http.StatusGatewayTimeout, wantFrame: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, tt.mute)
			tb.register(t, tt.record)

			resp, body := tb.do(t, http.MethodPost, "/shades/"+testAddress+tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}

			var result Result
			if err := json.Unmarshal(body, &result); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", body, err)
			}
			if result.OK != (tt.wantStatus == http.StatusOK) {
				t.Errorf("result = %+v", result)
			}
			if !result.OK && result.Error == "" {
				t.Error("error result without message")
			}

			frames := tb.link(testAddress).written()
			if got := len(frames) > 0; got != tt.wantFrame {
				t.Errorf("frames written = %d, wantFrame %v", len(frames), tt.wantFrame)
			}
		})
	}
}

func TestIdentifyBeeps(t *testing.T) {
	tests := []struct {
		name string
		body string
		want byte
	}{
		{"default when omitted", "", shade.DefaultIdentifyBeeps},
		{"zero sent as given", `{"beeps": 0}`, 0},
		{"explicit count", `{"beeps": 5}`, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, false)
			tb.register(t, nil)

			resp, body := tb.do(t, http.MethodPost, "/shades/"+testAddress+"/identify", tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
			}

			frames := tb.link(testAddress).written()
			if len(frames) != 1 || len(frames[0]) != 5 {
				t.Fatalf("frames = % x, want one identify frame", frames)
			}
			if got := frames[0][4]; got != tt.want {
				t.Errorf("beeps = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCommandUnknownShade(t *testing.T) {
	tb := newTestBridge(t, false)
	resp, _ := tb.do(t, http.MethodPost, "/shades/"+testAddress+"/stop", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetInfo(t *testing.T) {
	tb := newTestBridge(t, false)
	tb.register(t, nil)

	resp, body := tb.do(t, http.MethodGet, "/shades/"+testAddress+"/info", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, body)
	}
	var info shade.DeviceInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatal(err)
	}
	if info.Manufacturer != "manufacturer-value" || info.SWRev != "sw_rev-value" {
		t.Errorf("info = %+v", info)
	}

	sh, _ := tb.manager.Get(testAddress)
	if _, ok := sh.Info(); !ok {
		t.Error("info not cached after query")
	}
}

func TestEventsBroadcast(t *testing.T) {
	tb := newTestBridge(t, false)
	tb.register(t, nil)

	url := "ws" + strings.TrimPrefix(tb.http.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for tb.server.Hub().Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	tb.manager.HandleAdvertisement(advertisement(testAddress, telemetryRecord(0, 40, protocol.MotionOpening, 2)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatal(err)
	}
	if event.Type != "telemetry" || event.Shade.Address != testAddress {
		t.Errorf("event = %+v", event)
	}
	if event.Shade.Telemetry == nil || !event.Shade.Telemetry.IsOpening || event.Shade.Telemetry.Position != 40 {
		t.Errorf("telemetry = %+v", event.Shade.Telemetry)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	c := &client{hub: h, send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}

	h.Broadcast([]byte("one"))
	h.Broadcast([]byte("two"))

	if h.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", h.Clients())
	}
	if msg, ok := <-c.send; !ok || string(msg) != "one" {
		t.Errorf("first message = %q, %v", msg, ok)
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel still open")
	}
}
