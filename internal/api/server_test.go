package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/motion-bridge/internal/capture"
	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/gesture"
	"github.com/nerrad567/motion-bridge/internal/hardware"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/config"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/motion-bridge/internal/notify"
	"github.com/nerrad567/motion-bridge/internal/sampler"
	"github.com/nerrad567/motion-bridge/internal/server"
)

// ─── Fakes ─────────────────────────────────────────────────────────

type fakeProtocol struct {
	mu            sync.Mutex
	respondToExit bool
	lastClient    net.Addr
}

func (f *fakeProtocol) LastClient() net.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastClient
}

func (f *fakeProtocol) RespondToExit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.respondToExit
}

func (f *fakeProtocol) SetRespondToExit(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respondToExit = v
}

func (f *fakeProtocol) Stats() server.Stats {
	return server.Stats{Requests: 10, Unknown: 2, Errors: 1}
}

type fakeSampler struct{}

func (fakeSampler) Stats() sampler.Stats {
	return sampler.Stats{Ticks: 500, Samples: 450, ReadErrors: 3}
}

type fakeTester struct {
	mu      sync.Mutex
	rumbled []int
	beeped  []int
	err     error
}

func (f *fakeTester) TestRumble(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rumbled = append(f.rumbled, id)
	return f.err
}

func (f *fakeTester) TestSpeaker(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beeped = append(f.beeped, id)
	return f.err
}

type fakeCaptures struct {
	records []capture.Record
	samples map[string][]device.Sample
	filter  capture.Filter
}

func (f *fakeCaptures) Save(_ context.Context, rec capture.Record, _ []device.Sample) (capture.Record, error) {
	return rec, nil
}

func (f *fakeCaptures) List(_ context.Context, filter capture.Filter) ([]capture.Record, error) {
	f.filter = filter
	return f.records, nil
}

func (f *fakeCaptures) Samples(_ context.Context, id string) ([]device.Sample, error) {
	s, ok := f.samples[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", capture.ErrNotFound, id)
	}
	return s, nil
}

// ─── Helpers ───────────────────────────────────────────────────────

type testEnv struct {
	srv      *Server
	registry *device.Registry
	protocol *fakeProtocol
	tester   *fakeTester
	captures *fakeCaptures
	queue    *notify.Queue
	history  *notify.History
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "discard"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sim := hardware.NewSimulated(2, 1, nil)
	controllers, err := sim.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	for _, c := range controllers {
		if err := c.Connect(); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
	}

	env := &testEnv{
		registry: device.NewRegistry(controllers, device.Options{}),
		protocol: &fakeProtocol{},
		tester:   &fakeTester{},
		captures: &fakeCaptures{samples: map[string][]device.Sample{}},
		queue:    notify.NewQueue(notify.Options{Size: 8}),
		history:  notify.NewHistory(10),
	}

	hub := NewHub(testWSConfig(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	env.srv, err = New(Deps{
		Config:        config.APIConfig{Host: "127.0.0.1", Port: 0, Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		WS:            testWSConfig(),
		Logger:        testLogger(),
		Registry:      env.registry,
		Protocol:      env.protocol,
		Sampler:       fakeSampler{},
		Notifications: env.queue,
		History:       env.history,
		Tester:        env.tester,
		Captures:      env.captures,
		Hub:           hub,
		Version:       "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

// ─── Tests ─────────────────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps should fail")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, want client-id-1", got)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.protocol.lastClient = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
	env.protocol.respondToExit = true

	rec := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[StatusResponse](t, rec)
	if body.Devices != 2 || !body.RespondToExit || body.LastClient != "127.0.0.1:50000" {
		t.Errorf("body = %+v", body)
	}
	if body.Protocol.Requests != 10 || body.Sampler.Samples != 450 {
		t.Errorf("counters = %+v / %+v", body.Protocol, body.Sampler)
	}
}

func TestListDevices(t *testing.T) {
	env := newTestEnv(t)
	if err := env.registry.StartCapture(1, time.Now()); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/devices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[struct {
		Devices []DeviceResponse `json:"devices"`
		Count   int              `json:"count"`
	}](t, rec)

	if body.Count != 2 || len(body.Devices) != 2 {
		t.Fatalf("count = %d", body.Count)
	}
	if body.Devices[0].Index != 1 || body.Devices[0].Capturing {
		t.Errorf("device 0 = %+v", body.Devices[0])
	}
	if body.Devices[1].Index != 2 || !body.Devices[1].Capturing {
		t.Errorf("device 1 = %+v", body.Devices[1])
	}
	if body.Devices[0].Extension != "none" {
		t.Errorf("extension = %q, want none", body.Devices[0].Extension)
	}
}

func TestManualTests(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		testerErr  error
		wantStatus int
	}{
		{"rumble ok", "/api/v1/devices/1/test-rumble", nil, http.StatusOK},
		{"speaker ok", "/api/v1/devices/2/test-speaker", nil, http.StatusOK},
		{"index zero", "/api/v1/devices/0/test-rumble", nil, http.StatusNotFound},
		{"index too high", "/api/v1/devices/3/test-speaker", nil, http.StatusNotFound},
		{"index not a number", "/api/v1/devices/abc/test-rumble", nil, http.StatusBadRequest},
		{"hardware failure", "/api/v1/devices/1/test-speaker", hardware.ErrHardwareFailure, http.StatusBadGateway},
		{"unexpected error", "/api/v1/devices/1/test-rumble", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.tester.err = tt.testerErr

			rec := env.do(t, http.MethodPost, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/devices/2/test-rumble", nil)
	env.do(t, http.MethodPost, "/api/v1/devices/1/test-speaker", nil)
	if len(env.tester.rumbled) != 1 || env.tester.rumbled[0] != 1 {
		t.Errorf("rumbled = %v, want [1]", env.tester.rumbled)
	}
	if len(env.tester.beeped) != 1 || env.tester.beeped[0] != 0 {
		t.Errorf("beeped = %v, want [0]", env.tester.beeped)
	}
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.history.Consume(notify.Notification{Message: "User connected!", Time: now})
	env.history.Consume(notify.Notification{Message: "User disconnected.", Time: now})

	rec := env.do(t, http.MethodGet, "/api/v1/notifications", nil)
	body := decode[struct {
		Notifications []notify.Notification `json:"notifications"`
		Count         int                   `json:"count"`
	}](t, rec)

	if body.Count != 2 || body.Notifications[0].Message != "User connected!" {
		t.Errorf("body = %+v", body)
	}
}

func TestSetRespondToExit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       bool
	}{
		{"enable", `{"enabled": true}`, http.StatusOK, true},
		{"disable", `{"enabled": false}`, http.StatusOK, false},
		{"missing field", `{}`, http.StatusBadRequest, false},
		{"invalid json", `{`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPut, "/api/v1/settings/respond-to-exit", []byte(tt.body))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if env.protocol.RespondToExit() != tt.want {
				t.Errorf("RespondToExit() = %v, want %v", env.protocol.RespondToExit(), tt.want)
			}
		})
	}
}

func TestListCaptures(t *testing.T) {
	env := newTestEnv(t)
	env.captures.records = []capture.Record{{
		ID:       "cap-1",
		DeviceID: 0,
		Duration: 1500 * time.Millisecond,
		Matched:  4,
		Encoding: capture.EncodingZstd,
	}}

	rec := env.do(t, http.MethodGet, "/api/v1/captures?device=1&limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[struct {
		Captures []CaptureResponse `json:"captures"`
	}](t, rec)
	if len(body.Captures) != 1 || body.Captures[0].ID != "cap-1" || body.Captures[0].DurationMS != 1500 {
		t.Errorf("captures = %+v", body.Captures)
	}
	if env.captures.filter.DeviceID == nil || *env.captures.filter.DeviceID != 0 || env.captures.filter.Limit != 5 {
		t.Errorf("filter = %+v", env.captures.filter)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/captures?limit=-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestCaptureSamples(t *testing.T) {
	env := newTestEnv(t)
	env.captures.samples["cap-1"] = []device.Sample{{X: 0.1, Y: 0.2, Z: 1}}

	rec := env.do(t, http.MethodGet, "/api/v1/captures/cap-1/samples", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[struct {
		Samples []device.Sample `json:"samples"`
	}](t, rec)
	if len(body.Samples) != 1 || body.Samples[0].Z != 1 {
		t.Errorf("samples = %+v", body.Samples)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/captures/cap-missing/samples", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing capture status = %d, want 404", rec.Code)
	}
}

func TestCapturesDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.srv.captures = nil

	for _, path := range []string{"/api/v1/captures", "/api/v1/captures/cap-1/samples"} {
		if rec := env.do(t, http.MethodGet, path, nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStartAndClose(t *testing.T) {
	env := newTestEnv(t)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + env.srv.Addr().String() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// ─── Hub Tests ─────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelCaptureComplete: {}},
	}
	hub.Register(client)

	err := hub.PublishCapture(gesture.Result{
		Capture: device.Capture{DeviceID: 1, Samples: make([]device.Sample, 3)},
		Matched: 2,
	})
	if err != nil {
		t.Fatalf("PublishCapture() error = %v", err)
	}

	select {
	case msg := <-client.send:
		var wsMsg struct {
			EventType string        `json:"event_type"`
			Payload   gesture.Event `json:"payload"`
		}
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelCaptureComplete || wsMsg.Payload.Index != 2 || wsMsg.Payload.Samples != 3 {
			t.Errorf("message = %+v", wsMsg)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelCaptureComplete: {}},
	}
	hub.Register(client)

	hub.Consume(notify.Notification{Message: "User connected!", Time: time.Now()})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client) // second unregister must not double-close
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_DropsWhenClientBufferFull(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{ChannelNotification: {}},
	}
	hub.Register(client)

	for i := 0; i < 3; i++ {
		hub.Consume(notify.Notification{Message: "User connected!", Time: time.Now()})
	}

	if got := hub.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if len(client.send) != 1 {
		t.Errorf("queued = %d, want 1", len(client.send))
	}
}

func TestWSClient_Subscription(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantType string
		wantSub  bool
	}{
		{"subscribe known channel", `{"type":"subscribe","id":"a","payload":{"channels":["capture.completed"]}}`, WSTypeResponse, true},
		{"subscribe unknown channel", `{"type":"subscribe","id":"b","payload":{"channels":["nope"]}}`, WSTypeError, false},
		{"bad payload", `{"type":"subscribe","id":"c","payload":{"channels":"x"}}`, WSTypeError, false},
		{"ping", `{"type":"ping","id":"d"}`, WSTypePong, false},
		{"unknown type", `{"type":"shout","id":"e"}`, WSTypeError, false},
		{"invalid json", `{`, WSTypeError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(testWSConfig(), testLogger())
			client := &WSClient{
				hub:           hub,
				send:          make(chan []byte, wsSendBufferSize),
				subscriptions: make(map[string]struct{}),
			}

			client.handle([]byte(tt.message))

			var resp WSMessage
			if err := json.Unmarshal(<-client.send, &resp); err != nil {
				t.Fatalf("unmarshal reply: %v", err)
			}
			if resp.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q", resp.Type, tt.wantType)
			}
			if got := client.subscribed(ChannelCaptureComplete); got != tt.wantSub {
				t.Errorf("subscribed = %v, want %v", got, tt.wantSub)
			}
		})
	}
}

func TestWSClient_Unsubscribe(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelNotification: {}},
	}

	client.handle([]byte(`{"type":"unsubscribe","id":"1","payload":{"channels":["notification"]}}`))
	<-client.send

	if client.subscribed(ChannelNotification) {
		t.Error("client still subscribed after unsubscribe")
	}
}

func TestWebSocket_NotificationStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	sub := `{"type":"subscribe","id":"1","payload":{"channels":["notification"]}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var resp WSMessage
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("reading subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	env.srv.hub.Consume(notify.Notification{Message: "Testing rumble 0", Time: time.Now()})

	var ev struct {
		Type      string              `json:"type"`
		EventType string              `json:"event_type"`
		Payload   notify.Notification `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Type != WSTypeEvent || ev.EventType != ChannelNotification || ev.Payload.Message != "Testing rumble 0" {
		t.Errorf("event = %+v", ev)
	}
}
