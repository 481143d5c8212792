package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/albertsgarde/transformerscope/pkg/config"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// -----------------------------------------------------------------------------
// Router Tests
// -----------------------------------------------------------------------------

func TestRouterMatching(t *testing.T) {
	router := NewRouter()
	router.GET("/api/things", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, "list")
	})
	router.GET("/api/things/:id", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, PathParam(r, "id"))
	})
	router.POST("/api/things", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusCreated, "created")
	})

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantData   string
	}{
		{http.MethodGet, "/api/things", http.StatusOK, "list"},
		{http.MethodGet, "/api/things/", http.StatusOK, "list"},
		{http.MethodGet, "/api/things/42", http.StatusOK, "42"},
		{http.MethodPost, "/api/things", http.StatusCreated, "created"},
		{http.MethodDelete, "/api/things", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/api/other", http.StatusNotFound, ""},
		{http.MethodGet, "/api/things/1/2", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantData == "" {
				return
			}
			resp := parseAPIResponse(t, rec.Body)
			if resp.Data != tt.wantData {
				t.Errorf("Expected data %q, got %v", tt.wantData, resp.Data)
			}
		})
	}
}

func TestWriteTScopeErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", tserrors.ValueNotFound("x"), http.StatusNotFound},
		{"out of range", tserrors.CoordinateOutOfRange("layer", 3, 2), http.StatusNotFound},
		{"unavailable", tserrors.Newf(tserrors.ErrPayloadUnavailable, "none"), http.StatusServiceUnavailable},
		{"data", tserrors.DuplicateName("x"), http.StatusBadRequest},
		{"template", tserrors.TemplateNotSet(), http.StatusBadRequest},
		{"io", tserrors.SnapshotCorrupt("bad crc"), http.StatusUnprocessableEntity},
		{"internal", tserrors.InternalPanic("boom"), http.StatusInternalServerError},
		{"plain error", context.Canceled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteTScopeError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Middleware Tests
// -----------------------------------------------------------------------------

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := do(handler, http.MethodGet, "/", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rec.Code)
	}
	resp := parseAPIResponse(t, rec.Body)
	if resp.Error == nil || resp.Error.Code != tserrors.ErrInternalPanic {
		t.Errorf("Expected INTERNAL_PANIC, got %+v", resp.Error)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := do(handler, http.MethodGet, "/", "")
		id := rec.Header().Get(RequestIDHeader)
		if len(id) != 36 {
			t.Errorf("Expected a UUID request id, got %q", id)
		}
		if seen != id {
			t.Errorf("Expected context id %q, got %q", id, seen)
		}
	})

	t.Run("echoes upstream id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "upstream-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if id := rec.Header().Get(RequestIDHeader); id != "upstream-1" {
			t.Errorf("Expected upstream id, got %q", id)
		}
	})
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantHeader string
		wantStatus int
	}{
		{"listed origin", []string{"http://a.test"}, "http://a.test", http.MethodGet, "http://a.test", http.StatusTeapot},
		{"unlisted origin", []string{"http://a.test"}, "http://b.test", http.MethodGet, "", http.StatusTeapot},
		{"wildcard", []string{"*"}, "http://b.test", http.MethodGet, "http://b.test", http.StatusTeapot},
		{"preflight", []string{"*"}, "http://b.test", http.MethodOptions, "http://b.test", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORSMiddleware(tt.allowed)(next).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Expected allow-origin %q, got %q", tt.wantHeader, got)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Server Tests
// -----------------------------------------------------------------------------

func TestServerStartAndShutdown(t *testing.T) {
	srv := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0})
	NewHandlers(NewState(testPayload(t, "x"), ""), nil).Register(srv.Router(), srv.Hub())

	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !srv.IsRunning() || srv.Addr() == "" {
		t.Fatal("Expected server to be running with a bound address")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/payload")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("Expected request id header")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if srv.IsRunning() {
		t.Error("Expected server to be stopped")
	}
}

func TestServerStartPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	srv := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: port})
	err = srv.Start()
	if !tserrors.IsCode(err, tserrors.ErrServerStartFailed) {
		t.Fatalf("Expected SERVER_START_FAILED, got %v", err)
	}
	if srv.IsRunning() {
		t.Error("Expected server not to be running")
	}
}

// -----------------------------------------------------------------------------
// WebSocket Tests
// -----------------------------------------------------------------------------

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Failed to parse message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubRunAndStop(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Stop()
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Hub.Run did not stop after Stop was called")
	}
}

func TestWebSocketPing(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	conn := dialHub(t, hub)
	if err := conn.WriteJSON(WSMessage{Type: EventTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != EventTypePong {
		t.Errorf("Expected pong, got %s", msg.Type)
	}
}

func TestWebSocketInvalidSubscribe(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	conn := dialHub(t, hub)
	if err := conn.WriteJSON(WSMessage{Type: EventTypeSubscribe, Channels: []string{"bogus"}}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != EventTypeError {
		t.Errorf("Expected error message, got %s", msg.Type)
	}
}

func TestReloadBroadcastsPayloadLoaded(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	dir := t.TempDir()
	path := dir + "/p.tsp"
	if err := testPayload(t, "x").Save(path); err != nil {
		t.Fatal(err)
	}
	state := NewState(nil, path)
	hub.Follow(state)

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	pl, err := state.Reload("")
	if err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, conn)
	if msg.Type != EventTypePayloadLoaded {
		t.Fatalf("Expected %s, got %s", EventTypePayloadLoaded, msg.Type)
	}
	data := msg.Data.(map[string]interface{})
	if data["id"] != pl.ID().String() || data["numLayers"] != float64(2) || data["source"] != path {
		t.Errorf("Unexpected payload_loaded data: %v", data)
	}
}

func TestFollowGreetsAndReportsFailedReload(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	pl := testPayload(t, "x")
	state := NewState(pl, "")
	hub.Follow(state)

	conn := dialHub(t, hub)
	greeting := readMessage(t, conn)
	if greeting.Type != EventTypePayloadLoaded {
		t.Fatalf("Expected greeting %s, got %s", EventTypePayloadLoaded, greeting.Type)
	}
	if id := greeting.Data.(map[string]interface{})["id"]; id != pl.ID().String() {
		t.Errorf("Expected greeting for %s, got %v", pl.ID(), id)
	}
	waitForClients(t, hub, 1)

	missing := t.TempDir() + "/missing.tsp"
	if _, err := state.Reload(missing); err == nil {
		t.Fatal("Expected reload of a missing file to fail")
	}

	msg := readMessage(t, conn)
	if msg.Type != EventTypeReloadFailed {
		t.Fatalf("Expected %s, got %s", EventTypeReloadFailed, msg.Type)
	}
	data := msg.Data.(map[string]interface{})
	if data["code"] != tserrors.ErrIOReadFailed || data["source"] != missing {
		t.Errorf("Unexpected reload_failed data: %v", data)
	}
	if got, _ := state.Payload(); got != pl {
		t.Error("Expected the previous payload to stay in place")
	}
}
