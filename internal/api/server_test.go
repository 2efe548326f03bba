package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/smart-inventory-core/internal/accesspoint"
	"github.com/nerrad567/smart-inventory-core/internal/auth"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/config"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/logging"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/metrics"
	"github.com/nerrad567/smart-inventory-core/internal/inventory"
	"github.com/nerrad567/smart-inventory-core/internal/lighting"
	"github.com/nerrad567/smart-inventory-core/internal/recognition"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// ─── Fakes ─────────────────────────────────────────────────────────

type identifyCall struct {
	device string
	image  []byte
	actor  auth.Actor
}

type fakeAccessPoints struct {
	mu          sync.Mutex
	calls       []identifyCall
	identifyErr error

	scanPage   inventory.Page[inventory.ScanHistory]
	scanErr    error
	scanActor  auth.Actor
	scanDevice string
	scanPaging [2]int
}

func (f *fakeAccessPoints) IdentifyItem(ctx context.Context, deviceExternalID string, image []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, identifyCall{
		device: deviceExternalID,
		image:  append([]byte(nil), image...),
		actor:  auth.ActorFromContext(ctx),
	})
	return f.identifyErr
}

func (f *fakeAccessPoints) ListScanHistory(ctx context.Context, deviceID string, page, size int) (inventory.Page[inventory.ScanHistory], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanActor = auth.ActorFromContext(ctx)
	f.scanDevice = deviceID
	f.scanPaging = [2]int{page, size}
	return f.scanPage, f.scanErr
}

type shelfCall struct {
	op       string
	device   string
	position int
	isLitUp  bool
}

type fakeShelfControllers struct {
	mu    sync.Mutex
	calls []shelfCall

	statusErr error
	motionErr error

	updateEntry   *inventory.ItemHistory
	updateErr     error
	updateItem    string
	updateTaken   bool
	updateComment string

	historyPage inventory.Page[inventory.ItemHistory]
	historyErr  error

	lightShelf *inventory.Shelf
	lightErr   error
	lightArgs  []string
	lightOn    bool
}

func (f *fakeShelfControllers) SetShelfLightStatus(_ context.Context, deviceExternalID string, position int, isLitUp bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, shelfCall{op: "status", device: deviceExternalID, position: position, isLitUp: isLitUp})
	return f.statusErr
}

func (f *fakeShelfControllers) HandleMotion(_ context.Context, deviceExternalID string, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, shelfCall{op: "motion", device: deviceExternalID, position: position})
	return f.motionErr
}

func (f *fakeShelfControllers) UpdateItemStatus(_ context.Context, itemID string, isTaken bool, comment string) (*inventory.ItemHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateItem, f.updateTaken, f.updateComment = itemID, isTaken, comment
	return f.updateEntry, f.updateErr
}

func (f *fakeShelfControllers) SetShelfLight(_ context.Context, shelfID, itemID string, isLitUp bool) (*inventory.Shelf, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lightArgs, f.lightOn = []string{shelfID, itemID}, isLitUp
	return f.lightShelf, f.lightErr
}

func (f *fakeShelfControllers) ListItemHistory(_ context.Context, _ string, _, _ int) (inventory.Page[inventory.ItemHistory], error) {
	return f.historyPage, f.historyErr
}

type fakeChecker struct{ err error }

func (c fakeChecker) HealthCheck(context.Context) error { return c.err }

// ─── Helpers ───────────────────────────────────────────────────────

type testEnv struct {
	srv    *Server
	router http.Handler
	aps    *fakeAccessPoints
	shelf  *fakeShelfControllers
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// testServer creates a Server over fake services. mutate may adjust deps
// before construction.
func testServer(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()

	env := &testEnv{aps: &fakeAccessPoints{}, shelf: &fakeShelfControllers{}}
	log := testLogger()
	deps := Deps{
		Config: config.APIConfig{
			Host:           "127.0.0.1",
			Port:           0,
			Timeouts:       config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			MaxUploadBytes: 1 << 20,
		},
		WS: testWSConfig(),
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15},
		},
		Logger:           log,
		AccessPoints:     env.aps,
		ShelfControllers: env.shelf,
		Version:          "test",
	}
	for _, m := range mutate {
		m(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if srv.hub == nil {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		srv.hub = NewHub(srv.wsCfg, log)
		go srv.hub.Run(ctx)
	}

	env.srv = srv
	env.router = srv.buildRouter()
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, actor auth.Actor) string {
	t.Helper()
	token, err := auth.GenerateAccessToken(actor, testJWTSecret, 5)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return "Bearer " + token
}

var memberOfG1 = auth.Actor{ID: "user-1", Role: auth.RoleUser, GroupIDs: []string{"g1"}}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal error body %q: %v", w.Body.String(), err)
	}
	return e
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_Degraded(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.HealthChecks = map[string]HealthChecker{
			"database": fakeChecker{},
			"mqtt":     fakeChecker{err: errors.New("not connected")},
		}
	})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Checks["database"] != "ok" || resp.Checks["mqtt"] != "not connected" {
		t.Errorf("checks = %v", resp.Checks)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	env := testServer(t)
	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	env := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")

	w := env.do(t, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	w := env.do(t, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t)
	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.New("inventory")
	env := testServer(t, func(d *Deps) {
		d.Collector = collector
		d.Metrics = config.MetricsConfig{Enabled: true, Path: "/metrics"}
	})

	env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	w := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "inventory_http_requests_total") {
		t.Error("exposition missing inventory_http_requests_total")
	}
	if !strings.Contains(body, `route="/api/v1/health"`) {
		t.Error("request metrics should be labelled with the route pattern")
	}
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Collector = metrics.New("inventory")
		d.Metrics = config.MetricsConfig{Enabled: false}
	})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Identify By Image ─────────────────────────────────────────────

const identifyPath = "/api/v1/access-points/ap-guid/items/identify-by-image"

func TestIdentifyByImage_RawBody(t *testing.T) {
	env := testServer(t)
	req := httptest.NewRequest(http.MethodPost, identifyPath, bytes.NewReader([]byte("jpeg-bytes")))
	req.Header.Set("Content-Type", "image/jpeg")

	w := env.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(env.aps.calls) != 1 {
		t.Fatalf("IdentifyItem calls = %d, want 1", len(env.aps.calls))
	}
	call := env.aps.calls[0]
	if call.device != "ap-guid" {
		t.Errorf("device = %q, want ap-guid", call.device)
	}
	if string(call.image) != "jpeg-bytes" {
		t.Errorf("image = %q, want jpeg-bytes", call.image)
	}
	if !call.actor.IsAnonymous() {
		t.Errorf("device call should run as anonymous actor, got %+v", call.actor)
	}
}

func TestIdentifyByImage_Multipart(t *testing.T) {
	env := testServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(imageFormField, "shot.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, identifyPath, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := env.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := string(env.aps.calls[0].image); got != "png-bytes" {
		t.Errorf("image = %q, want png-bytes", got)
	}
}

func TestIdentifyByImage_MultipartWithoutImageField(t *testing.T) {
	env := testServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("note", "no image here"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, identifyPath, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	env.do(t, req)

	if len(env.aps.calls) != 1 || len(env.aps.calls[0].image) != 0 {
		t.Fatalf("expected one call with an empty image, got %+v", env.aps.calls)
	}
}

func TestIdentifyByImage_ErrorMapping(t *testing.T) {
	deviceFailure := fmt.Errorf("identify item: %w", &lighting.DeviceError{
		DeviceID: "rack-1",
		Method:   lighting.MethodTurnOnLight,
		Cause:    lighting.ErrAckTimeout,
	})

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"not found", nil, http.StatusOK, ""},
		{"unknown device", fmt.Errorf("resolve: %w", inventory.ErrDeviceNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"empty image", fmt.Errorf("%w: image is empty", accesspoint.ErrInvalidInput), http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid image", fmt.Errorf("%w: gif", recognition.ErrInvalidImage), http.StatusBadRequest, ErrCodeBadRequest},
		{"light failure", deviceFailure, http.StatusBadGateway, ErrCodeDeviceFailure},
		{"storage failure", errors.New("disk I/O error"), http.StatusInternalServerError, ErrCodeInternal},
		{"shelf controller unresolved", fmt.Errorf("%w: controller c1: %v", accesspoint.ErrLightTargetUnresolved, inventory.ErrDeviceNotFound), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.aps.identifyErr = tt.err

			w := env.do(t, httptest.NewRequest(http.MethodPost, identifyPath, strings.NewReader("img")))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantErr == "" {
				return
			}
			e := decodeError(t, w)
			if e.Code != tt.wantErr || e.Status != tt.wantCode {
				t.Errorf("error body = %+v, want code %q", e, tt.wantErr)
			}
			if strings.Contains(e.Message, "rack-1") || strings.Contains(e.Message, "disk") {
				t.Errorf("error message leaks internals: %q", e.Message)
			}
		})
	}
}

func TestIdentifyByImage_TooLarge(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.Config.MaxUploadBytes = 16 })

	w := env.do(t, httptest.NewRequest(http.MethodPost, identifyPath, bytes.NewReader(make([]byte, 64))))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
	if len(env.aps.calls) != 0 {
		t.Error("oversized upload must not reach identification")
	}
}

// ─── Shelf Controllers ─────────────────────────────────────────────

func TestSetShelfStatus(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		statusErr error
		wantCode  int
		wantCall  bool
	}{
		{"lit", "/api/v1/shelf-controllers/rack/shelves/2/status", `{"is_lit_up":true}`, nil, http.StatusOK, true},
		{"missing field", "/api/v1/shelf-controllers/rack/shelves/2/status", `{}`, nil, http.StatusBadRequest, false},
		{"bad json", "/api/v1/shelf-controllers/rack/shelves/2/status", `{`, nil, http.StatusBadRequest, false},
		{"zero position", "/api/v1/shelf-controllers/rack/shelves/0/status", `{"is_lit_up":true}`, nil, http.StatusBadRequest, false},
		{"text position", "/api/v1/shelf-controllers/rack/shelves/top/status", `{"is_lit_up":true}`, nil, http.StatusBadRequest, false},
		{"unknown shelf", "/api/v1/shelf-controllers/rack/shelves/9/status", `{"is_lit_up":false}`, inventory.ErrShelfNotFound, http.StatusNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.shelf.statusErr = tt.statusErr

			w := env.do(t, httptest.NewRequest(http.MethodPatch, tt.path, strings.NewReader(tt.body)))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if got := len(env.shelf.calls) == 1; got != tt.wantCall {
				t.Fatalf("service called = %v, want %v", got, tt.wantCall)
			}
		})
	}
}

func TestSetShelfStatus_PassesValues(t *testing.T) {
	env := testServer(t)

	env.do(t, httptest.NewRequest(http.MethodPatch,
		"/api/v1/shelf-controllers/rack-7/shelves/3/status", strings.NewReader(`{"is_lit_up":true}`)))

	want := shelfCall{op: "status", device: "rack-7", position: 3, isLitUp: true}
	if len(env.shelf.calls) != 1 || env.shelf.calls[0] != want {
		t.Errorf("calls = %+v, want [%+v]", env.shelf.calls, want)
	}
}

func TestShelfMovement(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"handled", nil, http.StatusOK},
		{"unknown device", inventory.ErrDeviceNotFound, http.StatusNotFound},
		{"light failure", &lighting.DeviceError{DeviceID: "rack", Cause: lighting.ErrAckTimeout}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.shelf.motionErr = tt.err

			w := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/shelf-controllers/rack/shelves/1/movements", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if len(env.shelf.calls) != 1 || env.shelf.calls[0].op != "motion" {
				t.Errorf("calls = %+v, want one motion call", env.shelf.calls)
			}
		})
	}
}

// ─── Authenticated Routes ──────────────────────────────────────────

func TestProtectedRoutes_RequireToken(t *testing.T) {
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/access-points/dev-1/scans-history"},
		{http.MethodPatch, "/api/v1/items/item-1/status"},
		{http.MethodGet, "/api/v1/items/item-1/history"},
		{http.MethodPatch, "/api/v1/shelves/shelf-1/status"},
		{http.MethodPost, "/api/v1/auth/ws-ticket"},
	}
	headers := []struct {
		name  string
		value func(t *testing.T) string
	}{
		{"no token", func(*testing.T) string { return "" }},
		{"not bearer", func(*testing.T) string { return "Basic dXNlcjpwYXNz" }},
		{"bad signature", func(*testing.T) string { return "Bearer not.a.jwt" }},
		{"device role", func(t *testing.T) string { return bearer(t, auth.Actor{ID: "ap-1", Role: auth.RoleDevice}) }},
	}

	for _, rt := range routes {
		for _, h := range headers {
			t.Run(rt.method+" "+rt.path+" "+h.name, func(t *testing.T) {
				env := testServer(t)
				req := httptest.NewRequest(rt.method, rt.path, strings.NewReader(`{"is_taken":true}`))
				if v := h.value(t); v != "" {
					req.Header.Set("Authorization", v)
				}

				w := env.do(t, req)

				if w.Code != http.StatusUnauthorized {
					t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
				}
			})
		}
	}
}

func TestListScanHistory(t *testing.T) {
	env := testServer(t)
	env.aps.scanPage = inventory.Page[inventory.ScanHistory]{
		Items:      []inventory.ScanHistory{{ID: "s1", DeviceID: "dev-1", ScanType: inventory.ScanTypeCode, Result: inventory.ScanResultFound}},
		PageNumber: 2,
		PageSize:   5,
		TotalItems: 6,
		TotalPages: 2,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/access-points/dev-1/scans-history?page=2&size=5", nil)
	req.Header.Set("Authorization", bearer(t, memberOfG1))
	w := env.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if env.aps.scanDevice != "dev-1" || env.aps.scanPaging != [2]int{2, 5} {
		t.Errorf("service got device %q paging %v", env.aps.scanDevice, env.aps.scanPaging)
	}
	if env.aps.scanActor.ID != memberOfG1.ID {
		t.Errorf("actor = %+v, want %s", env.aps.scanActor, memberOfG1.ID)
	}

	var page inventory.Page[inventory.ScanHistory]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Items) != 1 || page.TotalItems != 6 {
		t.Errorf("page = %+v", page)
	}
}

func TestListScanHistory_Errors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		err      error
		wantCode int
	}{
		{"bad page", "?page=x", nil, http.StatusBadRequest},
		{"negative size", "?size=-1", nil, http.StatusBadRequest},
		{"other group", "", auth.ErrForbidden, http.StatusForbidden},
		{"unknown device", "", inventory.ErrDeviceNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.aps.scanErr = tt.err

			req := httptest.NewRequest(http.MethodGet, "/api/v1/access-points/dev-1/scans-history"+tt.query, nil)
			req.Header.Set("Authorization", bearer(t, memberOfG1))
			w := env.do(t, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestUpdateItemStatus(t *testing.T) {
	env := testServer(t)
	env.shelf.updateEntry = &inventory.ItemHistory{
		ID:      "h1",
		ItemID:  "item-1",
		Type:    inventory.ItemHistoryManual,
		IsTaken: true,
		Comment: "borrowed",
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/items/item-1/status",
		strings.NewReader(`{"is_taken":true,"comment":"borrowed"}`))
	req.Header.Set("Authorization", bearer(t, memberOfG1))
	w := env.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if env.shelf.updateItem != "item-1" || !env.shelf.updateTaken || env.shelf.updateComment != "borrowed" {
		t.Errorf("service got item=%q taken=%v comment=%q",
			env.shelf.updateItem, env.shelf.updateTaken, env.shelf.updateComment)
	}

	var entry inventory.ItemHistory
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Type != inventory.ItemHistoryManual || !entry.IsTaken {
		t.Errorf("entry = %+v", entry)
	}
}

func TestUpdateItemStatus_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"missing is_taken", `{"comment":"x"}`, nil, http.StatusBadRequest},
		{"comment too long", `{"is_taken":false,"comment":"` + strings.Repeat("a", maxCommentLength+1) + `"}`, nil, http.StatusBadRequest},
		{"unknown item", `{"is_taken":false}`, inventory.ErrItemNotFound, http.StatusNotFound},
		{"other group", `{"is_taken":false}`, auth.ErrForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.shelf.updateErr = tt.err

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/items/item-1/status", strings.NewReader(tt.body))
			req.Header.Set("Authorization", bearer(t, memberOfG1))
			w := env.do(t, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestSetShelfLight(t *testing.T) {
	env := testServer(t)
	env.shelf.lightShelf = &inventory.Shelf{ID: "shelf-1", GroupID: "g1", IsLitUp: true}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/shelves/shelf-1/status",
		strings.NewReader(`{"item_id":"item-1","is_lit_up":true}`))
	req.Header.Set("Authorization", bearer(t, memberOfG1))
	w := env.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(env.shelf.lightArgs) != 2 || env.shelf.lightArgs[0] != "shelf-1" || env.shelf.lightArgs[1] != "item-1" || !env.shelf.lightOn {
		t.Errorf("service got args=%v on=%v", env.shelf.lightArgs, env.shelf.lightOn)
	}

	var shelf inventory.Shelf
	if err := json.Unmarshal(w.Body.Bytes(), &shelf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if shelf.ID != "shelf-1" || !shelf.IsLitUp {
		t.Errorf("shelf = %+v", shelf)
	}
}

func TestSetShelfLight_Errors(t *testing.T) {
	deviceFailure := &lighting.DeviceError{DeviceID: "rack-1", Method: lighting.MethodTurnOnLight, Status: 500}

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing item_id", `{"is_lit_up":true}`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing is_lit_up", `{"item_id":"item-1"}`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown shelf", `{"item_id":"item-1","is_lit_up":true}`, inventory.ErrShelfNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"other group", `{"item_id":"item-1","is_lit_up":true}`, auth.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
		{"device failure", `{"item_id":"item-1","is_lit_up":true}`, deviceFailure, http.StatusBadGateway, ErrCodeDeviceFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.shelf.lightErr = tt.err

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/shelves/shelf-1/status", strings.NewReader(tt.body))
			req.Header.Set("Authorization", bearer(t, memberOfG1))
			w := env.do(t, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if got := decodeError(t, w).Code; got != tt.wantErr {
				t.Errorf("error code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestListItemHistory(t *testing.T) {
	env := testServer(t)
	env.shelf.historyPage = inventory.Page[inventory.ItemHistory]{
		Items:      []inventory.ItemHistory{{ID: "h1", ItemID: "item-1", Type: inventory.ItemHistoryScan}},
		PageNumber: 1,
		PageSize:   10,
		TotalItems: 1,
		TotalPages: 1,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/item-1/history", nil)
	req.Header.Set("Authorization", bearer(t, memberOfG1))
	w := env.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var page inventory.Page[inventory.ItemHistory]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "h1" {
		t.Errorf("page = %+v", page)
	}
}

// ─── WebSocket Tickets ─────────────────────────────────────────────

func TestWSTicket_SingleUse(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/ws-ticket", nil)
	req.Header.Set("Authorization", bearer(t, memberOfG1))
	w := env.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ticket, ok := resp["ticket"].(string)
	if !ok || ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}

	actor, ok := env.srv.tickets.consume(ticket)
	if !ok {
		t.Fatal("ticket should be valid on first use")
	}
	if actor.ID != memberOfG1.ID {
		t.Errorf("ticket actor = %q, want %q", actor.ID, memberOfG1.ID)
	}
	if _, ok := env.srv.tickets.consume(ticket); ok {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_Expiry(t *testing.T) {
	store := newTicketStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	ticket := store.issue(memberOfG1)
	store.now = func() time.Time { return base.Add(ticketTTL + time.Second) }

	if _, ok := store.consume(ticket); ok {
		t.Error("expired ticket should not be valid")
	}
}

func TestWSTicket_CleanExpired(t *testing.T) {
	store := newTicketStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	store.issue(memberOfG1)
	fresh := store.issue(memberOfG1)

	store.now = func() time.Time { return base.Add(ticketTTL + time.Second) }
	store.tickets[fresh] = ticketEntry{actor: memberOfG1, expiresAt: base.Add(2 * ticketTTL)}
	store.cleanExpired()

	if len(store.tickets) != 1 {
		t.Fatalf("tickets after clean = %d, want 1", len(store.tickets))
	}
	if _, ok := store.tickets[fresh]; !ok {
		t.Error("unexpired ticket was removed")
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testWSConfig(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(hub *Hub, actor auth.Actor, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
		actor:         actor,
	}
	hub.Register(client)
	return client
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, memberOfG1, inventory.EventShelfLightChanged)

	hub.Broadcast(inventory.EventShelfLightChanged, inventory.LightEvent{ShelfID: "s1", GroupID: "g1", IsLitUp: true})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != inventory.EventShelfLightChanged {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, inventory.EventShelfLightChanged)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestWSClient_Subscribe(t *testing.T) {
	tests := []struct {
		name     string
		channels []string
		wantType string
		wantSub  bool
	}{
		{name: "known channel", channels: []string{inventory.EventShelfLightChanged}, wantType: WSTypeResponse, wantSub: true},
		{name: "unknown channel", channels: []string{"device.state_changed"}, wantType: WSTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newTestHub(t)
			client := newTestClient(hub, memberOfG1)

			data, err := json.Marshal(WSMessage{Type: WSTypeSubscribe, ID: "7", Payload: WSSubscribePayload{Channels: tt.channels}})
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			client.handleMessage(data)

			var reply WSMessage
			select {
			case msg := <-client.send:
				if err := json.Unmarshal(msg, &reply); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for reply")
			}
			if reply.Type != tt.wantType || reply.ID != "7" {
				t.Errorf("reply = %+v, want type %q", reply, tt.wantType)
			}
			if got := client.isSubscribed(tt.channels[0]); got != tt.wantSub {
				t.Errorf("isSubscribed = %v, want %v", got, tt.wantSub)
			}
		})
	}
}

func TestWSClient_UnsubscribeAndUnknownType(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, memberOfG1)
	client.setSubscribed([]string{inventory.EventScanRecorded}, true)

	reply := func(raw string) WSMessage {
		t.Helper()
		client.handleMessage([]byte(raw))
		var msg WSMessage
		select {
		case data := <-client.send:
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for reply")
		}
		return msg
	}

	if got := reply(`{"type":"unsubscribe","id":"2","payload":{"channels":["scan.recorded"]}}`); got.Type != WSTypeResponse {
		t.Errorf("unsubscribe reply = %+v", got)
	}
	if client.isSubscribed(inventory.EventScanRecorded) {
		t.Error("still subscribed after unsubscribe")
	}
	if got := reply(`{"type":"ping","id":"3"}`); got.Type != WSTypeError || got.ID != "3" {
		t.Errorf("ping reply = %+v, want error", got)
	}
	if got := reply(`not json`); got.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v, want error", got)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, memberOfG1, inventory.EventScanRecorded)

	hub.Broadcast(inventory.EventShelfLightChanged, inventory.LightEvent{ShelfID: "s1", GroupID: "g1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_GroupScoping(t *testing.T) {
	hub := newTestHub(t)
	member := newTestClient(hub, memberOfG1, inventory.EventScanRecorded)
	outsider := newTestClient(hub, auth.Actor{ID: "user-2", Role: auth.RoleUser, GroupIDs: []string{"g2"}}, inventory.EventScanRecorded)
	admin := newTestClient(hub, auth.Actor{ID: "admin", Role: auth.RoleAdmin}, inventory.EventScanRecorded)

	hub.Broadcast(inventory.EventScanRecorded, inventory.ScanEvent{DeviceID: "d1", GroupID: "g1"})

	for name, c := range map[string]*WSClient{"member": member, "admin": admin} {
		select {
		case <-c.send:
		case <-time.After(time.Second):
			t.Errorf("%s did not receive the group event", name)
		}
	}
	select {
	case <-outsider.send:
		t.Error("client of another group received the event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := newTestHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := newTestClient(hub, memberOfG1)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestWebSocket_RejectsMissingTicket(t *testing.T) {
	env := testServer(t)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/ws?ticket=unknown", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestWebSocket_EndToEnd(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ticket := env.srv.tickets.issue(memberOfG1)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.Body != nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain
		resp.Body.Close()
	}

	sub := WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{inventory.EventScanRecorded}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("subscribe response = %+v", ack)
	}

	env.srv.hub.Broadcast(inventory.EventScanRecorded, inventory.ScanEvent{DeviceID: "d1", GroupID: "g1", Result: inventory.ScanResultFound})

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != inventory.EventScanRecorded {
		t.Errorf("event = %+v", event)
	}
}
