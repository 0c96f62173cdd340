package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/heatpump-sync/internal/attribute"
	"github.com/nerrad567/heatpump-sync/internal/bridges/heatpump"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/config"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/database"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/logging"
	"github.com/nerrad567/heatpump-sync/internal/myuplink"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
	"github.com/nerrad567/heatpump-sync/internal/settings"
	"github.com/nerrad567/heatpump-sync/internal/writelog"
	_ "github.com/nerrad567/heatpump-sync/migrations"
)

const (
	testDevice = "hp1"
	testSecret = "test-secret-key-at-least-32-characters-long"
)

var errRejected = errors.New("rejected by device")

// apiRemote serves data points from memory and applies accepted writes.
type apiRemote struct {
	mu     sync.Mutex
	points map[parameter.ID]parameter.DataPoint
	reject map[parameter.ID]bool
	writes int
}

func newAPIRemote() *apiRemote {
	r := &apiRemote{
		points: make(map[parameter.ID]parameter.DataPoint),
		reject: make(map[parameter.ID]bool),
	}
	r.set(parameter.FOutdoorTemp, 4.5)
	r.set(parameter.FRoomTemp, 20.5)
	r.points[parameter.FCompressorStatus] = parameter.DataPoint{
		ID:    parameter.FCompressorStatus,
		Value: 20.0,
		Enum: []parameter.EnumCandidate{
			{Value: 10, Label: "off"},
			{Value: 20, Label: "running"},
		},
	}
	return r
}

func (r *apiRemote) set(id parameter.ID, v any) {
	r.mu.Lock()
	r.points[id] = parameter.DataPoint{ID: id, Value: v}
	r.mu.Unlock()
}

func (r *apiRemote) value(id parameter.ID) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points[id].Value
}

func (r *apiRemote) FetchDataPoints(_ context.Context, _ string, ids []parameter.ID) ([]parameter.DataPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []parameter.DataPoint
	for _, id := range ids {
		if p, ok := r.points[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *apiRemote) WriteParameters(_ context.Context, _ string, values map[parameter.ID]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	for id := range values {
		if r.reject[id] {
			return errRejected
		}
	}
	for id, v := range values {
		r.points[id] = parameter.DataPoint{ID: id, Value: v}
	}
	return nil
}

func (r *apiRemote) DeviceInfo(context.Context, string) (*myuplink.DeviceInfo, error) {
	return nil, myuplink.ErrNotFound
}

type testEnv struct {
	srv    *Server
	remote *apiRemote
	bridge *heatpump.Bridge
}

// testServer builds a server over a started bridge with one F-series device,
// a bbolt settings store and a migrated SQLite database.
func testServer(t *testing.T, secret string) *testEnv {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.bolt"))
	if err != nil {
		t.Fatalf("settings.Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() }) //nolint:errcheck // test cleanup

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	history := attribute.NewSQLiteHistoryRepository(db.DB)
	writes := writelog.NewSQLiteRepository(db.DB)

	remote := newAPIRemote()
	bridge, err := heatpump.NewBridge(heatpump.BridgeOptions{
		Devices:  []config.DeviceConfig{{ID: testDevice, Name: "Utility room", Family: "f-series"}},
		Sync:     config.SyncConfig{DebounceMS: 5, PollMinutes: 5},
		Remote:   remote,
		Settings: store,
		History:  history,
		Writes:   writes,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("NewBridge() error: %v", err)
	}
	t.Cleanup(bridge.Stop)

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1"},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: secret}},
		Logger:   log,
		Bridge:   bridge,
		Settings: store,
		History:  history,
		Writes:   writes,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("bridge.Start() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return &testEnv{srv: srv, remote: remote, bridge: bridge}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func signToken(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	log := logging.Default()
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without bridge should fail")
	}
}

// ─── Health and middleware ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if resp["devices"] != float64(1) {
		t.Errorf("devices = %v, want 1", resp["devices"])
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t, "")
	if w := env.do(t, http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Authentication ────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	env := testServer(t, testSecret)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "another-secret-another-secret-xx", time.Minute), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, -time.Minute), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, testSecret, time.Minute), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.srv.buildRouter().ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	if w := env.do(t, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusOK {
		t.Errorf("health should not require auth, got %d", w.Code)
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestListDevices(t *testing.T) {
	env := testServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/devices/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Devices []heatpump.SessionStatus `json:"devices"`
		Count   int                      `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 1 || len(resp.Devices) != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	d := resp.Devices[0]
	if d.DeviceID != testDevice || d.Name != "Utility room" {
		t.Errorf("device = %+v", d)
	}
	if d.Family != parameter.FamilyF {
		t.Errorf("family = %q, want %q", d.Family, parameter.FamilyF)
	}
	if d.LastPoll == nil || d.Polls < 1 {
		t.Errorf("expected at least one completed poll, got %+v", d)
	}
}

func TestGetDevice(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Status     heatpump.SessionStatus `json:"status"`
		Attributes map[string]any         `json:"attributes"`
	}
	decode(t, w, &resp)
	if resp.Status.DeviceID != testDevice {
		t.Errorf("device_id = %q, want hp1", resp.Status.DeviceID)
	}
	if resp.Attributes["measure_temperature.outdoor"] != 4.5 {
		t.Errorf("outdoor temperature = %v, want 4.5", resp.Attributes["measure_temperature.outdoor"])
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/nope/", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", w.Code)
	}
}

func TestGetAttributes(t *testing.T) {
	env := testServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/attributes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var attrs map[string]any
	decode(t, w, &attrs)
	if attrs["measure_temperature.room"] != 20.5 {
		t.Errorf("room temperature = %v, want 20.5", attrs["measure_temperature.room"])
	}
}

// ─── Writes ────────────────────────────────────────────────────────

func TestWriteParameter_Queued(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodPost, "/api/v1/devices/hp1/parameters/50005", `{"value": true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", w.Code, w.Body.String())
	}
	var resp map[string]any
	decode(t, w, &resp)
	if resp["request_id"] == "" || resp["status"] != "queued" {
		t.Errorf("response = %v", resp)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.remote.value(parameter.FIncreasedVentilation) != 1.0 {
		if time.Now().After(deadline) {
			t.Fatal("queued write never reached the device")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWriteParameter_Wait(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodPost, "/api/v1/devices/hp1/parameters/50004", `{"value": 1, "wait": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "applied" {
		t.Errorf("status = %v, want applied", resp["status"])
	}
	if env.remote.value(parameter.FTemporaryLux) != 1.0 {
		t.Errorf("device value = %v, want 1", env.remote.value(parameter.FTemporaryLux))
	}
}

func TestWriteParameter_Failed(t *testing.T) {
	env := testServer(t, "")
	env.remote.mu.Lock()
	env.remote.reject[parameter.FTemporaryLux] = true
	env.remote.mu.Unlock()

	w := env.do(t, http.MethodPost, "/api/v1/devices/hp1/parameters/50004", `{"value": 1, "wait": true}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (body %s)", w.Code, w.Body.String())
	}
	var resp Error
	decode(t, w, &resp)
	if resp.Code != ErrCodeWriteFailed {
		t.Errorf("code = %q, want %q", resp.Code, ErrCodeWriteFailed)
	}
}

func TestWriteParameter_BadRequests(t *testing.T) {
	env := testServer(t, "")

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"non-numeric parameter", "/api/v1/devices/hp1/parameters/abc", `{"value":1}`, http.StatusBadRequest},
		{"zero parameter", "/api/v1/devices/hp1/parameters/0", `{"value":1}`, http.StatusBadRequest},
		{"invalid json", "/api/v1/devices/hp1/parameters/50004", `{`, http.StatusBadRequest},
		{"invalid value", "/api/v1/devices/hp1/parameters/50004", `{"value":"warm"}`, http.StatusBadRequest},
		{"missing value", "/api/v1/devices/hp1/parameters/50004", `{}`, http.StatusBadRequest},
		{"unknown device", "/api/v1/devices/nope/parameters/50004", `{"value":1}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, http.MethodPost, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestWriteAttribute(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodPost, "/api/v1/devices/hp1/attributes/state_button.temp_lux", `{"value": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if env.remote.value(parameter.FTemporaryLux) != 1.0 {
		t.Errorf("device value = %v, want 1", env.remote.value(parameter.FTemporaryLux))
	}

	w = env.do(t, http.MethodPost, "/api/v1/devices/hp1/attributes/measure_temperature.outdoor", `{"value": 3}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-writable status = %d, want 400", w.Code)
	}
}

func TestListWrites(t *testing.T) {
	env := testServer(t, "")

	if w := env.do(t, http.MethodPost, "/api/v1/devices/hp1/parameters/50004", `{"value": 1, "wait": true}`); w.Code != http.StatusOK {
		t.Fatalf("write status = %d", w.Code)
	}

	var result writelog.ListResult
	deadline := time.Now().Add(2 * time.Second)
	for {
		w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/writes?status=applied", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		decode(t, w, &result)
		if result.Total == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("write log total = %d, want 1", result.Total)
		}
		time.Sleep(10 * time.Millisecond)
	}

	e := result.Entries[0]
	if e.ParameterID != int(parameter.FTemporaryLux) || e.Source != sourceAPI || e.Value != 1 {
		t.Errorf("entry = %+v", e)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/writes?status=bogus", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", w.Code)
	}
}

// ─── Reconcile and enums ───────────────────────────────────────────

func TestReconcile(t *testing.T) {
	env := testServer(t, "")
	env.remote.set(parameter.FOutdoorTemp, -2.0)

	w := env.do(t, http.MethodPost, "/api/v1/devices/hp1/reconcile", `{"parameters":[40004]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var resp reconcileResponse
	decode(t, w, &resp)
	if resp.Requested != 1 || resp.Returned != 1 {
		t.Errorf("requested/returned = %d/%d, want 1/1", resp.Requested, resp.Returned)
	}

	sess, _ := env.bridge.Session(testDevice)
	if v, _ := sess.Attributes().Get("measure_temperature.outdoor"); v != -2.0 {
		t.Errorf("outdoor temperature = %v, want -2", v)
	}

	// Empty body reconciles the full monitored list.
	w = env.do(t, http.MethodPost, "/api/v1/devices/hp1/reconcile", "")
	if w.Code != http.StatusOK {
		t.Fatalf("full reconcile status = %d", w.Code)
	}
	decode(t, w, &resp)
	if resp.Requested <= 1 {
		t.Errorf("full reconcile requested = %d, want the monitored list", resp.Requested)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/devices/hp1/reconcile", `{"parameters":[-1]}`); w.Code != http.StatusBadRequest {
		t.Errorf("negative id status = %d, want 400", w.Code)
	}
}

func TestGetEnumOptions(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/enums/50095", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var resp struct {
		Options []struct {
			ID    float64 `json:"id"`
			Label string  `json:"label"`
		} `json:"options"`
	}
	decode(t, w, &resp)
	if len(resp.Options) != 2 || resp.Options[1].ID != 20 {
		t.Errorf("options = %+v", resp.Options)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/enums/40004", ""); w.Code != http.StatusNotFound {
		t.Errorf("non-enum status = %d, want 404", w.Code)
	}
}

// ─── Settings ──────────────────────────────────────────────────────

func TestSettings(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var values map[string]any
	decode(t, w, &values)
	if values[settings.KeyVoltage] != 400.0 {
		t.Errorf("voltage = %v, want 400", values[settings.KeyVoltage])
	}

	w = env.do(t, http.MethodPatch, "/api/v1/devices/hp1/settings", `{"power_factor": 0.9}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d (body %s)", w.Code, w.Body.String())
	}
	var patched struct {
		Changed  []string       `json:"changed"`
		Settings map[string]any `json:"settings"`
	}
	decode(t, w, &patched)
	if len(patched.Changed) != 1 || patched.Changed[0] != settings.KeyPowerFactor {
		t.Errorf("changed = %v, want [power_factor]", patched.Changed)
	}
	if patched.Settings[settings.KeyPowerFactor] != 0.9 {
		t.Errorf("power_factor = %v, want 0.9", patched.Settings[settings.KeyPowerFactor])
	}
}

func TestPatchSettings_Validation(t *testing.T) {
	env := testServer(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"empty", `{}`},
		{"read-only", `{"serial_number": "x"}`},
		{"poll interval zero", `{"poll_interval_minutes": 0}`},
		{"fractional poll interval", `{"poll_interval_minutes": 1.5}`},
		{"power factor above one", `{"power_factor": 1.2}`},
		{"operational mode out of range", `{"operational_mode": 4}`},
		{"override not an id", `{"param_outdoor_temp": "abc"}`},
		{"accumulate not bool", `{"accumulate_energy": 3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, http.MethodPatch, "/api/v1/devices/hp1/settings", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

// ─── History ───────────────────────────────────────────────────────

func TestGetHistory(t *testing.T) {
	env := testServer(t, "")

	var resp struct {
		Entries []attribute.HistoryEntry `json:"entries"`
		Count   int                      `json:"count"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/history?attribute=measure_temperature.outdoor&limit=5", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		decode(t, w, &resp)
		if resp.Count > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no history recorded for outdoor temperature")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if resp.Entries[0].Attribute != "measure_temperature.outdoor" {
		t.Errorf("attribute = %q", resp.Entries[0].Attribute)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/hp1/history?limit=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(logging.Default())

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelAttributeChanged: {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{},
	}
	hub.Register(subscribed)
	hub.Register(other)
	if hub.ClientCount() != 2 {
		t.Fatalf("client count = %d, want 2", hub.ClientCount())
	}

	hub.Broadcast(ChannelAttributeChanged, map[string]any{"device_id": "hp1"})

	select {
	case msg := <-subscribed.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelAttributeChanged {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelAttributeChanged)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	default:
	}

	hub.Unregister(other)
	if hub.ClientCount() != 1 {
		t.Errorf("after unregister count = %d, want 1", hub.ClientCount())
	}
}

func TestWebSocket_TicketRequired(t *testing.T) {
	env := testServer(t, testSecret)
	ts := httptest.NewServer(env.srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("dial without ticket should fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("dial without ticket: resp = %v", resp)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/ws-ticket", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, time.Minute))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ws-ticket request: %v", err)
	}
	defer resp.Body.Close()
	var ticket struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?ticket="+ticket.Ticket, nil)
	if err != nil {
		t.Fatalf("dial with ticket: %v", err)
	}
	ws.Close()

	// Tickets are single-use.
	if _, _, err := websocket.DefaultDialer.Dial(wsURL+"?ticket="+ticket.Ticket, nil); err == nil {
		t.Error("reused ticket should be rejected")
	}
}

func TestWebSocket_AttributeChanges(t *testing.T) {
	env := testServer(t, "")
	ts := httptest.NewServer(env.srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelAttributeChanged}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", msg)
	}

	env.remote.set(parameter.FOutdoorTemp, 7.0)
	sess, _ := env.bridge.Session(testDevice)
	if _, err := sess.Reconcile(context.Background(), []parameter.ID{parameter.FOutdoorTemp}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	for {
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if msg.Type != WSTypeEvent {
			continue
		}
		payload, _ := msg.Payload.(map[string]any)
		if payload["attribute"] == "measure_temperature.outdoor" && payload["value"] == 7.0 {
			break
		}
	}
	if msg.EventType != ChannelAttributeChanged {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelAttributeChanged)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env := testServer(t, "")
	ts := httptest.NewServer(env.srv.buildRouter())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong || resp.ID != "ping-1" {
		t.Errorf("response = %+v, want pong ping-1", resp)
	}

	if err := ws.WriteJSON(WSMessage{Type: "bogus", ID: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if resp.Type != WSTypeError {
		t.Errorf("unknown type response = %s, want error", resp.Type)
	}
}
