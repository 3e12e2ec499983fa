package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"battdevy/internal/auth"
	"battdevy/internal/testutil"
	"battdevy/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func (a *apiClient) do(method, path string, body interface{}, out interface{}) int {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

func newTestRouter(t *testing.T, demoID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t, database.Models()...)
	return NewRouter(Deps{
		DB: db,
		Auth: auth.Config{
			Secret:     "test-secret",
			Expiry:     time.Hour,
			DemoUserID: demoID,
		},
	})
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, uuid.Nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "battdevy_http_requests_total") {
		t.Fatalf("expected metrics exposition, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, uuid.Nil)
	api := &apiClient{t: t, router: r}
	for _, path := range []string{"/api/v1/devices", "/api/v1/battery-groups", "/api/v1/plan", "/api/v1/auth/me"} {
		if code := api.do(http.MethodGet, path, nil, nil); code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, code)
		}
	}
}

func TestAssignmentFlow(t *testing.T) {
	r := newTestRouter(t, uuid.Nil)
	api := &apiClient{t: t, router: r}

	var session auth.AuthResponse
	if code := api.do(http.MethodPost, "/api/v1/auth/signup", gin.H{"email": "Owner@Example.com", "password": "correct horse"}, &session); code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", code)
	}
	api.token = session.Token

	if code := api.do(http.MethodPost, "/api/v1/battery-groups", gin.H{"name": "Eneloop", "shape": "aa", "kind": "rechargeable", "count": 2, "voltage": 1.2}, nil); code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d", code)
	}

	var device struct {
		ID uuid.UUID `json:"id"`
	}
	if code := api.do(http.MethodPost, "/api/v1/devices", gin.H{"name": "TV remote", "type": "remote_control", "battery_shape": "aa", "battery_count": 2}, &device); code != http.StatusCreated {
		t.Fatalf("create device: expected 201, got %d", code)
	}

	var units struct {
		Batteries []struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"batteries"`
	}
	if code := api.do(http.MethodGet, "/api/v1/batteries", nil, &units); code != http.StatusOK || len(units.Batteries) != 2 {
		t.Fatalf("list batteries: expected 2 units, got %d (%d)", len(units.Batteries), code)
	}

	ids := []uuid.UUID{units.Batteries[0].ID, units.Batteries[1].ID}
	var result struct {
		Device struct {
			HasBatteries bool `json:"has_batteries"`
		} `json:"device"`
		Batteries []struct {
			Status string `json:"status"`
		} `json:"batteries"`
	}
	if code := api.do(http.MethodPut, "/api/v1/devices/"+device.ID.String()+"/batteries", gin.H{"battery_ids": ids}, &result); code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d", code)
	}
	if !result.Device.HasBatteries || len(result.Batteries) != 2 {
		t.Fatalf("unexpected assignment result %+v", result)
	}
	for _, b := range result.Batteries {
		if b.Status != "in_use" {
			t.Fatalf("expected in_use, got %s", b.Status)
		}
	}

	// three batteries for two slots
	tooMany := append(ids, uuid.New())
	if code := api.do(http.MethodPut, "/api/v1/devices/"+device.ID.String()+"/batteries", gin.H{"battery_ids": tooMany}, nil); code != http.StatusBadRequest {
		t.Fatalf("oversized selection: expected 400, got %d", code)
	}

	var hist struct {
		Entries []struct {
			EndedAt *time.Time `json:"ended_at"`
		} `json:"entries"`
	}
	if code := api.do(http.MethodGet, "/api/v1/devices/"+device.ID.String()+"/history", nil, &hist); code != http.StatusOK || len(hist.Entries) != 2 {
		t.Fatalf("history: expected 2 entries, got %d (%d)", len(hist.Entries), code)
	}

	var usage struct {
		BatteryGroups struct {
			Used int `json:"used"`
		} `json:"battery_groups"`
		Devices struct {
			Used int `json:"used"`
		} `json:"devices"`
	}
	if code := api.do(http.MethodGet, "/api/v1/plan", nil, &usage); code != http.StatusOK {
		t.Fatalf("plan: expected 200, got %d", code)
	}
	if usage.BatteryGroups.Used != 1 || usage.Devices.Used != 1 {
		t.Fatalf("unexpected usage %+v", usage)
	}

	if code := api.do(http.MethodDelete, "/api/v1/devices/"+device.ID.String()+"/batteries", nil, nil); code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", code)
	}
}

func TestDemoAccountCannotChangePlan(t *testing.T) {
	r := newTestRouter(t, uuid.New())
	api := &apiClient{t: t, router: r}

	var session auth.AuthResponse
	if code := api.do(http.MethodPost, "/api/v1/auth/demo", nil, &session); code != http.StatusOK {
		t.Fatalf("demo login: expected 200, got %d", code)
	}
	api.token = session.Token

	if code := api.do(http.MethodGet, "/api/v1/plan", nil, nil); code != http.StatusOK {
		t.Fatalf("demo plan read: expected 200, got %d", code)
	}
	if code := api.do(http.MethodPut, "/api/v1/plan", gin.H{"tier": "pro"}, nil); code != http.StatusForbidden {
		t.Fatalf("demo plan change: expected 403, got %d", code)
	}
	if code := api.do(http.MethodPut, "/api/v1/auth/me", gin.H{"display_name": "x"}, nil); code != http.StatusForbidden {
		t.Fatalf("demo profile change: expected 403, got %d", code)
	}
}
