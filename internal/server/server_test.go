package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"medremind/internal/app"
	"medremind/internal/ratelimit"
	"medremind/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sessions, err := store.NewJWTSessionStore("test-secret", time.Hour, store.JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	a, err := app.New(app.Config{Store: store.NewMemoryStore(), Sessions: sessions})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return New(Config{App: a})
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	payload := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, payload
}

func registerUser(t *testing.T, s *Server) string {
	t.Helper()
	rec, payload := doJSON(t, s, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "a@example.com",
		"password": "secret1",
		"name":     "Alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	data := payload["data"].(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("expected token in register response")
	}
	return token
}

func medicationBody() map[string]any {
	return map[string]any{
		"name":        "Amoxicillin",
		"dosage":      "500",
		"unit":        "mg",
		"frequency":   "twice daily",
		"timeSlots":   []string{"08:00", "20:00"},
		"startDate":   "2024-03-15",
		"totalSupply": 30,
	}
}

func TestRegisterSuccessEnvelope(t *testing.T) {
	s := newTestServer(t)
	rec, payload := doJSON(t, s, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "a@example.com",
		"password": "secret1",
		"name":     "Alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if payload["success"] != true {
		t.Fatalf("expected success=true, got %v", payload["success"])
	}
	if payload["message"] != "Registration successful" {
		t.Fatalf("unexpected message %q", payload["message"])
	}
	data := payload["data"].(map[string]any)
	user := data["user"].(map[string]any)
	if user["email"] != "a@example.com" {
		t.Fatalf("unexpected user email %v", user["email"])
	}
	for _, key := range []string{"password", "passwordHash"} {
		if _, present := user[key]; present {
			t.Fatalf("user payload must not contain %q", key)
		}
	}
}

func TestRegisterValidationResponses(t *testing.T) {
	s := newTestServer(t)

	rec, payload := doJSON(t, s, http.MethodPost, "/auth/register", "", map[string]any{
		"email": "a@example.com",
	})
	if rec.Code != http.StatusBadRequest || payload["message"] != "Email, password, and name are required" {
		t.Fatalf("missing fields: got %d %q", rec.Code, payload["message"])
	}

	rec, payload = doJSON(t, s, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "a@example.com",
		"password": "12345",
		"name":     "Alice",
	})
	if rec.Code != http.StatusBadRequest || payload["message"] != "Password must be at least 6 characters" {
		t.Fatalf("short password: got %d %q", rec.Code, payload["message"])
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s)
	rec, payload := doJSON(t, s, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    "a@example.com",
		"password": "other-secret",
		"name":     "Mallory",
	})
	if rec.Code != http.StatusBadRequest || payload["message"] != "Email already registered" {
		t.Fatalf("duplicate email: got %d %q", rec.Code, payload["message"])
	}
	if payload["success"] != false {
		t.Fatalf("expected success=false")
	}
}

func TestLoginResponses(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s)

	rec, payload := doJSON(t, s, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "a@example.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusOK || payload["message"] != "Login successful" {
		t.Fatalf("login: got %d %q", rec.Code, payload["message"])
	}

	rec, payload = doJSON(t, s, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "a@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized || payload["message"] != "Invalid email or password" {
		t.Fatalf("wrong password: got %d %q", rec.Code, payload["message"])
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "a@example.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password expected 400, got %d", rec.Code)
	}
}

func TestMedicationsRequireToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/medications", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token expected 401, got %d", rec.Code)
	}

	rec2, payload := doJSON(t, s, http.MethodGet, "/medications", "bogus-token", nil)
	if rec2.Code != http.StatusUnauthorized || payload["message"] != "Unauthorized" {
		t.Fatalf("invalid token: got %d %q", rec2.Code, payload["message"])
	}
}

func TestCreateAndListMedications(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s)

	rec, payload := doJSON(t, s, http.MethodPost, "/medications", token, medicationBody())
	if rec.Code != http.StatusCreated || payload["message"] != "Medication created successfully" {
		t.Fatalf("create: got %d %q", rec.Code, payload["message"])
	}
	med := payload["data"].(map[string]any)
	if med["currentSupply"] != float64(30) {
		t.Fatalf("expected currentSupply 30, got %v", med["currentSupply"])
	}
	if med["refillReminder"] != float64(6) {
		t.Fatalf("expected default refillReminder 6, got %v", med["refillReminder"])
	}
	if med["reminderEnabled"] != true {
		t.Fatalf("expected reminderEnabled true")
	}

	rec, payload = doJSON(t, s, http.MethodGet, "/medications", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list expected 200, got %d", rec.Code)
	}
	meds := payload["data"].([]any)
	if len(meds) != 1 {
		t.Fatalf("expected 1 medication, got %d", len(meds))
	}
	listed := meds[0].(map[string]any)
	logs, ok := listed["logs"].([]any)
	if !ok {
		t.Fatalf("expected logs array, got %T", listed["logs"])
	}
	// Projection starts at creation time, so at least tomorrow's doses remain upcoming.
	if len(logs) < 2 {
		t.Fatalf("expected upcoming logs, got %d", len(logs))
	}
	first := logs[0].(map[string]any)
	if first["status"] != "PENDING" {
		t.Fatalf("expected PENDING log status, got %v", first["status"])
	}
}

func TestCreateMedicationValidationResponses(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s)

	body := medicationBody()
	delete(body, "name")
	rec, payload := doJSON(t, s, http.MethodPost, "/medications", token, body)
	if rec.Code != http.StatusBadRequest || payload["message"] != "Missing required fields" {
		t.Fatalf("missing name: got %d %q", rec.Code, payload["message"])
	}

	body = medicationBody()
	body["startDate"] = "not-a-date"
	rec, payload = doJSON(t, s, http.MethodPost, "/medications", token, body)
	if rec.Code != http.StatusBadRequest || payload["message"] != "Invalid startDate" {
		t.Fatalf("bad startDate: got %d %q", rec.Code, payload["message"])
	}
}

func TestLoginRateLimit(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:login", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	sessions, err := store.NewJWTSessionStore("test-secret", time.Hour, store.JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	a, err := app.New(app.Config{Store: store.NewMemoryStore(), Sessions: sessions})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	s := New(Config{App: a, LoginLimiter: limiter})

	body := map[string]any{"email": "a@example.com", "password": "wrong"}
	for i := 0; i < 2; i++ {
		rec, _ := doJSON(t, s, http.MethodPost, "/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401, got %d", i, rec.Code)
		}
	}
	rec, payload := doJSON(t, s, http.MethodPost, "/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
	if payload["message"] != "Too many login attempts" {
		t.Fatalf("unexpected message %q", payload["message"])
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	rec, _ := doJSON(t, s, http.MethodGet, "/auth/register", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
