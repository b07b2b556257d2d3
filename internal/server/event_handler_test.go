package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/auth"
	"github.com/Vishal-meena/NeoFi-Api/internal/database"
	"github.com/Vishal-meena/NeoFi-Api/internal/models"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	tokens := auth.NewTokenManager("test-secret", time.Hour, nil)

	return New("127.0.0.1:0", db.DB(), tokens, &log).Server.Handler
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, h http.Handler, username string) models.UserResponse {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "supersecret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status %d, body %s", username, rec.Code, rec.Body.String())
	}

	var user models.UserResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return user
}

func login(t *testing.T, h http.Handler, username string) string {
	t.Helper()

	form := url.Values{"username": {username}, "password": {"supersecret1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d, body %s", username, rec.Code, rec.Body.String())
	}

	var token models.TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return token.AccessToken
}

func registerAndLogin(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	registerUser(t, h, username)
	return login(t, h, username)
}

func createEvent(t *testing.T, h http.Handler, token, title string) models.Event {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/events", token, map[string]any{
		"title":      title,
		"start_time": "2026-09-01T09:00:00Z",
		"end_time":   "2026-09-01T09:30:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Event models.Event `json:"event"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return resp.Event
}

func changelogLen(t *testing.T, h http.Handler, token string, event models.Event) int {
	t.Helper()

	rec := doJSON(t, h, http.MethodGet, "/api/events/"+event.ID.String()+"/changelog", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("changelog: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Changelog []models.ChangelogEntry `json:"changelog"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode changelog: %v", err)
	}
	return len(resp.Changelog)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newTestServer(t)
	registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "fresh@example.com",
		"password": "supersecret1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate username, got %d", rec.Code)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	h := newTestServer(t)
	registerAndLogin(t, h, "alice")

	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRefreshIssuesNewToken(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/refresh", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d, body %s", rec.Code, rec.Body.String())
	}
	var refreshed models.TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Fatal("empty refreshed token")
	}
}

func TestLogout(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode logout response: %v", err)
	}
	if resp.Message != "Successfully logged out" {
		t.Fatalf("unexpected message: %q", resp.Message)
	}

	// Without a revocation store the token stays valid until it expires.
	if rec := doJSON(t, h, http.MethodGet, "/api/events", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("token rejected after stateless logout: %d", rec.Code)
	}

	// Logout itself requires authentication.
	if rec := doJSON(t, h, http.MethodPost, "/api/auth/logout", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/events", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/events", "garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

// The scripted scenario: create, edit, roll back, inspect history.
func TestEventVersioningScenario(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")

	event := createEvent(t, h, token, "Standup")

	rec := doJSON(t, h, http.MethodPut, "/api/events/"+event.ID.String(), token, map[string]any{
		"title": "Daily Standup",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/events/"+event.ID.String()+"/rollback/1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rollback: status %d, body %s", rec.Code, rec.Body.String())
	}
	var rolled struct {
		Event models.Event `json:"event"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rolled); err != nil {
		t.Fatalf("decode rollback response: %v", err)
	}
	if rolled.Event.Title != "Standup" {
		t.Fatalf("rollback did not restore title: %q", rolled.Event.Title)
	}

	if n := changelogLen(t, h, token, event); n != 3 {
		t.Fatalf("expected 3 changelog entries, got %d", n)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/events/"+event.ID.String()+"/diff/1/3", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("diff: status %d, body %s", rec.Code, rec.Body.String())
	}
	var diff models.VersionDiff
	if err := json.Unmarshal(rec.Body.Bytes(), &diff); err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	if len(diff.Differences) != 0 {
		t.Fatalf("expected empty diff after rollback, got %+v", diff.Differences)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/events/"+event.ID.String()+"/history/2", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status %d, body %s", rec.Code, rec.Body.String())
	}
	var versionResp struct {
		Version models.EventVersion `json:"version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &versionResp); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if versionResp.Version.Title != "Daily Standup" {
		t.Fatalf("unexpected version 2 title: %q", versionResp.Version.Title)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	h := newTestServer(t)
	ownerToken := registerAndLogin(t, h, "alice")
	bob := registerUser(t, h, "bob")
	otherToken := login(t, h, "bob")
	bobID := bob.ID.String()

	event := createEvent(t, h, ownerToken, "Standup")
	path := "/api/events/" + event.ID.String()

	// A stranger gets 403 on every event-scoped operation, with no
	// state change.
	for _, probe := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, path, nil},
		{http.MethodPut, path, map[string]any{"title": "hijacked"}},
		{http.MethodDelete, path, nil},
		{http.MethodPost, path + "/rollback/1", nil},
		{http.MethodGet, path + "/changelog", nil},
		{http.MethodGet, path + "/diff/1/1", nil},
		{http.MethodGet, path + "/history/1", nil},
		{http.MethodPost, path + "/share", models.ShareRequest{Permissions: []models.PermissionRequest{}}},
	} {
		rec := doJSON(t, h, probe.method, probe.path, otherToken, probe.body)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", probe.method, probe.path, rec.Code)
		}
	}
	if n := changelogLen(t, h, ownerToken, event); n != 1 {
		t.Fatalf("forbidden calls changed state: %d versions", n)
	}

	rec := doJSON(t, h, http.MethodPost, path+"/share", ownerToken, map[string]any{
		"permissions": []map[string]any{{"user_id": bobID, "role": "viewer"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("share: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Viewer may read but not write.
	if rec := doJSON(t, h, http.MethodGet, path, otherToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("viewer get: expected 200, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPut, path, otherToken, map[string]any{"title": "nope"}); rec.Code != http.StatusForbidden {
		t.Fatalf("viewer update: expected 403, got %d", rec.Code)
	}

	// Upgrading to editor allows writes; the grant stays a single row.
	rec = doJSON(t, h, http.MethodPost, path+"/share", ownerToken, map[string]any{
		"permissions": []map[string]any{{"user_id": bobID, "role": "editor"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("re-share: status %d", rec.Code)
	}
	var shareResp struct {
		Permissions []models.Permission `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &shareResp); err != nil {
		t.Fatalf("decode share response: %v", err)
	}
	if len(shareResp.Permissions) != 1 {
		t.Fatalf("expected a single grant, got %d", len(shareResp.Permissions))
	}
	if shareResp.Permissions[0].Role != models.RoleEditor {
		t.Fatalf("expected editor grant, got %q", shareResp.Permissions[0].Role)
	}

	if rec := doJSON(t, h, http.MethodPut, path, otherToken, map[string]any{"title": "edited by bob"}); rec.Code != http.StatusOK {
		t.Fatalf("editor update: expected 200, got %d", rec.Code)
	}

	// Sharing and deleting stay owner-only even for editors.
	if rec := doJSON(t, h, http.MethodPost, path+"/share", otherToken, map[string]any{
		"permissions": []map[string]any{{"user_id": bobID, "role": "owner"}},
	}); rec.Code != http.StatusForbidden {
		t.Fatalf("editor share: expected 403, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodDelete, path, otherToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("editor delete: expected 403, got %d", rec.Code)
	}
}

func TestShareUnknownUser(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")
	event := createEvent(t, h, token, "Standup")

	rec := doJSON(t, h, http.MethodPost, "/api/events/"+event.ID.String()+"/share", token, map[string]any{
		"permissions": []map[string]any{{"user_id": "7b9915a5-bd9e-4b26-9f09-8bc2a1f0ff10", "role": "viewer"}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown grantee, got %d", rec.Code)
	}
}

func TestBatchCreateRejectsInvalidItem(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")

	good := map[string]any{
		"title":      "ok",
		"start_time": "2026-09-01T09:00:00Z",
		"end_time":   "2026-09-01T10:00:00Z",
	}
	bad := map[string]any{
		"title":      "backwards",
		"start_time": "2026-09-02T10:00:00Z",
		"end_time":   "2026-09-02T09:00:00Z",
	}

	rec := doJSON(t, h, http.MethodPost, "/api/events/batch", token, map[string]any{
		"events": []map[string]any{good, bad, good},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body %s", rec.Code, rec.Body.String())
	}

	// Nothing from the batch may have been persisted.
	rec = doJSON(t, h, http.MethodGet, "/api/events", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var list struct {
		Events []models.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Events) != 0 {
		t.Fatalf("rejected batch left %d events behind", len(list.Events))
	}
}

func TestBatchCreateSuccess(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")

	items := make([]map[string]any, 0, 3)
	for i := 0; i < 3; i++ {
		items = append(items, map[string]any{
			"title":      fmt.Sprintf("event %d", i),
			"start_time": fmt.Sprintf("2026-09-0%dT09:00:00Z", i+1),
			"end_time":   fmt.Sprintf("2026-09-0%dT10:00:00Z", i+1),
		})
	}

	rec := doJSON(t, h, http.MethodPost, "/api/events/batch", token, map[string]any{"events": items})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch: status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Events []models.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if len(resp.Events) != 3 {
		t.Fatalf("expected 3 created events, got %d", len(resp.Events))
	}

	// Each batch item gets its own version-1 snapshot.
	for _, event := range resp.Events {
		if n := changelogLen(t, h, token, event); n != 1 {
			t.Fatalf("event %s: expected 1 version, got %d", event.ID, n)
		}
	}
}

func TestCreateEventValidation(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")

	// Backwards time window.
	rec := doJSON(t, h, http.MethodPost, "/api/events", token, map[string]any{
		"title":      "backwards",
		"start_time": "2026-09-01T10:00:00Z",
		"end_time":   "2026-09-01T09:00:00Z",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for backwards window, got %d", rec.Code)
	}

	// Recurring without a pattern.
	rec = doJSON(t, h, http.MethodPost, "/api/events", token, map[string]any{
		"title":        "recurring",
		"start_time":   "2026-09-01T09:00:00Z",
		"end_time":     "2026-09-01T10:00:00Z",
		"is_recurring": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing pattern, got %d", rec.Code)
	}

	// A valid recurring event passes.
	rec = doJSON(t, h, http.MethodPost, "/api/events", token, map[string]any{
		"title":               "weekly sync",
		"start_time":          "2026-09-01T09:00:00Z",
		"end_time":            "2026-09-01T10:00:00Z",
		"is_recurring":        true,
		"recurrence_pattern":  "weekly",
		"recurrence_end_date": "2026-12-01T00:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestListEventsBounds(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodGet, "/api/events?limit=1000", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/events?limit=0", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero limit, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/events?skip=-1", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative skip, got %d", rec.Code)
	}
}

func TestEventNotFound(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodGet, "/api/events/a1e56e47-9a18-43ae-8b70-6710c652cbde", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteEvent(t *testing.T) {
	h := newTestServer(t)
	token := registerAndLogin(t, h, "alice")
	event := createEvent(t, h, token, "Standup")

	rec := doJSON(t, h, http.MethodDelete, "/api/events/"+event.ID.String(), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/events/"+event.ID.String(), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}
