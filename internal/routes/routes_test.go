package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/okarpov/stash/internal/auth"
	"github.com/okarpov/stash/internal/config"
	"github.com/okarpov/stash/internal/database/models"
	"github.com/okarpov/stash/internal/rank"
	"github.com/okarpov/stash/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// testApp is a complete service instance backed by an in-memory database
// and the memory storage backend, exercised over real HTTP.
type testApp struct {
	db      *gorm.DB
	backend *storage.MemoryBackend
	server  *httptest.Server
	client  *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.File{}); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	cfg := &config.Config{
		Env:                "test",
		BcryptCost:         4,
		SessionDuration:    "1h",
		EnableRegistration: true,
	}

	backend := storage.NewMemoryBackend()

	sessionManager, err := auth.NewSessionManager(db, cfg)
	if err != nil {
		t.Fatalf("Failed to create session manager: %v", err)
	}

	r := chi.NewRouter()
	Setup(r, db, cfg, backend, sessionManager, "test")

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}

	return &testApp{
		db:      db,
		backend: backend,
		server:  server,
		client:  &http.Client{Jar: jar},
	}
}

func (app *testApp) doJSON(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, app.server.URL+path, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// seedAccount writes an account directly, bypassing registration, so
// tests can set up elevated levels.
func (app *testApp) seedAccount(t *testing.T, username, level string) *models.Account {
	t.Helper()

	hash, err := auth.HashPassword("Secret1!", 4)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	acct := &models.Account{
		Username:     username,
		FullName:     username + " Test",
		Email:        username + "@example.com",
		PasswordHash: hash,
		StoragePath:  storage.NewAccountDir(username),
	}
	if err := rank.ApplyLevel(acct, level); err != nil {
		t.Fatalf("Failed to apply level: %v", err)
	}
	if err := app.db.Create(acct).Error; err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
	return acct
}

func (app *testApp) login(t *testing.T, username string) {
	t.Helper()

	resp := app.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": "Secret1!",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Login as %s failed with %d: %s", username, resp.StatusCode, body)
	}
}

func (app *testApp) upload(t *testing.T, filename, content, comment string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Writing part failed: %v", err)
	}
	if comment != "" {
		if err := mw.WriteField("comment", comment); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/files/upload", &buf)
	if err != nil {
		t.Fatalf("Failed to build upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := app.client.Do(req)
	if err != nil {
		t.Fatalf("Upload request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("Upload failed with %d: %s", resp.StatusCode, body)
	}

	var out map[string]any
	decodeJSON(t, resp, &out)
	return out
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.client.Get(app.server.URL + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	decodeJSON(t, resp, &body)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.client.Get(app.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Metrics status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)

	resp := app.doJSON(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username":  "alice1",
		"full_name": "Alice Test",
		"email":     "alice@example.com",
		"password":  "Secret1!",
	})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("Register status = %d: %s", resp.StatusCode, body)
	}
	var registered map[string]any
	decodeJSON(t, resp, &registered)
	if registered["level"] != "user" {
		t.Errorf("New account level = %v, want user", registered["level"])
	}
	if registered["rank"] != float64(3) {
		t.Errorf("New account rank = %v, want 3", registered["rank"])
	}

	app.login(t, "alice1")

	resp = app.doJSON(t, http.MethodGet, "/api/auth/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Me status = %d, want 200", resp.StatusCode)
	}
	var me map[string]any
	decodeJSON(t, resp, &me)
	user, _ := me["user"].(map[string]any)
	if user["username"] != "alice1" {
		t.Errorf("Me username = %v", user["username"])
	}

	resp = app.doJSON(t, http.MethodPost, "/api/auth/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Logout status = %d, want 200", resp.StatusCode)
	}

	resp = app.doJSON(t, http.MethodGet, "/api/auth/me", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Me after logout = %d, want 401", resp.StatusCode)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	app := newTestApp(t)

	resp := app.doJSON(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username":  "x",
		"full_name": "",
		"email":     "bad",
		"password":  "weak",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Register status = %d, want 400", resp.StatusCode)
	}

	var body struct {
		Detail string              `json:"detail"`
		Errors map[string][]string `json:"errors"`
	}
	decodeJSON(t, resp, &body)
	if body.Detail != "Validation error" {
		t.Errorf("detail = %q", body.Detail)
	}
	for _, field := range []string{"username", "full_name", "email", "password"} {
		if len(body.Errors[field]) == 0 {
			t.Errorf("Expected error on field %q, got %v", field, body.Errors)
		}
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount(t, "alice1", rank.LevelUser)

	resp := app.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "alice1",
		"password": "wrong",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Login status = %d, want 401", resp.StatusCode)
	}
}

func TestAuthRateLimit(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount(t, "alice1", rank.LevelUser)

	// The limiter allows a burst of 5 auth attempts per IP.
	var last int
	for i := 0; i < 6; i++ {
		resp := app.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{
			"username": "alice1",
			"password": "wrong",
		})
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("Sixth attempt status = %d, want 429", last)
	}
}

func TestFilesRequireAuth(t *testing.T) {
	app := newTestApp(t)

	resp := app.doJSON(t, http.MethodGet, "/api/files/", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Unauthenticated list = %d, want 401", resp.StatusCode)
	}
}

func TestFileFlow(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount(t, "alice1", rank.LevelUser)
	app.login(t, "alice1")

	uploaded := app.upload(t, "Report.PDF", "pdf bytes", "quarterly")
	if uploaded["comment"] != "quarterly" {
		t.Errorf("comment = %v", uploaded["comment"])
	}
	fileID := int(uploaded["id"].(float64))

	resp := app.doJSON(t, http.MethodGet, "/api/files/", nil)
	var listed []map[string]any
	decodeJSON(t, resp, &listed)
	if len(listed) != 1 {
		t.Fatalf("Listed %d files, want 1", len(listed))
	}
	if listed[0]["original_name"] != "Report.PDF" {
		t.Errorf("original_name = %v", listed[0]["original_name"])
	}
	if listed[0]["share_url"] != nil {
		t.Errorf("Fresh file has share_url %v", listed[0]["share_url"])
	}

	// Download defaults to attachment disposition.
	dl, err := app.client.Get(fmt.Sprintf("%s/api/files/%d/download", app.server.URL, fileID))
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	content, _ := io.ReadAll(dl.Body)
	dl.Body.Close()
	if string(content) != "pdf bytes" {
		t.Errorf("Downloaded %q", content)
	}
	if cd := dl.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", cd)
	}

	// Preview mode serves inline.
	pv, err := app.client.Get(fmt.Sprintf("%s/api/files/%d/download?mode=preview", app.server.URL, fileID))
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	pv.Body.Close()
	if cd := pv.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "inline") {
		t.Errorf("Content-Disposition = %q, want inline", cd)
	}

	resp = app.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/files/%d/rename", fileID), map[string]string{"name": "Final.PDF"})
	var renamed map[string]any
	decodeJSON(t, resp, &renamed)
	if renamed["original_name"] != "Final.PDF" {
		t.Errorf("After rename original_name = %v", renamed["original_name"])
	}

	// A body without the comment key is rejected; an empty comment is a clear.
	resp = app.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/files/%d/comment", fileID), map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Comment without key = %d, want 400", resp.StatusCode)
	}
	resp = app.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/files/%d/comment", fileID), map[string]string{"comment": ""})
	var commented map[string]any
	decodeJSON(t, resp, &commented)
	if commented["comment"] != "" {
		t.Errorf("After clear comment = %v", commented["comment"])
	}

	resp = app.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/files/%d", fileID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Delete status = %d, want 200", resp.StatusCode)
	}

	resp = app.doJSON(t, http.MethodGet, "/api/files/", nil)
	decodeJSON(t, resp, &listed)
	if len(listed) != 0 {
		t.Errorf("Listed %d files after delete, want 0", len(listed))
	}
	if app.backend.FileCount() != 0 {
		t.Errorf("Physical files remaining = %d, want 0", app.backend.FileCount())
	}
}

func TestListFiles_InvalidUserID(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount(t, "alice1", rank.LevelUser)
	app.login(t, "alice1")

	resp := app.doJSON(t, http.MethodGet, "/api/files/?user_id=abc", nil)
	var body map[string]string
	decodeJSON(t, resp, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(body["detail"], "user_id") {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestShareFlow(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount(t, "alice1", rank.LevelUser)
	app.login(t, "alice1")

	uploaded := app.upload(t, "shared.txt", "public content", "")
	fileID := int(uploaded["id"].(float64))

	resp := app.doJSON(t, http.MethodPost, fmt.Sprintf("/api/files/%d/share", fileID), nil)
	var enabled map[string]any
	decodeJSON(t, resp, &enabled)
	token, _ := enabled["share_token"].(string)
	if token == "" {
		t.Fatal("No share token returned")
	}
	if enabled["share_url"] == nil || enabled["share_created"] == nil {
		t.Error("share_url and share_created must be set together")
	}

	// The shared link works with no session cookie.
	anon := &http.Client{}
	dl, err := anon.Get(app.server.URL + "/api/share/" + token)
	if err != nil {
		t.Fatalf("Share download failed: %v", err)
	}
	content, _ := io.ReadAll(dl.Body)
	dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("Share download status = %d: %s", dl.StatusCode, content)
	}
	if string(content) != "public content" {
		t.Errorf("Share content = %q", content)
	}

	// Disabling kills the link.
	resp = app.doJSON(t, http.MethodPost, fmt.Sprintf("/api/files/%d/share/disable", fileID), nil)
	var disabled map[string]any
	decodeJSON(t, resp, &disabled)
	if disabled["share_token"] != nil {
		t.Errorf("share_token after disable = %v", disabled["share_token"])
	}

	dl, err = anon.Get(app.server.URL + "/api/share/" + token)
	if err != nil {
		t.Fatalf("Share download failed: %v", err)
	}
	dl.Body.Close()
	if dl.StatusCode != http.StatusNotFound {
		t.Errorf("Revoked share status = %d, want 404", dl.StatusCode)
	}
}

func TestAdminFlow(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount(t, "root1", rank.LevelSuperuser)
	app.seedAccount(t, "root2", rank.LevelSuperuser)
	target := app.seedAccount(t, "bob11", rank.LevelUser)
	app.login(t, "root1")

	resp := app.doJSON(t, http.MethodGet, "/api/admin/users/", nil)
	var listed []map[string]any
	decodeJSON(t, resp, &listed)
	if len(listed) != 3 {
		t.Fatalf("Listed %d accounts, want 3", len(listed))
	}
	if listed[0]["username"] != "root1" {
		t.Errorf("Actor not first: %v", listed[0]["username"])
	}

	resp = app.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/level", target.ID), map[string]string{"level": "admin"})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("SetLevel status = %d: %s", resp.StatusCode, body)
	}
	var updated map[string]any
	decodeJSON(t, resp, &updated)
	user, _ := updated["user"].(map[string]any)
	if user["level"] != "admin" {
		t.Errorf("Level after update = %v", user["level"])
	}

	resp = app.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/level", target.ID), map[string]string{"level": "wizard"})
	var bad map[string]string
	decodeJSON(t, resp, &bad)
	if bad["detail"] != "Invalid level" {
		t.Errorf("detail = %q, want Invalid level", bad["detail"])
	}

	resp = app.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/level", target.ID), map[string]string{})
	decodeJSON(t, resp, &bad)
	if bad["detail"] != "Missing level" {
		t.Errorf("detail = %q, want Missing level", bad["detail"])
	}

	resp = app.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d?delete_files=1", target.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Delete status = %d, want 200", resp.StatusCode)
	}
	var deleted map[string]any
	decodeJSON(t, resp, &deleted)
	if deleted["files_deleted"] != true {
		t.Errorf("files_deleted = %v", deleted["files_deleted"])
	}
}

func TestAdmin_LastSuperuserGuard(t *testing.T) {
	app := newTestApp(t)
	root := app.seedAccount(t, "root1", rank.LevelSuperuser)
	app.login(t, "root1")

	resp := app.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", root.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Deleting last superuser = %d, want 409", resp.StatusCode)
	}

	resp = app.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/level", root.ID), map[string]string{"level": "user"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Demoting last superuser = %d, want 409", resp.StatusCode)
	}
}

func TestAdmin_UserForbidden(t *testing.T) {
	app := newTestApp(t)
	app.seedAccount(t, "alice1", rank.LevelUser)
	app.login(t, "alice1")

	resp := app.doJSON(t, http.MethodGet, "/api/admin/users/", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Admin list as user = %d, want 403", resp.StatusCode)
	}
}
