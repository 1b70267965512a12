package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"usher/internal/config"
	"usher/internal/core"
	"usher/internal/database"
	"usher/internal/handlers"
	"usher/internal/utils"
)

// newTestHandler builds an API handler on a throwaway database with every
// hook direction disabled, so queued hooks are drained without side
// effects.
func newTestHandler(t *testing.T) *handlers.APIHandler {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Organizer.EnableHook = false
	cfg.Organizer.TargetRoot = t.TempDir()
	cfg.PerformerSync.HookMode = 0
	cfg.StudioSync.EnableHook = false
	cfg.MediaServer.Type = ""

	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	logger := utils.NewLogger(false, io.Discard)
	manager := core.NewManager(config.NewStore(cfg), db, logger)
	t.Cleanup(manager.Stop)
	return handlers.NewAPIHandler(manager, logger)
}

func TestSceneHookQueued(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hooks/scene", strings.NewReader(`{"id": 12, "event": "update"}`))
	rec := httptest.NewRecorder()
	h.SceneHook(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "queued" {
		t.Errorf("body = %v", body)
	}
}

func TestHookDefaultsToUpdate(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hooks/performer", strings.NewReader(`{"id": "7"}`))
	rec := httptest.NewRecorder()
	h.PerformerHook(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestHookRejectsBadRequests(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing id", `{"event": "update"}`},
		{"unknown event", `{"id": 1, "event": "delete"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/hooks/studio", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.StudioHook(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestMoveHistoryEmpty(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/moves?limit=5", nil)
	rec := httptest.NewRecorder()
	h.GetMoveHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestJobHistory(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/jobs", nil)
	rec := httptest.NewRecorder()
	h.GetJobHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMediaServerTestWithoutServer(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/test/media-server", nil)
	rec := httptest.NewRecorder()
	h.TestMediaServer(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if ok, _ := body["ok"].(bool); ok {
		t.Error("no media server configured, test must report ok=false")
	}
}
