package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"usher/internal/clients/catalog"
	"usher/internal/clients/mediaserver"
	"usher/internal/config"
)

func testStudio() *catalog.Studio {
	return &catalog.Studio{
		ID:      "9",
		Name:    "Acme Films",
		Details: "An independent studio.",
		Aliases: []string{"Acme", "AF"},
		URLs:    []string{"https://acme.example"},
	}
}

func TestSyncStudioNoCollection(t *testing.T) {
	s := &StudioSyncer{config: config.NewStore(&config.Config{}), logger: testLogger(), server: newFakeServer()}

	err := s.SyncStudio(context.Background(), testStudio())
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("err = %v, want ErrCollectionNotFound", err)
	}
}

func TestSyncStudioUpdatesCollection(t *testing.T) {
	server := newFakeServer()
	server.collections["Acme Films"] = &mediaserver.Item{ID: "c1", Name: "Acme Films"}
	server.items["c1"] = map[string]interface{}{
		"Name":     "Acme Films",
		"SortName": "Acme Films",
	}

	s := &StudioSyncer{config: config.NewStore(&config.Config{}), logger: testLogger(), server: server}
	if err := s.SyncStudio(context.Background(), testStudio()); err != nil {
		t.Fatalf("SyncStudio failed: %v", err)
	}

	item := server.updated["c1"]
	if item == nil {
		t.Fatal("collection item was not updated")
	}
	overview, _ := item["Overview"].(string)
	if !strings.Contains(overview, "An independent studio.") || !strings.Contains(overview, "Aliases: Acme / AF") {
		t.Errorf("overview = %q", overview)
	}
	if item["SortName"] != "Acme Films" {
		t.Error("update must preserve fields it does not manage")
	}
	providers, _ := item["ProviderIds"].(map[string]interface{})
	if providers["Stash"] != "9" {
		t.Errorf("provider ids = %v", providers)
	}
}

func TestSyncStudioSkipsDefaultImage(t *testing.T) {
	server := newFakeServer()
	server.collections["Acme Films"] = &mediaserver.Item{ID: "c1", Name: "Acme Films"}

	s := &StudioSyncer{config: config.NewStore(&config.Config{}), logger: testLogger(), server: server}
	studio := testStudio()
	studio.ImagePath = "http://catalog/studio/9/image?default=true"

	if err := s.SyncStudio(context.Background(), studio); err != nil {
		t.Fatalf("SyncStudio failed: %v", err)
	}
	if len(server.images) != 0 {
		t.Error("placeholder image must not be uploaded")
	}
}

func TestSyncStudioUploadsImage(t *testing.T) {
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("logo"))
	}))
	defer img.Close()

	server := newFakeServer()
	server.collections["Acme Films"] = &mediaserver.Item{ID: "c1", Name: "Acme Films"}

	s := &StudioSyncer{
		config:  config.NewStore(&config.Config{}),
		logger:  testLogger(),
		catalog: catalog.NewClient(img.URL, "", "", "", 0, testLogger()),
		server:  server,
	}
	studio := testStudio()
	studio.ImagePath = img.URL + "/studio/9/image"

	if err := s.SyncStudio(context.Background(), studio); err != nil {
		t.Fatalf("SyncStudio failed: %v", err)
	}
	if string(server.images["c1"]) != "logo" {
		t.Errorf("uploaded image = %q", server.images["c1"])
	}
}

func TestRefreshLibraryRunsScheduledTask(t *testing.T) {
	server := newFakeServer()
	cfg := &config.Config{}
	cfg.MediaServer.ScheduledTaskID = "task-7"

	s := &StudioSyncer{config: config.NewStore(cfg), logger: testLogger(), server: server}
	if err := s.RefreshLibrary(context.Background()); err != nil {
		t.Fatalf("RefreshLibrary failed: %v", err)
	}
	if server.refreshed != 1 {
		t.Errorf("refreshed = %d, want 1", server.refreshed)
	}
	if len(server.tasksRun) != 1 || server.tasksRun[0] != "task-7" {
		t.Errorf("tasks run = %v", server.tasksRun)
	}
}

func TestStudioOverview(t *testing.T) {
	got := studioOverview(testStudio())
	want := "An independent studio.\n\nAliases: Acme / AF\n\nhttps://acme.example"
	if got != want {
		t.Errorf("overview = %q, want %q", got, want)
	}

	if got := studioOverview(&catalog.Studio{Name: "X"}); got != "" {
		t.Errorf("empty studio overview = %q", got)
	}
}
