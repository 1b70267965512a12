package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"usher/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Port != 8686 {
		t.Errorf("port = %d, want 8686", cfg.App.Port)
	}
	if cfg.Catalog.URL != "http://localhost:9999" {
		t.Errorf("catalog url = %q", cfg.Catalog.URL)
	}
	if cfg.MediaServer.Type != "emby" {
		t.Errorf("media server type = %q", cfg.MediaServer.Type)
	}
	if cfg.Organizer.FilenameTemplate != "{original_basename}" {
		t.Errorf("filename template = %q", cfg.Organizer.FilenameTemplate)
	}
	if !cfg.Organizer.MoveOnlyOrganized || !cfg.Organizer.WriteNFO {
		t.Error("organizer defaults changed")
	}
	if cfg.SyncWorker.CatalogWait != "35s" || cfg.SyncWorker.ServerWait != "70s" {
		t.Errorf("sync worker waits = %q / %q", cfg.SyncWorker.CatalogWait, cfg.SyncWorker.ServerWait)
	}
	if len(cfg.SyncWorker.RetryBackoffs) != 3 {
		t.Errorf("retry backoffs = %v", cfg.SyncWorker.RetryBackoffs)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9001
  debug: true
catalog:
  url: http://catalog:9999
  api_key: secret
media_server:
  type: jellyfin
  url: http://jellyfin:8096
organizer:
  target_root: /library
  filename_template: "{studio}/{scene_title}"
  source_target_mapping: "/downloads->/library"
  multi_file_mode: primary_only
performer_sync:
  output_dir: /library/performers
  export_mode: 4
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Port != 9001 || !cfg.App.Debug {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.MediaServer.Type != "jellyfin" {
		t.Errorf("media server type = %q", cfg.MediaServer.Type)
	}
	if cfg.Organizer.SourceTargetMapping != "/downloads->/library" {
		t.Errorf("mapping = %q", cfg.Organizer.SourceTargetMapping)
	}
	if cfg.PerformerSync.ExportMode != 4 {
		t.Errorf("export mode = %d", cfg.PerformerSync.ExportMode)
	}
	// Untouched sections keep their defaults.
	if cfg.Organizer.PerPage != 1000 {
		t.Errorf("per page = %d", cfg.Organizer.PerPage)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("USHER_CATALOG_URL", "http://env-catalog:9999")
	t.Setenv("USHER_MEDIA_SERVER_API_KEY", "env-key")

	path := writeConfig(t, `
catalog:
  url: http://file-catalog:9999
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Catalog.URL != "http://env-catalog:9999" {
		t.Errorf("env must win over file, got %q", cfg.Catalog.URL)
	}
	if cfg.MediaServer.APIKey != "env-key" {
		t.Errorf("media server api key = %q", cfg.MediaServer.APIKey)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad media server type",
			yaml: "media_server:\n  type: plex\n",
			want: "media server type",
		},
		{
			name: "bad multi file mode",
			yaml: "organizer:\n  multi_file_mode: sometimes\n",
			want: "multi_file_mode",
		},
		{
			name: "mapping without arrow",
			yaml: "organizer:\n  source_target_mapping: /downloads:/library\n",
			want: "source_target_mapping",
		},
		{
			name: "mapping with empty side",
			yaml: "organizer:\n  source_target_mapping: '/downloads-> '\n",
			want: "empty side",
		},
		{
			name: "export mode out of range",
			yaml: "performer_sync:\n  export_mode: 9\n",
			want: "export_mode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestStoreSwap(t *testing.T) {
	first := &config.Config{}
	first.App.Port = 9999
	store := config.NewStore(first)

	if got := store.Load(); got != first {
		t.Fatal("Load should return the stored config")
	}

	next := &config.Config{}
	next.App.Port = 8888

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			port := store.Load().App.Port
			if port != 9999 && port != 8888 {
				t.Errorf("port = %d", port)
				return
			}
		}
	}()
	store.Swap(next)
	<-done

	if got := store.Load(); got != next {
		t.Error("Load should return the swapped config")
	}
}
