package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port     int    `yaml:"port"`
		DataPath string `yaml:"data_path"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"app"`

	Catalog struct {
		URL           string `yaml:"url"`
		APIKey        string `yaml:"api_key"`
		SessionCookie struct {
			Name  string `yaml:"name"`
			Value string `yaml:"value"`
		} `yaml:"session_cookie"`
		Timeout string `yaml:"timeout"`
	} `yaml:"catalog"`

	MediaServer struct {
		Type            string `yaml:"type"` // 'emby' or 'jellyfin'
		URL             string `yaml:"url"`
		APIKey          string `yaml:"api_key"`
		ScheduledTaskID string `yaml:"scheduled_task_id"`
	} `yaml:"media_server"`

	Organizer struct {
		TargetRoot          string `yaml:"target_root"`
		FilenameTemplate    string `yaml:"filename_template"`
		SourceTargetMapping string `yaml:"source_target_mapping"` // "SRC->DST"
		MoveOnlyOrganized   bool   `yaml:"move_only_organized"`
		MultiFileMode       string `yaml:"multi_file_mode"` // all, primary_only, skip
		WriteNFO            bool   `yaml:"write_nfo"`
		DownloadPoster      bool   `yaml:"download_poster"`
		OverlayStudioLogo   bool   `yaml:"overlay_studio_logo"`
		EnableHook          bool   `yaml:"enable_hook"`
		DryRun              bool   `yaml:"dry_run"`
		MinFreeSpace        uint64 `yaml:"min_free_space"` // bytes, 0 disables the check
		PerPage             int    `yaml:"per_page"`
	} `yaml:"organizer"`

	PerformerSync struct {
		OutputDir  string `yaml:"output_dir"`
		ExportMode int    `yaml:"export_mode"` // 0 off, 1 both, 2 nfo only, 3 image only, 4 fill missing
		UploadMode int    `yaml:"upload_mode"` // 0 off, 1 both, 2 metadata only, 3 image only, 4 fill missing
		HookMode   int    `yaml:"hook_mode"`   // 0 off, 1 local only, 2 server only, 3 both
	} `yaml:"performer_sync"`

	StudioSync struct {
		EnableHook bool `yaml:"enable_hook"`
	} `yaml:"studio_sync"`

	SyncWorker struct {
		CatalogWait   string   `yaml:"catalog_wait"`
		ServerWait    string   `yaml:"server_wait"`
		RetryBackoffs []string `yaml:"retry_backoffs"`
	} `yaml:"sync_worker"`

	Automation struct {
		OrganizeInterval      string `yaml:"organize_interval"`
		PerformerSyncInterval string `yaml:"performer_sync_interval"`
		StudioSyncInterval    string `yaml:"studio_sync_interval"`
	} `yaml:"automation"`

	Notifications struct {
		Pushbullet struct {
			APIKey string `yaml:"api_key"`
		} `yaml:"pushbullet"`
	} `yaml:"notifications"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	loadFromEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.App.Port = 8686
	cfg.App.DataPath = "./data"
	cfg.App.Debug = false

	cfg.Catalog.URL = "http://localhost:9999"
	cfg.Catalog.Timeout = "30s"

	cfg.MediaServer.Type = "emby"

	cfg.Organizer.FilenameTemplate = "{original_basename}"
	cfg.Organizer.MoveOnlyOrganized = true
	cfg.Organizer.MultiFileMode = "all"
	cfg.Organizer.WriteNFO = true
	cfg.Organizer.DownloadPoster = true
	cfg.Organizer.EnableHook = true
	cfg.Organizer.PerPage = 1000

	cfg.PerformerSync.ExportMode = 1
	cfg.PerformerSync.UploadMode = 1
	cfg.PerformerSync.HookMode = 3

	cfg.StudioSync.EnableHook = true

	cfg.SyncWorker.CatalogWait = "35s"
	cfg.SyncWorker.ServerWait = "70s"
	cfg.SyncWorker.RetryBackoffs = []string{"30s", "60s", "90s"}

	cfg.Automation.OrganizeInterval = ""
	cfg.Automation.PerformerSyncInterval = ""
	cfg.Automation.StudioSyncInterval = ""

	cfg.Database.Path = "./data/usher.db"
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("USHER_CATALOG_URL"); v != "" {
		cfg.Catalog.URL = v
	}
	if v := os.Getenv("USHER_CATALOG_API_KEY"); v != "" {
		cfg.Catalog.APIKey = v
	}
	if v := os.Getenv("USHER_MEDIA_SERVER_URL"); v != "" {
		cfg.MediaServer.URL = v
	}
	if v := os.Getenv("USHER_MEDIA_SERVER_API_KEY"); v != "" {
		cfg.MediaServer.APIKey = v
	}
	if v := os.Getenv("USHER_PUSHBULLET_API_KEY"); v != "" {
		cfg.Notifications.Pushbullet.APIKey = v
	}
}

// Validate rejects settings that would make the daemon misbehave at runtime
// rather than at startup.
func Validate(cfg *Config) error {
	switch cfg.MediaServer.Type {
	case "emby", "jellyfin", "":
	default:
		return fmt.Errorf("unsupported media server type: %q", cfg.MediaServer.Type)
	}

	switch cfg.Organizer.MultiFileMode {
	case "all", "primary_only", "skip":
	default:
		return fmt.Errorf("unsupported multi_file_mode: %q", cfg.Organizer.MultiFileMode)
	}

	if m := cfg.Organizer.SourceTargetMapping; m != "" {
		src, dst, ok := strings.Cut(m, "->")
		if !ok {
			return fmt.Errorf("source_target_mapping must be of the form 'SRC->DST', got %q", m)
		}
		if strings.TrimSpace(src) == "" || strings.TrimSpace(dst) == "" {
			return fmt.Errorf("source_target_mapping has an empty side: %q", m)
		}
	}

	if mode := cfg.PerformerSync.ExportMode; mode < 0 || mode > 4 {
		return fmt.Errorf("performer_sync.export_mode out of range: %d", mode)
	}
	if mode := cfg.PerformerSync.UploadMode; mode < 0 || mode > 4 {
		return fmt.Errorf("performer_sync.upload_mode out of range: %d", mode)
	}
	if mode := cfg.PerformerSync.HookMode; mode < 0 || mode > 3 {
		return fmt.Errorf("performer_sync.hook_mode out of range: %d", mode)
	}

	return nil
}
