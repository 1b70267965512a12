package organizer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"usher/internal/clients/catalog"
	"usher/internal/config"
	"usher/internal/utils"
)

// fakeCatalog serves findScenes pages from a mutable scene list and drops
// a scene from the list when moveFiles relocates its file, the same way a
// real catalog's path filter stops matching a moved file.
type fakeCatalog struct {
	mu     sync.Mutex
	scenes []catalog.Scene
	moved  []string
}

func (f *fakeCatalog) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string          `json:"query"`
			Variables json.RawMessage `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad graphql request: %v", err)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.Contains(req.Query, "findScenes"):
			var vars struct {
				Filter struct {
					Page    int `json:"page"`
					PerPage int `json:"per_page"`
				} `json:"filter"`
			}
			if err := json.Unmarshal(req.Variables, &vars); err != nil {
				t.Errorf("bad findScenes variables: %v", err)
				return
			}
			start := (vars.Filter.Page - 1) * vars.Filter.PerPage
			end := start + vars.Filter.PerPage
			if start > len(f.scenes) {
				start = len(f.scenes)
			}
			if end > len(f.scenes) {
				end = len(f.scenes)
			}
			resp := map[string]interface{}{
				"data": map[string]interface{}{
					"findScenes": map[string]interface{}{
						"count":  len(f.scenes),
						"scenes": f.scenes[start:end],
					},
				},
			}
			json.NewEncoder(w).Encode(resp)

		case strings.Contains(req.Query, "moveFiles"):
			var vars struct {
				Input struct {
					IDs []string `json:"ids"`
				} `json:"input"`
			}
			if err := json.Unmarshal(req.Variables, &vars); err != nil {
				t.Errorf("bad moveFiles variables: %v", err)
				return
			}
			for _, id := range vars.Input.IDs {
				f.moved = append(f.moved, id)
				kept := f.scenes[:0]
				for _, s := range f.scenes {
					if len(s.Files) == 0 || s.Files[0].ID != id {
						kept = append(kept, s)
					}
				}
				f.scenes = kept
			}
			io.WriteString(w, `{"data": {"moveFiles": true}}`)

		default:
			t.Errorf("unexpected query: %s", req.Query)
		}
	}
}

// Processing a page moves files out of the filter, which shifts what the
// next page holds. The sweep has to gather all pages before touching
// anything, or later scenes are skipped.
func TestSweepVisitsAllPagesDespiteMoves(t *testing.T) {
	fake := &fakeCatalog{
		scenes: []catalog.Scene{
			{ID: "1", Files: []catalog.SceneFile{{ID: "f1", Path: "/downloads/a/one.mp4"}}},
			{ID: "2", Files: []catalog.SceneFile{{ID: "f2", Path: "/downloads/a/two.mp4"}}},
			{ID: "3", Files: []catalog.SceneFile{{ID: "f3", Path: "/downloads/a/three.mp4"}}},
		},
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Organizer.SourceTargetMapping = "/downloads->/library"
	cfg.Organizer.FilenameTemplate = "{original_basename}"
	cfg.Organizer.MultiFileMode = "all"
	cfg.Organizer.PerPage = 2

	logger := utils.NewLogger(false, io.Discard)
	client := catalog.NewClient(srv.URL, "", "", "", 5*time.Second, logger)
	o := New(config.NewStore(cfg), logger, client, nil, nil)

	n, err := o.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 3 {
		t.Errorf("visited %d scenes, want 3", n)
	}
	if len(fake.moved) != 3 {
		t.Errorf("moved files = %v, want all three", fake.moved)
	}
}
