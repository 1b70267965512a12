package organizer

import (
	"path/filepath"
	"strings"
	"testing"

	"usher/internal/clients/catalog"
)

func testScene() *catalog.Scene {
	rating := 85
	return &catalog.Scene{
		ID:        "12",
		Title:     "A Scene",
		Code:      "SC-001",
		Date:      "2024-05-17",
		Rating100: &rating,
		Organized: true,
		Studio:    &catalog.Studio{ID: "3", Name: "Some Studio"},
		Performers: []catalog.Performer{
			{ID: "1", Name: "First Performer"},
			{ID: "2", Name: "Second Performer"},
		},
		Tags:     []catalog.Tag{{ID: "9", Name: "tagged"}},
		StashIDs: []catalog.StashID{{Endpoint: "https://example.org", StashID: "abc-def"}},
		Files: []catalog.SceneFile{
			{ID: "101", Path: "/downloads/incoming/raw name.mp4", Width: 1920, Height: 1080, Size: 1000},
		},
	}
}

func TestResolutionLabel(t *testing.T) {
	cases := []struct {
		width, height int
		resolution    string
		quality       string
	}{
		{7680, 4320, "8K", "FUHD"},
		{3840, 2160, "4K", "UHD"},
		{2560, 1440, "1440p", "QHD"},
		{1920, 1080, "1080p", "FHD"},
		{2048, 1080, "1080p", "2K"},
		{2560, 1080, "1080p", "FHD"},
		{1280, 720, "720p", "HD"},
		{854, 480, "480p", "SD"},
		{640, 360, "480p", "LOW"},
		{0, 0, "", ""},
		{1920, 0, "", ""},
	}

	for _, tc := range cases {
		res, quality := resolutionLabel(tc.width, tc.height)
		if res != tc.resolution || quality != tc.quality {
			t.Errorf("resolutionLabel(%d, %d) = %q/%q, want %q/%q",
				tc.width, tc.height, res, quality, tc.resolution, tc.quality)
		}
	}
}

func TestTemplateVars(t *testing.T) {
	scene := testScene()
	vars := templateVars(scene, &scene.Files[0])

	checks := map[string]string{
		"scene_title":       "A Scene",
		"date_year":         "2024",
		"date_month":        "05",
		"date_day":          "17",
		"studio":            "Some Studio",
		"performers":        "First Performer-Second Performer",
		"first_performer":   "First Performer",
		"performer_count":   "2",
		"tags":              "tagged",
		"rating":            "85",
		"external_id":       "abc-def",
		"original_basename": "raw name",
		"ext":               "mp4",
		"resolution":        "1080p",
		"quality":           "FHD",
	}
	for k, want := range checks {
		if got := vars[k]; got != want {
			t.Errorf("vars[%q] = %q, want %q", k, got, want)
		}
	}
}

func TestTemplateVarsUnknownDimensions(t *testing.T) {
	scene := testScene()
	scene.Files[0].Width = 0
	scene.Files[0].Height = 0
	vars := templateVars(scene, &scene.Files[0])

	for _, k := range []string{"width", "height", "resolution", "quality"} {
		if vars[k] != "" {
			t.Errorf("vars[%q] = %q, want empty for unknown dimensions", k, vars[k])
		}
	}
}

func TestTemplateVarsFlattensSeparators(t *testing.T) {
	scene := testScene()
	scene.Title = "Part 1/2"
	vars := templateVars(scene, &scene.Files[0])
	if vars["scene_title"] != "Part 1_2" {
		t.Errorf("scene_title = %q, want separators flattened", vars["scene_title"])
	}
}

func TestRenderFilename(t *testing.T) {
	scene := testScene()
	file := &scene.Files[0]

	got, err := renderFilename("{studio}/{date_year}/{scene_title} [{resolution}]", scene, file, 0, 1)
	if err != nil {
		t.Fatalf("renderFilename failed: %v", err)
	}
	want := filepath.Join("Some Studio", "2024", "A Scene [1080p].mp4")
	if got != want {
		t.Errorf("renderFilename = %q, want %q", got, want)
	}
}

func TestRenderFilenameKeepsTemplateExtension(t *testing.T) {
	scene := testScene()
	got, err := renderFilename("{original_basename}.mkv", scene, &scene.Files[0], 0, 1)
	if err != nil {
		t.Fatalf("renderFilename failed: %v", err)
	}
	if got != "raw name.mkv" {
		t.Errorf("renderFilename = %q, want %q", got, "raw name.mkv")
	}
}

func TestRenderFilenameMultiFileSuffix(t *testing.T) {
	scene := testScene()
	file := &scene.Files[0]

	got, err := renderFilename("{scene_title}", scene, file, 1, 3)
	if err != nil {
		t.Fatalf("renderFilename failed: %v", err)
	}
	if got != "A Scene-cd2.mp4" {
		t.Errorf("renderFilename = %q, want %q", got, "A Scene-cd2.mp4")
	}

	got, err = renderFilename("{scene_title}", scene, file, 0, 1)
	if err != nil {
		t.Fatalf("renderFilename failed: %v", err)
	}
	if strings.Contains(got, "-cd") {
		t.Errorf("single-file scene must not get a disc suffix, got %q", got)
	}
}

func TestRenderFilenameUnknownPlaceholder(t *testing.T) {
	scene := testScene()
	_, err := renderFilename("{nope}", scene, &scene.Files[0], 0, 1)
	if err == nil {
		t.Fatal("expected an error for an unknown placeholder")
	}
	if !strings.Contains(err.Error(), "{nope}") {
		t.Errorf("error should name the placeholder, got: %v", err)
	}
}

func TestRenderFilenameSanitizesSegments(t *testing.T) {
	scene := testScene()
	scene.Title = `What? A "Title"`
	got, err := renderFilename("{scene_title}", scene, &scene.Files[0], 0, 1)
	if err != nil {
		t.Fatalf("renderFilename failed: %v", err)
	}
	if got != "What_ A _Title_.mp4" {
		t.Errorf("renderFilename = %q", got)
	}
}
