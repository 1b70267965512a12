package organizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"usher/internal/clients/catalog"
)

func TestSceneMovie(t *testing.T) {
	scene := testScene()
	scene.Details = "Plot text"
	scene.URLs = []string{"https://example.org/scene/12"}
	file := &scene.Files[0]
	file.Duration = 1830
	file.VideoCodec = "h264"
	file.AudioCodec = "aac"
	file.BitRate = 5_000_000

	m := sceneMovie(scene, file)

	if m.Title != "A Scene" || m.Year != "2024" || m.Premiered != "2024-05-17" {
		t.Errorf("basic fields wrong: %+v", m)
	}
	if m.OriginalTitle != "SC-001 A Scene" {
		t.Errorf("OriginalTitle = %q", m.OriginalTitle)
	}
	if m.Rating != "8.5" {
		t.Errorf("Rating = %q, want 8.5", m.Rating)
	}
	if m.Runtime != "30" {
		t.Errorf("Runtime = %q, want 30 minutes", m.Runtime)
	}
	if m.URL != "https://example.org/scene/12" {
		t.Errorf("URL = %q", m.URL)
	}
	if len(m.Actors) != 2 || m.Actors[0].Name != "First Performer" {
		t.Errorf("Actors = %+v", m.Actors)
	}

	if len(m.UniqueIDs) != 2 {
		t.Fatalf("UniqueIDs = %+v", m.UniqueIDs)
	}
	if m.UniqueIDs[0].Type != "stashdb" || !m.UniqueIDs[0].Default {
		t.Errorf("external id should be the default unique id: %+v", m.UniqueIDs[0])
	}
	if m.UniqueIDs[1].Type != "stash" || m.UniqueIDs[1].Default {
		t.Errorf("local id should not be default when an external one exists: %+v", m.UniqueIDs[1])
	}

	video := m.FileInfo.StreamDetails.Video
	if video.Width != 1920 || video.Aspect != "1.778" || video.Bitrate != 5000 {
		t.Errorf("video stream = %+v", video)
	}
	if m.FileInfo.StreamDetails.Audio.Codec != "aac" {
		t.Errorf("audio stream = %+v", m.FileInfo.StreamDetails.Audio)
	}
}

func TestSceneMovieLocalIDDefaultWithoutExternal(t *testing.T) {
	scene := testScene()
	scene.StashIDs = nil

	m := sceneMovie(scene, nil)
	if len(m.UniqueIDs) != 1 || !m.UniqueIDs[0].Default || m.UniqueIDs[0].Type != "stash" {
		t.Errorf("UniqueIDs = %+v", m.UniqueIDs)
	}
}

func TestProcessSceneSkipsUnorganized(t *testing.T) {
	o := testOrganizer(t, "", "/library")
	o.cfg().Organizer.MoveOnlyOrganized = true

	scene := testScene()
	scene.Organized = false
	if err := o.ProcessScene(context.Background(), scene); err != nil {
		t.Fatalf("unorganized scene should be a no-op, got: %v", err)
	}
}

func TestProcessSceneMultiFileSkip(t *testing.T) {
	o := testOrganizer(t, "", "/library")
	o.cfg().Organizer.MultiFileMode = "skip"

	scene := testScene()
	scene.Files = append(scene.Files, catalog.SceneFile{ID: "102", Path: "/downloads/b.mp4"})
	if err := o.ProcessScene(context.Background(), scene); err != nil {
		t.Fatalf("multi-file skip should be a no-op, got: %v", err)
	}
}

func TestProcessSceneDryRun(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "downloads")
	dst := filepath.Join(base, "library")
	if err := os.MkdirAll(filepath.Join(src, "siteA"), 0755); err != nil {
		t.Fatal(err)
	}
	srcFile := filepath.Join(src, "siteA", "clip.mp4")
	if err := os.WriteFile(srcFile, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	o := testOrganizer(t, src+"->"+dst, "")
	o.cfg().Organizer.DryRun = true

	scene := testScene()
	scene.Files[0].Path = srcFile

	if err := o.ProcessScene(context.Background(), scene); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if _, err := os.Stat(srcFile); err != nil {
		t.Error("dry run must not touch the source file")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("dry run must not create destination directories")
	}
}

func TestPosterExists(t *testing.T) {
	dir := t.TempDir()
	if posterExists(dir, "clip") {
		t.Error("posterExists on empty dir")
	}
	if err := os.WriteFile(filepath.Join(dir, "clip-poster.webp"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if !posterExists(dir, "clip") {
		t.Error("posterExists should match any extension")
	}
	if posterExists(dir, "other") {
		t.Error("posterExists matched the wrong stem")
	}
}
