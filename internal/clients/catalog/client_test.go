package catalog_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"usher/internal/clients/catalog"
	"usher/internal/utils"
)

func testLogger() *utils.Logger {
	return utils.NewLogger(false, io.Discard)
}

// graphqlServer answers every GraphQL POST with the given data payload and
// records the last request for assertions.
func graphqlServer(t *testing.T, data string) (*httptest.Server, *graphqlRecorder) {
	t.Helper()
	rec := &graphqlRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		rec.apiKey = r.Header.Get("ApiKey")
		if cookie, err := r.Cookie("session"); err == nil {
			rec.cookie = cookie.Value
		}
		var body struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		rec.query = body.Query
		rec.variables = body.Variables
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, data)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

type graphqlRecorder struct {
	query     string
	variables map[string]interface{}
	apiKey    string
	cookie    string
}

func TestClientAuthentication(t *testing.T) {
	srv, rec := graphqlServer(t, `{"data":{"version":{"version":"v1"}}}`)

	c := catalog.NewClient(srv.URL, "secret", "session", "cookieval", time.Second, testLogger())
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if rec.apiKey != "secret" {
		t.Errorf("ApiKey header = %q", rec.apiKey)
	}
	if rec.cookie != "cookieval" {
		t.Errorf("session cookie = %q", rec.cookie)
	}
}

func TestClientNormalizesBindAddress(t *testing.T) {
	c := catalog.NewClient("http://0.0.0.0:9999/", "", "", "", time.Second, testLogger())
	if got := c.BaseURL(); got != "http://localhost:9999" {
		t.Errorf("BaseURL = %q, want http://localhost:9999", got)
	}
}

func TestClientGraphQLError(t *testing.T) {
	srv, _ := graphqlServer(t, `{"errors":[{"message":"must be authenticated"}]}`)

	c := catalog.NewClient(srv.URL, "", "", "", time.Second, testLogger())
	err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("expected an error from the errors envelope")
	}
	if got := err.Error(); got != "catalog error: must be authenticated" {
		t.Errorf("error = %q", got)
	}
}

func TestFindScene(t *testing.T) {
	srv, _ := graphqlServer(t, `{"data":{"findScene":{
		"id":"12","title":"A Scene","organized":true,
		"files":[{"id":"101","path":"/downloads/a.mp4","width":1920,"height":1080}],
		"studio":{"id":"3","name":"Some Studio"}
	}}}`)

	c := catalog.NewClient(srv.URL, "", "", "", time.Second, testLogger())
	scene, err := c.FindScene(context.Background(), "12")
	if err != nil {
		t.Fatalf("FindScene failed: %v", err)
	}
	if scene.Title != "A Scene" || !scene.Organized {
		t.Errorf("scene = %+v", scene)
	}
	if len(scene.Files) != 1 || scene.Files[0].Width != 1920 {
		t.Errorf("files = %+v", scene.Files)
	}
	if scene.Studio == nil || scene.Studio.Name != "Some Studio" {
		t.Errorf("studio = %+v", scene.Studio)
	}
}

func TestMoveFiles(t *testing.T) {
	srv, rec := graphqlServer(t, `{"data":{"moveFiles":true}}`)

	c := catalog.NewClient(srv.URL, "", "", "", time.Second, testLogger())
	if err := c.MoveFiles(context.Background(), "101", "/library/siteA", "clip.mp4"); err != nil {
		t.Fatalf("MoveFiles failed: %v", err)
	}

	input, _ := rec.variables["input"].(map[string]interface{})
	if input == nil {
		t.Fatalf("variables = %+v", rec.variables)
	}
	if input["destination_folder"] != "/library/siteA" || input["destination_basename"] != "clip.mp4" {
		t.Errorf("input = %+v", input)
	}
	ids, _ := input["ids"].([]interface{})
	if len(ids) != 1 || ids[0] != "101" {
		t.Errorf("ids = %+v", ids)
	}
}

func TestMoveFilesDeclined(t *testing.T) {
	srv, _ := graphqlServer(t, `{"data":{"moveFiles":false}}`)

	c := catalog.NewClient(srv.URL, "", "", "", time.Second, testLogger())
	if err := c.MoveFiles(context.Background(), "101", "/x", "y"); err == nil {
		t.Fatal("expected an error when the catalog declines the move")
	}
}

func TestPathFilters(t *testing.T) {
	f := catalog.PathUnder("/library/a+b")
	if f.Path.Modifier != "MATCHES_REGEX" {
		t.Errorf("modifier = %q", f.Path.Modifier)
	}
	if f.Path.Value != `^/library/a\+b.*` {
		t.Errorf("value = %q, regex metacharacters must be escaped", f.Path.Value)
	}

	nf := catalog.PathNotUnder("/library")
	if nf.Path.Modifier != "NOT_MATCHES_REGEX" {
		t.Errorf("modifier = %q", nf.Path.Modifier)
	}
}

func TestDownloadSniffsExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngdata"))
	}))
	defer srv.Close()

	c := catalog.NewClient(srv.URL, "", "", "", time.Second, testLogger())
	dst := filepath.Join(t.TempDir(), "clip-poster")
	final, err := c.Download(context.Background(), "/image/12", dst, true)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if final != dst+".png" {
		t.Errorf("final path = %q, want %q", final, dst+".png")
	}
	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "pngdata" {
		t.Errorf("content = %q", data)
	}
}

func TestDownloadFallsBackToJpg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("mystery"))
	}))
	defer srv.Close()

	c := catalog.NewClient(srv.URL, "", "", "", time.Second, testLogger())
	dst := filepath.Join(t.TempDir(), "clip-poster")
	final, err := c.Download(context.Background(), "/image/12", dst, true)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if final != dst+".jpg" {
		t.Errorf("final path = %q, want %q", final, dst+".jpg")
	}
}

func TestDownloadKeepsExistingExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	c := catalog.NewClient(srv.URL, "", "", "", time.Second, testLogger())
	dst := filepath.Join(t.TempDir(), "poster.jpg")
	final, err := c.Download(context.Background(), "/image/12", dst, true)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if final != dst {
		t.Errorf("final path = %q, want unchanged %q", final, dst)
	}
}

func TestAbsoluteURL(t *testing.T) {
	c := catalog.NewClient("http://localhost:9999", "", "", "", time.Second, testLogger())
	cases := map[string]string{
		"":                        "",
		"/scene/12/screenshot":    "http://localhost:9999/scene/12/screenshot",
		"scene/12/screenshot":     "http://localhost:9999/scene/12/screenshot",
		"https://cdn.example/x":   "https://cdn.example/x",
	}
	for in, want := range cases {
		if got := c.AbsoluteURL(in); got != want {
			t.Errorf("AbsoluteURL(%q) = %q, want %q", in, got, want)
		}
	}
}
