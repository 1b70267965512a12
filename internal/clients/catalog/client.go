package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"usher/internal/utils"
)

const sceneFragment = `
	id
	title
	code
	details
	director
	urls
	date
	rating100
	organized
	files {
		id
		path
		size
		duration
		video_codec
		audio_codec
		width
		height
		frame_rate
		bit_rate
		fingerprints {
			type
			value
		}
	}
	paths {
		screenshot
		preview
		stream
		webp
	}
	studio {
		id
		name
		details
		image_path
	}
	groups {
		group {
			id
			name
		}
		scene_index
	}
	tags {
		id
		name
	}
	performers {
		id
		name
		disambiguation
		gender
		birthdate
		country
		eye_color
		height_cm
		measurements
		fake_tits
		image_path
	}
	stash_ids {
		endpoint
		stash_id
	}
`

const performerFragment = `
	id
	name
	disambiguation
	urls
	gender
	birthdate
	ethnicity
	country
	eye_color
	height_cm
	measurements
	fake_tits
	penis_length
	circumcised
	career_length
	tattoos
	piercings
	alias_list
	details
	death_date
	hair_color
	weight
	image_path
	tags {
		id
		name
	}
`

const studioFragment = `
	id
	name
	details
	image_path
	rating100
	aliases
	urls
	stash_ids {
		endpoint
		stash_id
	}
`

// Client talks to the catalog server's GraphQL endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	cookieName  string
	cookieValue string
	httpClient  *http.Client
	logger      *utils.Logger
}

func NewClient(baseURL, apiKey, cookieName, cookieValue string, timeout time.Duration, logger *utils.Logger) *Client {
	// The catalog reports its bind address in hooks; 0.0.0.0 is not
	// dialable from here.
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.Replace(baseURL, "//0.0.0.0", "//localhost", 1)

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		cookieName:  cookieName,
		cookieValue: cookieValue,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// BaseURL returns the normalized catalog base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned HTTP %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("catalog error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode catalog data: %w", err)
		}
	}
	return nil
}

func (c *Client) authenticate(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("ApiKey", c.apiKey)
	}
	if c.cookieName != "" && c.cookieValue != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.cookieValue})
	}
}

// PathUnder filters scenes whose file path starts with prefix.
func PathUnder(prefix string) *SceneFilter {
	return &SceneFilter{Path: &StringCriterion{
		Value:    "^" + regexp.QuoteMeta(prefix) + ".*",
		Modifier: "MATCHES_REGEX",
	}}
}

// PathNotUnder filters scenes whose file path does not start with prefix.
func PathNotUnder(prefix string) *SceneFilter {
	return &SceneFilter{Path: &StringCriterion{
		Value:    "^" + regexp.QuoteMeta(prefix) + ".*",
		Modifier: "NOT_MATCHES_REGEX",
	}}
}

// FindScenes returns one page of scenes matching the filter. A nil filter
// matches everything.
func (c *Client) FindScenes(ctx context.Context, filter *SceneFilter, page, perPage int) ([]Scene, error) {
	query := fmt.Sprintf(`
		query FindScenes($filter: FindFilterType, $scene_filter: SceneFilterType) {
			findScenes(filter: $filter, scene_filter: $scene_filter) {
				count
				scenes { %s }
			}
		}`, sceneFragment)

	variables := map[string]interface{}{
		"filter": map[string]interface{}{
			"page":     page,
			"per_page": perPage,
		},
	}
	if filter != nil {
		variables["scene_filter"] = filter
	}

	var data struct {
		FindScenes struct {
			Count  int     `json:"count"`
			Scenes []Scene `json:"scenes"`
		} `json:"findScenes"`
	}
	if err := c.do(ctx, query, variables, &data); err != nil {
		return nil, err
	}
	return data.FindScenes.Scenes, nil
}

func (c *Client) FindScene(ctx context.Context, id string) (*Scene, error) {
	query := fmt.Sprintf(`
		query FindScene($id: ID!) {
			findScene(id: $id) { %s }
		}`, sceneFragment)

	var data struct {
		FindScene *Scene `json:"findScene"`
	}
	if err := c.do(ctx, query, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	return data.FindScene, nil
}

// FindPerformers returns one page of performers. With full=false only id and
// name are fetched, which keeps sweep pre-scans cheap.
func (c *Client) FindPerformers(ctx context.Context, page, perPage int, full bool) ([]Performer, error) {
	fragment := "id\nname"
	if full {
		fragment = performerFragment
	}
	query := fmt.Sprintf(`
		query FindPerformers($filter: FindFilterType) {
			findPerformers(filter: $filter) {
				count
				performers { %s }
			}
		}`, fragment)

	variables := map[string]interface{}{
		"filter": map[string]interface{}{
			"page":     page,
			"per_page": perPage,
		},
	}

	var data struct {
		FindPerformers struct {
			Count      int         `json:"count"`
			Performers []Performer `json:"performers"`
		} `json:"findPerformers"`
	}
	if err := c.do(ctx, query, variables, &data); err != nil {
		return nil, err
	}
	return data.FindPerformers.Performers, nil
}

func (c *Client) FindPerformer(ctx context.Context, id string) (*Performer, error) {
	query := fmt.Sprintf(`
		query FindPerformer($id: ID!) {
			findPerformer(id: $id) { %s }
		}`, performerFragment)

	var data struct {
		FindPerformer *Performer `json:"findPerformer"`
	}
	if err := c.do(ctx, query, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	return data.FindPerformer, nil
}

func (c *Client) FindStudio(ctx context.Context, id string) (*Studio, error) {
	query := fmt.Sprintf(`
		query FindStudio($id: ID!) {
			findStudio(id: $id) { %s }
		}`, studioFragment)

	var data struct {
		FindStudio *Studio `json:"findStudio"`
	}
	if err := c.do(ctx, query, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	return data.FindStudio, nil
}

// FindStudios pages through all studios.
func (c *Client) FindStudios(ctx context.Context, page, perPage int) ([]Studio, error) {
	query := fmt.Sprintf(`
		query FindStudios($filter: FindFilterType) {
			findStudios(filter: $filter) {
				count
				studios { %s }
			}
		}`, studioFragment)

	variables := map[string]interface{}{
		"filter": map[string]interface{}{
			"page":     page,
			"per_page": perPage,
		},
	}

	var data struct {
		FindStudios struct {
			Count   int      `json:"count"`
			Studios []Studio `json:"studios"`
		} `json:"findStudios"`
	}
	if err := c.do(ctx, query, variables, &data); err != nil {
		return nil, err
	}
	return data.FindStudios.Studios, nil
}

// MoveFiles asks the catalog to relocate a file so its database stays in
// step with the filesystem. usher never renames managed video files itself.
func (c *Client) MoveFiles(ctx context.Context, fileID, destFolder, destBasename string) error {
	query := `
		mutation MoveFiles($input: MoveFilesInput!) {
			moveFiles(input: $input)
		}`

	variables := map[string]interface{}{
		"input": map[string]interface{}{
			"ids":                  []string{fileID},
			"destination_folder":   destFolder,
			"destination_basename": destBasename,
		},
	}

	var data struct {
		MoveFiles bool `json:"moveFiles"`
	}
	if err := c.do(ctx, query, variables, &data); err != nil {
		return err
	}
	if !data.MoveFiles {
		return fmt.Errorf("catalog declined to move file %s", fileID)
	}
	return nil
}

// Ping verifies the GraphQL endpoint responds.
func (c *Client) Ping(ctx context.Context) error {
	query := `query Version { version { version } }`
	var data struct {
		Version struct {
			Version string `json:"version"`
		} `json:"version"`
	}
	return c.do(ctx, query, nil, &data)
}

// AbsoluteURL resolves catalog-relative asset paths against the base URL.
func (c *Client) AbsoluteURL(u string) string {
	if u == "" {
		return u
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return c.baseURL + u
}
