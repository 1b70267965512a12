package mediaserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"usher/internal/utils"
)

const (
	refreshTimeout  = 10 * time.Second
	metadataTimeout = 30 * time.Second
	imageTimeout    = 60 * time.Second
)

// api implements Client against the Emby-style REST surface. Emby and
// Jellyfin share it; the constructors differ only in path prefix and how
// the key is presented.
type api struct {
	baseURL    string
	apiKey     string
	pathPrefix string // "/emby" on Emby, "" on Jellyfin
	headerAuth bool   // Jellyfin wants X-Emby-Token instead of ?api_key=
	httpClient *http.Client
	logger     *utils.Logger

	cachedUserID string
}

// EmbyClient is the Client implementation for Emby servers.
type EmbyClient struct{ *api }

// JellyfinClient is the Client implementation for Jellyfin servers.
type JellyfinClient struct{ *api }

func NewEmbyClient(baseURL, apiKey string, logger *utils.Logger) *EmbyClient {
	return &EmbyClient{&api{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		pathPrefix: "/emby",
		httpClient: &http.Client{},
		logger:     logger,
	}}
}

func NewJellyfinClient(baseURL, apiKey string, logger *utils.Logger) *JellyfinClient {
	return &JellyfinClient{&api{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		headerAuth: true,
		httpClient: &http.Client{},
		logger:     logger,
	}}
}

func (a *api) endpoint(p string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if !a.headerAuth {
		query.Set("api_key", a.apiKey)
	}
	u := a.baseURL + a.pathPrefix + p
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

func (a *api) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if a.headerAuth {
		req.Header.Set("X-Emby-Token", a.apiKey)
	}
	return req, nil
}

func (a *api) UserID(ctx context.Context) (string, error) {
	if a.cachedUserID != "" {
		return a.cachedUserID, nil
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := a.newRequest(ctx, http.MethodGet, a.endpoint("/Users", nil), nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("list users: HTTP %d", resp.StatusCode)
	}

	var users []Item
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return "", fmt.Errorf("decode users: %w", err)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("media server reports no users")
	}

	a.cachedUserID = users[0].ID
	return a.cachedUserID, nil
}

func (a *api) PersonByName(ctx context.Context, name string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := a.newRequest(ctx, http.MethodGet, a.endpoint("/Persons/"+url.PathEscape(name), nil), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("find person %q: %w", name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("find person %q: HTTP %d", name, resp.StatusCode)
	}

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode person %q: %w", name, err)
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

func (a *api) ItemByID(ctx context.Context, userID, itemID string) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := a.newRequest(ctx, http.MethodGet, a.endpoint("/Users/"+userID+"/Items/"+itemID, nil), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get item %s: HTTP %d", itemID, resp.StatusCode)
	}

	var item map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", itemID, err)
	}
	return item, nil
}

func (a *api) UpdateItem(ctx context.Context, itemID string, item map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", itemID, err)
	}

	req, err := a.newRequest(ctx, http.MethodPost, a.endpoint("/Items/"+itemID, nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update item %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("update item %s: HTTP %d", itemID, resp.StatusCode)
	}
	return nil
}

// UploadPrimaryImage replaces the primary image. The server expects the
// image bytes base64-encoded in the request body with the original content
// type on the header.
func (a *api) UploadPrimaryImage(ctx context.Context, itemID string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()

	encoded := base64.StdEncoding.EncodeToString(data)

	req, err := a.newRequest(ctx, http.MethodPost, a.endpoint("/Items/"+itemID+"/Images/Primary", nil), strings.NewReader(encoded))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload image for item %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("upload image for item %s: HTTP %d", itemID, resp.StatusCode)
	}
	return nil
}

func (a *api) FindCollection(ctx context.Context, userID, name string) (*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("IncludeItemTypes", "BoxSet")
	query.Set("SearchTerm", name)
	query.Set("Limit", "10")
	query.Set("Recursive", "true")

	req, err := a.newRequest(ctx, http.MethodGet, a.endpoint("/Users/"+userID+"/Items", query), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search collection %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search collection %q: HTTP %d", name, resp.StatusCode)
	}

	var result struct {
		Items []Item `json:"Items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode collection search: %w", err)
	}

	for i := range result.Items {
		if strings.EqualFold(result.Items[i].Name, name) {
			return &result.Items[i], nil
		}
	}
	return nil, nil
}

func (a *api) RefreshLibrary(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	req, err := a.newRequest(ctx, http.MethodPost, a.endpoint("/Library/Media/Updated", nil), nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh library: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("refresh library: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (a *api) RunScheduledTask(ctx context.Context, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := a.newRequest(ctx, http.MethodPost, a.endpoint("/ScheduledTasks/Running/"+taskID, nil), nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("run scheduled task %s: %w", taskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("run scheduled task %s: HTTP %d", taskID, resp.StatusCode)
	}
	return nil
}

func (a *api) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	req, err := a.newRequest(ctx, http.MethodGet, a.endpoint("/System/Info", nil), nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media server ping: HTTP %d", resp.StatusCode)
	}
	return nil
}
