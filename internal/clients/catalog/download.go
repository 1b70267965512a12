package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const downloadAttempts = 3

var imageExtByType = map[string]string{
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/png":     ".png",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

var knownImageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".svg": true,
}

// Fetch retrieves a catalog asset into memory and reports its content type.
// Used when the bytes are forwarded elsewhere (media-server image upload)
// instead of landing on disk.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.AbsoluteURL(rawURL), nil)
	if err != nil {
		return nil, "", err
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

// Download writes a catalog asset to dstPath, retrying transient failures
// with a linear backoff. With detectExt the destination gains an image
// extension sniffed from the Content-Type (falling back to the URL path,
// then to .jpg) unless it already carries a known one. The final path is
// returned.
func (c *Client) Download(ctx context.Context, rawURL, dstPath string, detectExt bool) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("empty download url")
	}
	absURL := c.AbsoluteURL(rawURL)

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		finalPath, err := c.downloadOnce(ctx, absURL, dstPath, detectExt)
		if err == nil {
			c.logger.Info("Downloaded", absURL, "->", finalPath)
			return finalPath, nil
		}
		lastErr = err
		c.logger.Warn(fmt.Sprintf("Download attempt %d/%d failed for %s: %v", attempt, downloadAttempts, absURL, err))

		if attempt < downloadAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(2*attempt) * time.Second):
			}
		}
	}
	return "", fmt.Errorf("download failed after %d attempts: %w", downloadAttempts, lastErr)
}

func (c *Client) downloadOnce(ctx context.Context, absURL, dstPath string, detectExt bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		return "", err
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	finalPath := dstPath
	if detectExt && !hasKnownImageExt(dstPath) {
		ext := sniffImageExt(resp, absURL)
		if ext == "" {
			// An extension-less poster would never match later sidecar
			// lookups, so assume jpeg when nothing can be sniffed.
			ext = ".jpg"
		}
		finalPath = dstPath + ext
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return "", err
	}

	f, err := os.Create(finalPath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(finalPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return finalPath, nil
}

func hasKnownImageExt(p string) bool {
	return knownImageExts[strings.ToLower(filepath.Ext(p))]
}

func sniffImageExt(resp *http.Response, absURL string) string {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if ext, ok := imageExtByType[contentType]; ok {
		return ext
	}

	// Fall back to whatever the (possibly redirected) URL path carries.
	target := absURL
	if resp.Request != nil && resp.Request.URL != nil {
		target = resp.Request.URL.String()
	}
	if parsed, err := url.Parse(target); err == nil {
		if ext := strings.ToLower(path.Ext(parsed.Path)); knownImageExts[ext] {
			return ext
		}
	}
	return ""
}
