// Package mediaserver talks to the downstream media server (Emby or
// Jellyfin) that displays the organized library.
package mediaserver

import "context"

// Item is the minimal identity of a media-server object (person, BoxSet).
type Item struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// Client is the media-server surface the sync workers need. Both supported
// servers expose the same item model; they differ in auth and path prefix.
type Client interface {
	// UserID returns the id of the first configured user. Person and
	// collection lookups are served from user-scoped endpoints.
	UserID(ctx context.Context) (string, error)

	// PersonByName resolves a person item by exact name. A missing person
	// is (nil, nil), not an error: the server only materializes people
	// referenced by library items.
	PersonByName(ctx context.Context, name string) (*Item, error)

	// ItemByID fetches the raw item document. It is returned as a map so
	// a read-modify-write update preserves fields this code knows nothing
	// about.
	ItemByID(ctx context.Context, userID, itemID string) (map[string]interface{}, error)

	UpdateItem(ctx context.Context, itemID string, item map[string]interface{}) error

	UploadPrimaryImage(ctx context.Context, itemID string, data []byte, contentType string) error

	// FindCollection searches BoxSets for an exact (case-insensitive)
	// name match. A missing collection is (nil, nil).
	FindCollection(ctx context.Context, userID, name string) (*Item, error)

	RefreshLibrary(ctx context.Context) error

	RunScheduledTask(ctx context.Context, taskID string) error

	Ping(ctx context.Context) error
}
