package notifications

import (
	"fmt"

	"usher/internal/utils"

	"github.com/xconstruct/go-pushbullet"
)

// PushbulletClient implements the Notifier interface for Pushbullet.
type PushbulletClient struct {
	apiKey string
	pb     *pushbullet.Client
	logger *utils.Logger
}

// NewPushbulletClient creates a new client for sending Pushbullet notifications.
func NewPushbulletClient(apiKey string, logger *utils.Logger) *PushbulletClient {
	pb := pushbullet.New(apiKey)
	return &PushbulletClient{
		apiKey: apiKey,
		pb:     pb,
		logger: logger,
	}
}

// sendPush sends a note to all of the user's devices.
func (c *PushbulletClient) sendPush(title, body string) error {
	// The first argument to PushNote is the device iden. Empty means all devices.
	err := c.pb.PushNote("", title, body)
	return err
}

// NotifySceneOrganized sends a notification after a scene's files land in the library.
func (c *PushbulletClient) NotifySceneOrganized(title, destination string) {
	pushTitle := fmt.Sprintf("Scene Organized: %s", title)
	body := fmt.Sprintf("Moved into library: %s", destination)
	if err := c.sendPush(pushTitle, body); err != nil {
		c.logger.Error("Error sending Pushbullet notification:", err)
	}
}

func (c *PushbulletClient) NotifyOrganizeError(title string, err error) {
	pushTitle := fmt.Sprintf("Error organizing %s", title)
	body := fmt.Sprintf("Organize failed: %v", err)
	if pushErr := c.sendPush(pushTitle, body); pushErr != nil {
		c.logger.Error("Error sending Pushbullet notification:", pushErr)
	}
}

func (c *PushbulletClient) NotifyNotEnoughSpace(title string) {
	pushTitle := fmt.Sprintf("Error organizing %s", title)
	body := "Not enough space on target disk"
	if err := c.sendPush(pushTitle, body); err != nil {
		c.logger.Error("Error sending Pushbullet notification:", err)
	}
}

// NotifySyncComplete reports the outcome of a performer or studio sync run.
func (c *PushbulletClient) NotifySyncComplete(kind string, updated, failed int) {
	pushTitle := fmt.Sprintf("Sync Complete: %s", kind)
	body := fmt.Sprintf("%d updated, %d failed", updated, failed)
	if err := c.sendPush(pushTitle, body); err != nil {
		c.logger.Error("Error sending Pushbullet notification:", err)
	}
}

// Test verifies the API key is valid by fetching user info.
func (c *PushbulletClient) Test() error {
	_, err := c.pb.Me()
	if err != nil {
		return fmt.Errorf("pushbullet authentication failed: %w", err)
	}
	return nil
}
