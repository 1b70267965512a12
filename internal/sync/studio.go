package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"usher/internal/clients/catalog"
	"usher/internal/clients/mediaserver"
	"usher/internal/config"
	"usher/internal/utils"
)

// ErrCollectionNotFound is returned when the media server has no BoxSet for
// the studio yet. Callers retry after the server's library scan catches up.
var ErrCollectionNotFound = errors.New("collection not found on media server")

// StudioSyncer mirrors catalog studios onto media server BoxSet
// collections.
type StudioSyncer struct {
	config  *config.Store
	logger  *utils.Logger
	catalog *catalog.Client
	server  mediaserver.Client
}

func NewStudioSyncer(cfg *config.Store, logger *utils.Logger, catalogClient *catalog.Client, server mediaserver.Client) *StudioSyncer {
	return &StudioSyncer{
		config:  cfg,
		logger:  logger,
		catalog: catalogClient,
		server:  server,
	}
}

func (s *StudioSyncer) cfg() *config.Config {
	return s.config.Load()
}

// SyncByID fetches the studio and syncs its collection.
func (s *StudioSyncer) SyncByID(ctx context.Context, id string) error {
	studio, err := s.catalog.FindStudio(ctx, id)
	if err != nil {
		return fmt.Errorf("find studio %s: %w", id, err)
	}
	return s.SyncStudio(ctx, studio)
}

// SyncStudio updates the BoxSet matching the studio's name. The collection
// itself is created by the media server when it scans the library, so a
// missing one is reported as ErrCollectionNotFound rather than created
// here.
func (s *StudioSyncer) SyncStudio(ctx context.Context, studio *catalog.Studio) error {
	userID, err := s.server.UserID(ctx)
	if err != nil {
		return fmt.Errorf("resolve media server user: %w", err)
	}

	collection, err := s.server.FindCollection(ctx, userID, studio.Name)
	if err != nil {
		return fmt.Errorf("search collection %q: %w", studio.Name, err)
	}
	if collection == nil {
		return fmt.Errorf("%w: %q", ErrCollectionNotFound, studio.Name)
	}

	item, err := s.server.ItemByID(ctx, userID, collection.ID)
	if err != nil {
		return fmt.Errorf("read collection item: %w", err)
	}

	item["Overview"] = studioOverview(studio)
	providers, _ := item["ProviderIds"].(map[string]interface{})
	if providers == nil {
		providers = map[string]interface{}{}
	}
	providers["Stash"] = studio.ID
	item["ProviderIds"] = providers

	if err := s.server.UpdateItem(ctx, collection.ID, item); err != nil {
		return fmt.Errorf("update collection item: %w", err)
	}
	s.logger.Info("Updated collection", studio.Name)

	if studio.ImagePath != "" && !strings.Contains(studio.ImagePath, "default=true") {
		data, contentType, err := s.catalog.Fetch(ctx, studio.ImagePath)
		if err != nil {
			return fmt.Errorf("fetch studio image: %w", err)
		}
		if err := s.server.UploadPrimaryImage(ctx, collection.ID, data, contentType); err != nil {
			return fmt.Errorf("upload studio image: %w", err)
		}
		s.logger.Debug("Uploaded collection image for", studio.Name)
	}
	return nil
}

// Sweep syncs every studio in the catalog. Studios without a collection on
// the server yet are counted as skipped, not failed; the server has simply
// not indexed anything of theirs.
func (s *StudioSyncer) Sweep(ctx context.Context) (synced, skipped, failed int, err error) {
	perPage := s.cfg().Organizer.PerPage
	for page := 1; ; page++ {
		studios, listErr := s.catalog.FindStudios(ctx, page, perPage)
		if listErr != nil {
			return synced, skipped, failed, fmt.Errorf("list studios (page %d): %w", page, listErr)
		}
		if len(studios) == 0 {
			break
		}

		s.logger.Info("Studio sync: page", page, "with", len(studios), "studios")
		for i := range studios {
			if ctx.Err() != nil {
				return synced, skipped, failed, ctx.Err()
			}
			syncErr := s.SyncStudio(ctx, &studios[i])
			switch {
			case syncErr == nil:
				synced++
			case errors.Is(syncErr, ErrCollectionNotFound):
				s.logger.Debug("No collection for studio", studios[i].Name, ", skipping")
				skipped++
			default:
				s.logger.Error("Studio sync failed for", studios[i].Name, ":", syncErr)
				failed++
			}
		}

		if len(studios) < perPage {
			break
		}
	}

	s.logger.Info("Studio sync finished:", synced, "synced,", skipped, "skipped,", failed, "failed")
	return synced, skipped, failed, nil
}

// RefreshLibrary nudges the media server to rescan so a new studio's
// collection materializes, optionally kicking the configured scheduled
// task as well.
func (s *StudioSyncer) RefreshLibrary(ctx context.Context) error {
	if err := s.server.RefreshLibrary(ctx); err != nil {
		return err
	}
	if taskID := s.cfg().MediaServer.ScheduledTaskID; taskID != "" {
		if err := s.server.RunScheduledTask(ctx, taskID); err != nil {
			s.logger.Warn("Could not start scheduled task", taskID, ":", err)
		}
	}
	return nil
}

func studioOverview(studio *catalog.Studio) string {
	var parts []string
	if studio.Details != "" {
		parts = append(parts, studio.Details)
	}
	if len(studio.Aliases) > 0 {
		parts = append(parts, "Aliases: "+strings.Join(studio.Aliases, " / "))
	}
	if len(studio.URLs) > 0 {
		parts = append(parts, strings.Join(studio.URLs, "\n"))
	}
	return strings.Join(parts, "\n\n")
}
