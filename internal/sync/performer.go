// Package sync pushes performer and studio metadata from the catalog to the
// local export directory and to the media server.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"usher/internal/clients/catalog"
	"usher/internal/clients/mediaserver"
	"usher/internal/config"
	"usher/internal/nfo"
	"usher/internal/utils"
)

// Export and upload modes. Zero disables the direction entirely.
const (
	ModeOff          = 0
	ModeBoth         = 1
	ModeMetadataOnly = 2
	ModeImageOnly    = 3
	ModeFillMissing  = 4
)

// Hook modes select which directions a performer hook triggers.
const (
	HookOff        = 0
	HookLocalOnly  = 1
	HookServerOnly = 2
	HookBoth       = 3
)

// PerformerSyncer exports performers as <name>/actor.nfo + folder.jpg
// directories and pushes their metadata and image to the media server.
type PerformerSyncer struct {
	config  *config.Store
	logger  *utils.Logger
	catalog *catalog.Client
	server  mediaserver.Client
}

func NewPerformerSyncer(cfg *config.Store, logger *utils.Logger, catalogClient *catalog.Client, server mediaserver.Client) *PerformerSyncer {
	return &PerformerSyncer{
		config:  cfg,
		logger:  logger,
		catalog: catalogClient,
		server:  server,
	}
}

func (s *PerformerSyncer) cfg() *config.Config {
	return s.config.Load()
}

// SyncOne runs both directions for a single performer according to the
// configured modes.
func (s *PerformerSyncer) SyncOne(ctx context.Context, p *catalog.Performer) error {
	var firstErr error
	if s.cfg().PerformerSync.ExportMode != ModeOff {
		if err := s.ExportLocal(ctx, p); err != nil {
			s.logger.Error("Local export failed for performer", p.Name, ":", err)
			firstErr = err
		}
	}
	if s.cfg().PerformerSync.UploadMode != ModeOff {
		if err := s.Upload(ctx, p); err != nil {
			s.logger.Error("Server upload failed for performer", p.Name, ":", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SyncByID fetches the full performer record and syncs it.
func (s *PerformerSyncer) SyncByID(ctx context.Context, id string) error {
	p, err := s.catalog.FindPerformer(ctx, id)
	if err != nil {
		return fmt.Errorf("find performer %s: %w", id, err)
	}
	return s.SyncOne(ctx, p)
}

// performerDir is the per-performer export directory.
func (s *PerformerSyncer) performerDir(name string) string {
	return filepath.Join(s.cfg().PerformerSync.OutputDir, utils.SanitizeSegment(name))
}

// ExportLocal writes actor.nfo and folder.jpg into the performer's export
// directory per export_mode.
func (s *PerformerSyncer) ExportLocal(ctx context.Context, p *catalog.Performer) error {
	mode := s.cfg().PerformerSync.ExportMode
	if mode == ModeOff {
		return nil
	}
	if s.cfg().PerformerSync.OutputDir == "" {
		return fmt.Errorf("performer_sync.output_dir is not configured")
	}

	dir := s.performerDir(p.Name)
	nfoPath := filepath.Join(dir, "actor.nfo")
	imgPath := filepath.Join(dir, "folder.jpg")

	writeNFO := mode == ModeBoth || mode == ModeMetadataOnly
	writeImage := mode == ModeBoth || mode == ModeImageOnly
	if mode == ModeFillMissing {
		writeNFO = !fileExists(nfoPath)
		writeImage = !fileExists(imgPath)
	}

	if writeNFO {
		if err := nfo.Write(nfoPath, personNFO(p)); err != nil {
			return fmt.Errorf("write actor.nfo: %w", err)
		}
		s.logger.Debug("Wrote", nfoPath)
	}

	if writeImage && p.ImagePath != "" {
		data, _, err := s.catalog.Fetch(ctx, p.ImagePath)
		if err != nil {
			return fmt.Errorf("fetch performer image: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create performer directory: %w", err)
		}
		if err := os.WriteFile(imgPath, data, 0644); err != nil {
			return fmt.Errorf("write folder.jpg: %w", err)
		}
		s.logger.Debug("Wrote", imgPath)
	}
	return nil
}

// Upload pushes the performer to the media server per upload_mode. A
// performer the server does not know yet is skipped, not an error; the
// server only creates person records when it indexes media that casts them.
func (s *PerformerSyncer) Upload(ctx context.Context, p *catalog.Performer) error {
	mode := s.cfg().PerformerSync.UploadMode
	if mode == ModeOff {
		return nil
	}

	userID, err := s.server.UserID(ctx)
	if err != nil {
		return fmt.Errorf("resolve media server user: %w", err)
	}

	person, err := s.server.PersonByName(ctx, p.Name)
	if err != nil {
		return fmt.Errorf("find person %q: %w", p.Name, err)
	}
	if person == nil {
		s.logger.Info("Performer", p.Name, "not present on media server, skipping upload")
		return nil
	}

	uploadMetadata := mode == ModeBoth || mode == ModeMetadataOnly
	uploadImage := mode == ModeBoth || mode == ModeImageOnly
	if mode == ModeFillMissing {
		item, err := s.server.ItemByID(ctx, userID, person.ID)
		if err != nil {
			return fmt.Errorf("inspect person %q: %w", p.Name, err)
		}
		overview, _ := item["Overview"].(string)
		uploadMetadata = overview == ""
		// The search result carries image tags when a primary image exists.
		tags, _ := item["ImageTags"].(map[string]interface{})
		_, hasPrimary := tags["Primary"]
		uploadImage = !hasPrimary
	}

	if uploadMetadata {
		if err := s.uploadMetadata(ctx, userID, person.ID, p); err != nil {
			return err
		}
	}
	if uploadImage && p.ImagePath != "" {
		if err := s.uploadImage(ctx, person.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *PerformerSyncer) uploadMetadata(ctx context.Context, userID, itemID string, p *catalog.Performer) error {
	item, err := s.server.ItemByID(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("read person item: %w", err)
	}

	item["Overview"] = composeOverview(p)
	if p.Birthdate != "" {
		item["PremiereDate"] = p.Birthdate + "T00:00:00.000Z"
	}
	if p.DeathDate != "" {
		item["EndDate"] = p.DeathDate + "T00:00:00.000Z"
	}
	if p.Country != "" {
		item["ProductionLocations"] = []string{p.Country}
	}

	var tags []map[string]interface{}
	for _, pair := range attributeTags(p) {
		tags = append(tags, map[string]interface{}{"Name": pair})
	}
	if len(tags) > 0 {
		item["TagItems"] = tags
	}

	providers, _ := item["ProviderIds"].(map[string]interface{})
	if providers == nil {
		providers = map[string]interface{}{}
	}
	providers["Stash"] = p.ID
	item["ProviderIds"] = providers

	if err := s.server.UpdateItem(ctx, itemID, item); err != nil {
		return fmt.Errorf("update person item: %w", err)
	}
	s.logger.Debug("Updated media server metadata for", p.Name)
	return nil
}

func (s *PerformerSyncer) uploadImage(ctx context.Context, itemID string, p *catalog.Performer) error {
	data, contentType, err := s.catalog.Fetch(ctx, p.ImagePath)
	if err != nil {
		return fmt.Errorf("fetch performer image: %w", err)
	}
	if err := s.server.UploadPrimaryImage(ctx, itemID, data, contentType); err != nil {
		return fmt.Errorf("upload performer image: %w", err)
	}
	s.logger.Debug("Uploaded media server image for", p.Name)
	return nil
}

// Sweep synchronizes every performer in the catalog. In fill-missing modes
// the cheap id+name page is used to decide which performers need the full
// record at all.
func (s *PerformerSyncer) Sweep(ctx context.Context) (synced, failed int, err error) {
	exportMode := s.cfg().PerformerSync.ExportMode
	uploadMode := s.cfg().PerformerSync.UploadMode
	if exportMode == ModeOff && uploadMode == ModeOff {
		return 0, 0, nil
	}

	perPage := s.cfg().Organizer.PerPage
	for page := 1; ; page++ {
		performers, listErr := s.catalog.FindPerformers(ctx, page, perPage, false)
		if listErr != nil {
			return synced, failed, fmt.Errorf("list performers (page %d): %w", page, listErr)
		}
		if len(performers) == 0 {
			break
		}

		s.logger.Info("Performer sync: page", page, "with", len(performers), "performers")
		for i := range performers {
			if ctx.Err() != nil {
				return synced, failed, ctx.Err()
			}
			p := &performers[i]
			if s.skippable(ctx, p) {
				continue
			}
			if syncErr := s.SyncByID(ctx, p.ID); syncErr != nil {
				failed++
				continue
			}
			synced++
		}

		if len(performers) < perPage {
			break
		}
	}

	s.logger.Info("Performer sync finished:", synced, "synced,", failed, "failed")
	return synced, failed, nil
}

// skippable reports whether a fill-missing sweep can prove from the cheap
// record alone that this performer needs no work.
func (s *PerformerSyncer) skippable(ctx context.Context, p *catalog.Performer) bool {
	exportMode := s.cfg().PerformerSync.ExportMode
	uploadMode := s.cfg().PerformerSync.UploadMode

	exportDone := exportMode == ModeOff
	if exportMode == ModeFillMissing {
		dir := s.performerDir(p.Name)
		exportDone = fileExists(filepath.Join(dir, "actor.nfo")) && fileExists(filepath.Join(dir, "folder.jpg"))
	}

	uploadDone := uploadMode == ModeOff
	if uploadMode == ModeFillMissing && !uploadDone {
		person, err := s.server.PersonByName(ctx, p.Name)
		if err == nil && person == nil {
			// Unknown to the server, an upload would be skipped anyway.
			uploadDone = true
		}
	}

	return exportDone && uploadDone
}

func personNFO(p *catalog.Performer) *nfo.Person {
	out := &nfo.Person{
		Name:           p.Name,
		Gender:         p.Gender,
		Country:        p.Country,
		Birthdate:      p.Birthdate,
		Measurements:   p.Measurements,
		Disambiguation: p.Disambiguation,
		Ethnicity:      p.Ethnicity,
		EyeColor:       p.EyeColor,
		HairColor:      p.HairColor,
		CareerLength:   p.CareerLength,
		Tattoos:        p.Tattoos,
		Piercings:      p.Piercings,
		DeathDate:      p.DeathDate,
		Circumcised:    p.Circumcised,
		Aliases:        strings.Join(p.AliasList, " / "),
		URLs:           strings.Join(p.URLs, "\n"),
		StashID:        p.ID,
	}
	if p.HeightCM != nil {
		out.HeightCM = strconv.Itoa(*p.HeightCM)
	}
	if p.Weight != nil {
		out.Weight = strconv.Itoa(*p.Weight)
	}
	return out
}

// composeOverview renders the performer's attributes as labeled lines
// followed by the free-form details text.
func composeOverview(p *catalog.Performer) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	line("Disambiguation", p.Disambiguation)
	line("Gender", p.Gender)
	line("Country", p.Country)
	line("Ethnicity", p.Ethnicity)
	line("Birthdate", p.Birthdate)
	line("Death date", p.DeathDate)
	line("Career length", p.CareerLength)
	if p.HeightCM != nil {
		line("Height", fmt.Sprintf("%d cm", *p.HeightCM))
	}
	if p.Weight != nil {
		line("Weight", fmt.Sprintf("%d kg", *p.Weight))
	}
	line("Measurements", p.Measurements)
	line("Eye color", p.EyeColor)
	line("Hair color", p.HairColor)
	line("Tattoos", p.Tattoos)
	line("Piercings", p.Piercings)
	line("Aliases", strings.Join(p.AliasList, " / "))

	if p.Details != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Details)
	}
	return b.String()
}

// attributeTags renders searchable key:value tags for the person record.
func attributeTags(p *catalog.Performer) []string {
	var tags []string
	add := func(key, value string) {
		if value != "" {
			tags = append(tags, key+":"+strings.ToLower(value))
		}
	}
	add("gender", p.Gender)
	add("country", p.Country)
	add("ethnicity", p.Ethnicity)
	add("eye_color", p.EyeColor)
	add("hair_color", p.HairColor)
	for _, t := range p.Tags {
		add("tag", t.Name)
	}
	return tags
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
