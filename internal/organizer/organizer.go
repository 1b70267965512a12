package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"usher/internal/clients/catalog"
	"usher/internal/clients/notifications"
	"usher/internal/config"
	"usher/internal/database/models"
	"usher/internal/utils"

	"github.com/shirou/gopsutil/disk"
)

// ErrNotEnoughSpace is returned when the target filesystem cannot hold the
// file plus the configured reserve.
var ErrNotEnoughSpace = errors.New("not enough free space on target")

// Organizer moves a scene's files to their templated destination and
// maintains the sidecar metadata next to them. The physical move is done by
// the catalog server through the moveFiles mutation so its database stays
// consistent; the organizer only handles sidecars and empty-directory
// cleanup itself.
type Organizer struct {
	config    *config.Store
	logger    *utils.Logger
	catalog   *catalog.Client
	moves     *models.MoveRepository
	notifiers []notifications.Notifier
}

func New(cfg *config.Store, logger *utils.Logger, catalogClient *catalog.Client, moves *models.MoveRepository, notifiers []notifications.Notifier) *Organizer {
	return &Organizer{
		config:    cfg,
		logger:    logger,
		catalog:   catalogClient,
		moves:     moves,
		notifiers: notifiers,
	}
}

func (o *Organizer) cfg() *config.Config {
	return o.config.Load()
}

// mapping returns the parsed source->target mapping, if configured.
func (o *Organizer) mapping() (src, dst string, ok bool) {
	m := o.cfg().Organizer.SourceTargetMapping
	if m == "" {
		return "", "", false
	}
	src, dst, ok = strings.Cut(m, "->")
	if !ok {
		return "", "", false
	}
	return filepath.Clean(strings.TrimSpace(src)), filepath.Clean(strings.TrimSpace(dst)), true
}

// ProcessScene brings all of a scene's files to their templated locations.
// Per-file failures are logged and do not stop the remaining files.
func (o *Organizer) ProcessScene(ctx context.Context, scene *catalog.Scene) error {
	if o.cfg().Organizer.MoveOnlyOrganized && !scene.Organized {
		o.logger.Debug("Skipping scene", scene.ID, "- not marked organized")
		return nil
	}
	if len(scene.Files) == 0 {
		o.logger.Debug("Scene", scene.ID, "has no files, nothing to do")
		return nil
	}

	files := scene.Files
	suffixCount := len(files)
	switch o.cfg().Organizer.MultiFileMode {
	case "skip":
		if len(files) > 1 {
			o.logger.Info("Skipping multi-file scene", scene.ID, "per multi_file_mode")
			return nil
		}
	case "primary_only":
		files = files[:1]
		suffixCount = 1
	}

	var firstErr error
	for i := range files {
		if err := o.processFile(ctx, scene, &files[i], i, suffixCount); err != nil {
			o.logger.Error("Failed to organize file", files[i].Path, "for scene", scene.ID, ":", err)
			o.notifyError(scene, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (o *Organizer) processFile(ctx context.Context, scene *catalog.Scene, file *catalog.SceneFile, fileIndex, fileCount int) error {
	rendered, err := renderFilename(o.cfg().Organizer.FilenameTemplate, scene, file, fileIndex, fileCount)
	if err != nil {
		return err
	}

	relDir := filepath.Dir(rendered)
	if relDir == "." {
		relDir = ""
	}
	baseName := filepath.Base(rendered)

	destDir, err := o.destinationDir(file.Path, relDir)
	if err != nil {
		return err
	}
	destPath := filepath.Join(destDir, baseName)

	if destPath == file.Path {
		// Already where it belongs, refresh the sidecars in place.
		return o.postProcess(ctx, scene, file, destPath)
	}

	if o.cfg().Organizer.DryRun {
		o.logger.Info("[dry-run] Would move", file.Path, "->", destPath)
		o.recordMove(scene.ID, file.ID, file.Path, destPath, true)
		return nil
	}

	if err := o.checkFreeSpace(destDir, file.Size); err != nil {
		o.notifyNoSpace(scene)
		return err
	}

	o.logger.Info("Moving", file.Path, "->", destPath)
	if err := o.catalog.MoveFiles(ctx, file.ID, destDir, baseName); err != nil {
		return fmt.Errorf("move file %s: %w", file.ID, err)
	}

	oldDir := filepath.Dir(file.Path)
	oldStem := stem(file.Path)
	newStem := stem(destPath)

	o.relocateSubtitles(oldDir, oldStem, destDir, newStem)
	o.removeStaleMetadata(oldDir, oldStem)
	o.cleanupSource(oldDir)

	o.recordMove(scene.ID, file.ID, file.Path, destPath, false)

	if err := o.postProcess(ctx, scene, file, destPath); err != nil {
		return err
	}

	o.notifyOrganized(scene, destPath)
	return nil
}

// destinationDir resolves the directory a file should live in. With a
// source->target mapping the first-level subdirectory under the known base
// is preserved on the target side; without one everything lands under
// target_root.
func (o *Organizer) destinationDir(filePath, relDir string) (string, error) {
	if src, dst, ok := o.mapping(); ok {
		base := ""
		switch {
		case under(filePath, src):
			base = src
		case under(filePath, dst):
			base = dst
		}
		if base != "" {
			first := firstSegment(filePath, base)
			return filepath.Join(dst, first, relDir), nil
		}
		o.logger.Warn("File", filePath, "is outside the configured mapping, falling back to target_root")
	}

	root := o.cfg().Organizer.TargetRoot
	if root == "" {
		return "", fmt.Errorf("no destination for %s: target_root is not configured", filePath)
	}
	return filepath.Join(root, relDir), nil
}

// checkFreeSpace verifies the target filesystem can hold size bytes plus the
// configured reserve. A zero reserve disables the check entirely.
func (o *Organizer) checkFreeSpace(destDir string, size int64) error {
	if o.cfg().Organizer.MinFreeSpace == 0 {
		return nil
	}

	probe := nearestExistingDir(destDir)
	usage, err := disk.Usage(probe)
	if err != nil {
		o.logger.Warn("Could not determine free space for", probe, ":", err)
		return nil
	}
	needed := uint64(size) + o.cfg().Organizer.MinFreeSpace
	if usage.Free < needed {
		return fmt.Errorf("%w: %d bytes free, %d needed", ErrNotEnoughSpace, usage.Free, needed)
	}
	return nil
}

// Sweep walks every scene the path filter selects and processes it. It
// returns the number of scenes visited.
func (o *Organizer) Sweep(ctx context.Context) (int, error) {
	var filter *catalog.SceneFilter
	if src, _, ok := o.mapping(); ok {
		filter = catalog.PathUnder(src)
	} else if root := o.cfg().Organizer.TargetRoot; root != "" {
		filter = catalog.PathNotUnder(root)
	} else {
		return 0, fmt.Errorf("organize sweep needs a source_target_mapping or target_root")
	}

	// Collect every page first. Processing moves files, which shrinks the
	// filter's result set and would shift later pages under our feet.
	perPage := o.cfg().Organizer.PerPage
	var all []catalog.Scene
	for page := 1; ; page++ {
		scenes, err := o.catalog.FindScenes(ctx, filter, page, perPage)
		if err != nil {
			return 0, fmt.Errorf("list scenes (page %d): %w", page, err)
		}
		if len(scenes) == 0 {
			break
		}
		o.logger.Info("Organize sweep: page", page, "with", len(scenes), "scenes")
		all = append(all, scenes...)
		if len(scenes) < perPage {
			break
		}
	}

	processed := 0
	for i := range all {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := o.ProcessScene(ctx, &all[i]); err != nil {
			o.logger.Error("Sweep: scene", all[i].ID, "failed:", err)
		}
		processed++
	}

	o.logger.Info("Organize sweep finished,", processed, "scenes visited")
	return processed, nil
}

func (o *Organizer) recordMove(sceneID, fileID, src, dst string, dryRun bool) {
	if o.moves == nil {
		return
	}
	if err := o.moves.Record(sceneID, fileID, src, dst, dryRun); err != nil {
		o.logger.Warn("Could not record move history:", err)
	}
}

func (o *Organizer) notifyOrganized(scene *catalog.Scene, destination string) {
	title := scene.Title
	if title == "" {
		title = filepath.Base(destination)
	}
	for _, n := range o.notifiers {
		go n.NotifySceneOrganized(title, destination)
	}
}

func (o *Organizer) notifyError(scene *catalog.Scene, err error) {
	title := scene.Title
	if title == "" {
		title = scene.ID
	}
	if errors.Is(err, ErrNotEnoughSpace) {
		return // already reported via notifyNoSpace
	}
	for _, n := range o.notifiers {
		go n.NotifyOrganizeError(title, err)
	}
}

func (o *Organizer) notifyNoSpace(scene *catalog.Scene) {
	title := scene.Title
	if title == "" {
		title = scene.ID
	}
	for _, n := range o.notifiers {
		go n.NotifyNotEnoughSpace(title)
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// under reports whether path is strictly inside base.
func under(path, base string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// firstSegment returns the first-level subdirectory of path relative to
// base, or "" when path sits directly in base.
func firstSegment(path, base string) string {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(path))
	if err != nil {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func nearestExistingDir(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
