package organizer

import (
	"os"
	"path/filepath"
	"strings"
)

var subtitleExts = map[string]bool{
	".srt": true,
	".ass": true,
	".ssa": true,
	".vtt": true,
	".sub": true,
	".sup": true,
}

// relocateSubtitles moves subtitle files that share the video's stem from
// oldDir to destDir, renaming them to the new stem. Language suffixes like
// ".en" in "movie.en.srt" are carried over. Existing files at the
// destination are never overwritten.
func (o *Organizer) relocateSubtitles(oldDir, oldStem, destDir, newStem string) {
	entries, err := os.ReadDir(oldDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !subtitleExts[ext] {
			continue
		}
		if !strings.HasPrefix(name, oldStem) {
			continue
		}

		// Everything between the stem and the extension is the language
		// suffix (".en", ".forced", ...).
		suffix := strings.TrimSuffix(name[len(oldStem):], filepath.Ext(name))
		newName := newStem + suffix + filepath.Ext(name)
		newPath := filepath.Join(destDir, newName)

		if _, err := os.Stat(newPath); err == nil {
			o.logger.Warn("Subtitle already exists at destination, leaving source in place:", newPath)
			continue
		}

		oldPath := filepath.Join(oldDir, name)
		if err := os.MkdirAll(destDir, 0755); err != nil {
			o.logger.Warn("Could not create destination for subtitle", oldPath, ":", err)
			continue
		}
		if err := os.Rename(oldPath, newPath); err != nil {
			o.logger.Warn("Could not relocate subtitle", oldPath, ":", err)
			continue
		}
		o.logger.Info("Relocated subtitle", oldPath, "->", newPath)
	}
}

// removeStaleMetadata deletes the NFO and poster files left behind at the
// old location after a move. They are regenerated at the new one.
func (o *Organizer) removeStaleMetadata(oldDir, oldStem string) {
	entries, err := os.ReadDir(oldDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stale := name == oldStem+".nfo" ||
			strings.HasPrefix(name, oldStem+"-poster.")
		if !stale {
			continue
		}
		path := filepath.Join(oldDir, name)
		if err := os.Remove(path); err != nil {
			o.logger.Warn("Could not remove stale sidecar", path, ":", err)
		} else {
			o.logger.Debug("Removed stale sidecar", path)
		}
	}
}

// cleanupSource removes now-empty directories left behind by a move,
// walking upward but never past the mapping source (or target_root when no
// mapping is configured). Directories outside both are left alone.
func (o *Organizer) cleanupSource(dir string) {
	var boundary string
	if src, _, ok := o.mapping(); ok && under(dir, src) {
		boundary = src
	} else if root := o.cfg().Organizer.TargetRoot; root != "" && under(dir, filepath.Clean(root)) {
		boundary = filepath.Clean(root)
	} else {
		return
	}

	for dir != boundary && under(dir, boundary) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			o.logger.Warn("Could not remove empty directory", dir, ":", err)
			return
		}
		o.logger.Info("Removed empty directory", dir)
		dir = filepath.Dir(dir)
	}
}
