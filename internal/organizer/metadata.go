package organizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"usher/internal/clients/catalog"
	"usher/internal/nfo"
)

// postProcess writes the scene NFO and poster next to the organized video
// file. It is idempotent so it also serves the in-place refresh path.
func (o *Organizer) postProcess(ctx context.Context, scene *catalog.Scene, file *catalog.SceneFile, videoPath string) error {
	if o.cfg().Organizer.DryRun {
		o.logger.Info("[dry-run] Would write sidecars for", videoPath)
		return nil
	}

	dir := filepath.Dir(videoPath)
	fileStem := stem(videoPath)

	if o.cfg().Organizer.WriteNFO {
		nfoPath := filepath.Join(dir, fileStem+".nfo")
		if err := nfo.Write(nfoPath, sceneMovie(scene, file)); err != nil {
			return fmt.Errorf("write scene nfo: %w", err)
		}
		o.logger.Debug("Wrote NFO", nfoPath)
	}

	if o.cfg().Organizer.DownloadPoster && scene.Paths.Screenshot != "" {
		if posterExists(dir, fileStem) {
			o.logger.Debug("Poster already present for", videoPath)
			return nil
		}
		posterPath, err := o.catalog.Download(ctx, scene.Paths.Screenshot, filepath.Join(dir, fileStem+"-poster"), true)
		if err != nil {
			return fmt.Errorf("download poster: %w", err)
		}
		o.logger.Debug("Downloaded poster", posterPath)

		if o.cfg().Organizer.OverlayStudioLogo && scene.Studio != nil {
			o.overlayStudioLogo(ctx, scene.Studio, posterPath)
		}
	}
	return nil
}

// overlayStudioLogo stamps the studio's logo onto the poster's top-right
// corner. Failures here only cost the overlay, never the poster.
func (o *Organizer) overlayStudioLogo(ctx context.Context, studio *catalog.Studio, posterPath string) {
	if studio.ImagePath == "" {
		return
	}
	// The catalog serves a generated placeholder for studios without a
	// real logo; stamping that on posters is worse than nothing.
	if strings.Contains(studio.ImagePath, "default=true") {
		o.logger.Debug("Studio", studio.Name, "has a placeholder logo, skipping overlay")
		return
	}

	data, contentType, err := o.catalog.Fetch(ctx, studio.ImagePath)
	if err != nil {
		o.logger.Warn("Could not fetch studio logo for", studio.Name, ":", err)
		return
	}
	if strings.Contains(contentType, "svg") || looksLikeSVG(data) {
		o.logger.Info("Studio logo for", studio.Name, "is SVG, overlay not supported, skipping")
		return
	}

	if err := overlayLogo(posterPath, data); err != nil {
		o.logger.Warn("Could not overlay studio logo on", posterPath, ":", err)
		return
	}
	o.logger.Debug("Overlaid", studio.Name, "logo on", posterPath)
}

func looksLikeSVG(data []byte) bool {
	n := len(data)
	if n > 256 {
		n = 256
	}
	head := strings.TrimSpace(string(data[:n]))
	return strings.HasPrefix(head, "<?xml") && strings.Contains(head, "<svg") ||
		strings.HasPrefix(head, "<svg")
}

func posterExists(dir, fileStem string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), fileStem+"-poster.") {
			return true
		}
	}
	return false
}

// sceneMovie maps a scene and one of its files to the movie NFO document.
func sceneMovie(scene *catalog.Scene, file *catalog.SceneFile) *nfo.Movie {
	m := &nfo.Movie{
		Title:     scene.Title,
		SortTitle: scene.Title,
		Premiered: scene.Date,
		Plot:      scene.Details,
		Director:  scene.Director,
		ID:        scene.ID,
		Code:      scene.Code,
	}

	if scene.Code != "" && scene.Title != "" {
		m.OriginalTitle = scene.Code + " " + scene.Title
	}
	if mdate := datePattern.FindStringSubmatch(scene.Date); mdate != nil {
		m.Year = mdate[1]
		m.ReleaseDate = scene.Date
	}
	if scene.Rating100 != nil {
		// NFO ratings are on a 0-10 scale.
		m.Rating = strconv.FormatFloat(float64(*scene.Rating100)/10, 'f', 1, 64)
	}
	if len(scene.URLs) > 0 {
		m.URL = scene.URLs[0]
	}
	if scene.Studio != nil {
		m.Studio = scene.Studio.Name
	}
	if len(scene.Groups) > 0 {
		m.Set = scene.Groups[0].Group.Name
		m.Collection = scene.Groups[0].Group.Name
	}

	for _, t := range scene.Tags {
		m.Genres = append(m.Genres, t.Name)
		m.Tags = append(m.Tags, t.Name)
	}
	for _, p := range scene.Performers {
		m.Actors = append(m.Actors, nfo.Actor{Name: p.Name})
	}

	if len(scene.StashIDs) > 0 {
		m.UniqueIDs = append(m.UniqueIDs, nfo.UniqueID{Type: "stashdb", Default: true, Value: scene.StashIDs[0].StashID})
	}
	m.UniqueIDs = append(m.UniqueIDs, nfo.UniqueID{Type: "stash", Default: len(scene.StashIDs) == 0, Value: scene.ID})

	if file != nil {
		if file.Duration > 0 {
			m.Runtime = strconv.Itoa(int(file.Duration / 60))
		}
		video := &nfo.VideoStream{
			Codec:             file.VideoCodec,
			Width:             file.Width,
			Height:            file.Height,
			DurationInSeconds: int(file.Duration),
			Bitrate:           int(file.BitRate / 1000),
			FileSize:          file.Size,
		}
		if file.Height > 0 {
			video.Aspect = strconv.FormatFloat(float64(file.Width)/float64(file.Height), 'f', 3, 64)
		}
		m.FileInfo = &nfo.FileInfo{
			StreamDetails: nfo.StreamDetails{
				Video: video,
				Audio: &nfo.AudioStream{Codec: file.AudioCodec},
			},
		}
	}
	return m
}
