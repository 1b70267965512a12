package organizer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"usher/internal/clients/catalog"
	"usher/internal/utils"
)

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

var datePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)

// resolutionLabel classifies a video by the smaller of its dimensions and
// returns the resolution name and a coarser quality tier. Unknown
// dimensions yield empty labels rather than a bogus lowest tier.
func resolutionLabel(width, height int) (resolution, quality string) {
	if width <= 0 || height <= 0 {
		return "", ""
	}
	size := width
	if height < width {
		size = height
	}
	switch {
	case size >= 4320:
		return "8K", "FUHD"
	case size >= 2160:
		return "4K", "UHD"
	case size >= 1440:
		return "1440p", "QHD"
	case size >= 1080:
		// DCI 2K masters report 1080 lines but a wider frame.
		if width >= 2000 && width < 2560 {
			return "1080p", "2K"
		}
		return "1080p", "FHD"
	case size >= 720:
		return "720p", "HD"
	case size >= 480:
		return "480p", "SD"
	default:
		return "480p", "LOW"
	}
}

// templateVars builds the substitution table for one file of a scene.
// Every value has path separators flattened so a stray slash in a title
// cannot create extra directories.
func templateVars(scene *catalog.Scene, file *catalog.SceneFile) map[string]string {
	vars := map[string]string{
		"id":          scene.ID,
		"scene_title": scene.Title,
		"code":        scene.Code,
		"director":    scene.Director,
		"scene_date":  scene.Date,
	}

	if m := datePattern.FindStringSubmatch(scene.Date); m != nil {
		vars["date_year"] = m[1]
		vars["date_month"] = m[2]
		vars["date_day"] = m[3]
	} else {
		vars["date_year"] = ""
		vars["date_month"] = ""
		vars["date_day"] = ""
	}

	if scene.Studio != nil {
		vars["studio"] = scene.Studio.Name
		vars["studio_name"] = scene.Studio.Name
		vars["studio_id"] = scene.Studio.ID
	} else {
		vars["studio"] = ""
		vars["studio_name"] = ""
		vars["studio_id"] = ""
	}

	names := make([]string, 0, len(scene.Performers))
	for _, p := range scene.Performers {
		names = append(names, p.Name)
	}
	vars["performers"] = strings.Join(names, "-")
	vars["performer_count"] = strconv.Itoa(len(names))
	if len(names) > 0 {
		vars["first_performer"] = names[0]
	} else {
		vars["first_performer"] = ""
	}

	tagNames := make([]string, 0, len(scene.Tags))
	for _, t := range scene.Tags {
		tagNames = append(tagNames, t.Name)
	}
	vars["tags"] = strings.Join(tagNames, ", ")
	vars["tag_names"] = vars["tags"]

	if len(scene.Groups) > 0 {
		vars["group_name"] = scene.Groups[0].Group.Name
	} else {
		vars["group_name"] = ""
	}

	if scene.Rating100 != nil {
		vars["rating"] = strconv.Itoa(*scene.Rating100)
		vars["rating100"] = vars["rating"]
	} else {
		vars["rating"] = ""
		vars["rating100"] = ""
	}

	if len(scene.StashIDs) > 0 {
		vars["external_id"] = scene.StashIDs[0].StashID
	} else {
		vars["external_id"] = ""
	}

	base := filepath.Base(file.Path)
	ext := filepath.Ext(base)
	vars["original_name"] = base
	vars["original_basename"] = strings.TrimSuffix(base, ext)
	vars["ext"] = strings.TrimPrefix(ext, ".")

	vars["width"] = ""
	vars["height"] = ""
	if file.Width > 0 && file.Height > 0 {
		vars["width"] = strconv.Itoa(file.Width)
		vars["height"] = strconv.Itoa(file.Height)
	}
	res, quality := resolutionLabel(file.Width, file.Height)
	vars["resolution"] = res
	vars["quality"] = quality

	for k, v := range vars {
		vars[k] = utils.FlattenSeparators(v)
	}
	return vars
}

// renderTemplate substitutes {placeholder} occurrences and sanitizes each
// path segment of the result. Unknown placeholders are an error, not dropped
// silently, so a typo in the template never produces a literal "{foo}" dir.
func renderTemplate(template string, vars map[string]string) (string, error) {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	rendered := strings.NewReplacer(pairs...).Replace(template)

	if unknown := placeholderPattern.FindString(rendered); unknown != "" {
		return "", fmt.Errorf("unknown template placeholder %s", unknown)
	}
	return utils.SanitizePath(rendered), nil
}

// renderFilename renders the configured filename template for one file.
// The original extension is appended when the template does not produce
// one, and multi-part scenes get a -cdN disc suffix.
func renderFilename(template string, scene *catalog.Scene, file *catalog.SceneFile, fileIndex, fileCount int) (string, error) {
	rendered, err := renderTemplate(template, templateVars(scene, file))
	if err != nil {
		return "", err
	}
	if rendered == "" || rendered == "_" {
		return "", fmt.Errorf("template rendered an empty name for scene %s", scene.ID)
	}

	origExt := filepath.Ext(file.Path)
	ext := filepath.Ext(rendered)
	stem := strings.TrimSuffix(rendered, ext)
	if ext == "" {
		ext = origExt
	}

	if fileCount > 1 {
		stem = fmt.Sprintf("%s-cd%d", stem, fileIndex+1)
	}
	return stem + ext, nil
}
