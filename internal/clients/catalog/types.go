package catalog

// Fingerprint is a file hash entry reported by the catalog scanner.
type Fingerprint struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SceneFile is one physical file attached to a scene.
type SceneFile struct {
	ID           string        `json:"id"`
	Path         string        `json:"path"`
	Size         int64         `json:"size"`
	Duration     float64       `json:"duration"`
	VideoCodec   string        `json:"video_codec"`
	AudioCodec   string        `json:"audio_codec"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	FrameRate    float64       `json:"frame_rate"`
	BitRate      int64         `json:"bit_rate"`
	Fingerprints []Fingerprint `json:"fingerprints"`
}

// ScenePaths holds the generated asset URLs the catalog serves for a scene.
type ScenePaths struct {
	Screenshot string `json:"screenshot"`
	Preview    string `json:"preview"`
	Stream     string `json:"stream"`
	Webp       string `json:"webp"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Studio struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Details   string    `json:"details"`
	ImagePath string    `json:"image_path"`
	Rating100 *int      `json:"rating100"`
	Aliases   []string  `json:"aliases"`
	URLs      []string  `json:"urls"`
	StashIDs  []StashID `json:"stash_ids"`
}

type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SceneGroup is the scene↔group join entry.
type SceneGroup struct {
	Group      Group `json:"group"`
	SceneIndex *int  `json:"scene_index"`
}

type StashID struct {
	Endpoint string `json:"endpoint"`
	StashID  string `json:"stash_id"`
}

// Performer carries the performer fragment used by both the local exporter
// and the media-server uploader.
type Performer struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Disambiguation string   `json:"disambiguation"`
	URLs           []string `json:"urls"`
	Gender         string   `json:"gender"`
	Birthdate      string   `json:"birthdate"`
	Ethnicity      string   `json:"ethnicity"`
	Country        string   `json:"country"`
	EyeColor       string   `json:"eye_color"`
	HeightCM       *int     `json:"height_cm"`
	Measurements   string   `json:"measurements"`
	FakeTits       string   `json:"fake_tits"`
	PenisLength    *float64 `json:"penis_length"`
	Circumcised    string   `json:"circumcised"`
	CareerLength   string   `json:"career_length"`
	Tattoos        string   `json:"tattoos"`
	Piercings      string   `json:"piercings"`
	AliasList      []string `json:"alias_list"`
	Details        string   `json:"details"`
	DeathDate      string   `json:"death_date"`
	HairColor      string   `json:"hair_color"`
	Weight         *int     `json:"weight"`
	ImagePath      string   `json:"image_path"`
	Tags           []Tag    `json:"tags"`
}

type Scene struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Code       string       `json:"code"`
	Details    string       `json:"details"`
	Director   string       `json:"director"`
	URLs       []string     `json:"urls"`
	Date       string       `json:"date"`
	Rating100  *int         `json:"rating100"`
	Organized  bool         `json:"organized"`
	Files      []SceneFile  `json:"files"`
	Paths      ScenePaths   `json:"paths"`
	Studio     *Studio      `json:"studio"`
	Groups     []SceneGroup `json:"groups"`
	Tags       []Tag        `json:"tags"`
	Performers []Performer  `json:"performers"`
	StashIDs   []StashID    `json:"stash_ids"`
}

// StringCriterion mirrors the catalog's string filter input.
type StringCriterion struct {
	Value    string `json:"value"`
	Modifier string `json:"modifier"`
}

// SceneFilter is the subset of the catalog's scene filter input we use.
type SceneFilter struct {
	Path *StringCriterion `json:"path,omitempty"`
}
