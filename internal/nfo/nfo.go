// Package nfo reads and writes Kodi/Emby compatible NFO sidecar files.
package nfo

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/net/html/charset"
)

// UniqueID is an external identifier node on a movie NFO.
type UniqueID struct {
	Type    string `xml:"type,attr"`
	Default bool   `xml:"default,attr"`
	Value   string `xml:",chardata"`
}

// Actor is a cast entry. Only the name is populated; the media server
// resolves the rest from its own person records.
type Actor struct {
	Name string `xml:"name"`
}

type VideoStream struct {
	Codec             string `xml:"codec,omitempty"`
	Width             int    `xml:"width,omitempty"`
	Height            int    `xml:"height,omitempty"`
	Aspect            string `xml:"aspect,omitempty"`
	DurationInSeconds int    `xml:"durationinseconds,omitempty"`
	Bitrate           int    `xml:"bitrate,omitempty"`
	FileSize          int64  `xml:"filesize,omitempty"`
}

type AudioStream struct {
	Codec string `xml:"codec,omitempty"`
}

type StreamDetails struct {
	Video *VideoStream `xml:"video,omitempty"`
	Audio *AudioStream `xml:"audio,omitempty"`
}

type FileInfo struct {
	StreamDetails StreamDetails `xml:"streamdetails"`
}

// Movie is the scene sidecar written next to each organized video file.
type Movie struct {
	XMLName       xml.Name   `xml:"movie"`
	Title         string     `xml:"title,omitempty"`
	OriginalTitle string     `xml:"originaltitle,omitempty"`
	SortTitle     string     `xml:"sorttitle,omitempty"`
	Year          string     `xml:"year,omitempty"`
	Premiered     string     `xml:"premiered,omitempty"`
	ReleaseDate   string     `xml:"releasedate,omitempty"`
	Runtime       string     `xml:"runtime,omitempty"`
	Plot          string     `xml:"plot,omitempty"`
	Studio        string     `xml:"studio,omitempty"`
	Director      string     `xml:"director,omitempty"`
	ID            string     `xml:"id,omitempty"`
	Code          string     `xml:"code,omitempty"`
	Rating        string     `xml:"rating,omitempty"`
	URL           string     `xml:"url,omitempty"`
	FileInfo      *FileInfo  `xml:"fileinfo,omitempty"`
	Genres        []string   `xml:"genre,omitempty"`
	Tags          []string   `xml:"tag,omitempty"`
	Set           string     `xml:"set,omitempty"`
	Collection    string     `xml:"collection,omitempty"`
	UniqueIDs     []UniqueID `xml:"uniqueid,omitempty"`
	Actors        []Actor    `xml:"actor,omitempty"`
}

// Person is the performer sidecar (actor.nfo in the performer directory).
type Person struct {
	XMLName        xml.Name `xml:"person"`
	Name           string   `xml:"name,omitempty"`
	Gender         string   `xml:"gender,omitempty"`
	Country        string   `xml:"country,omitempty"`
	Birthdate      string   `xml:"birthdate,omitempty"`
	HeightCM       string   `xml:"height_cm,omitempty"`
	Measurements   string   `xml:"measurements,omitempty"`
	Disambiguation string   `xml:"disambiguation,omitempty"`
	Ethnicity      string   `xml:"ethnicity,omitempty"`
	EyeColor       string   `xml:"eye_color,omitempty"`
	HairColor      string   `xml:"hair_color,omitempty"`
	CareerLength   string   `xml:"career_length,omitempty"`
	Tattoos        string   `xml:"tattoos,omitempty"`
	Piercings      string   `xml:"piercings,omitempty"`
	Weight         string   `xml:"weight,omitempty"`
	DeathDate      string   `xml:"death_date,omitempty"`
	Circumcised    string   `xml:"circumcised,omitempty"`
	Aliases        string   `xml:"aliases,omitempty"`
	URLs           string   `xml:"urls,omitempty"`
	StashID        string   `xml:"stash_id,omitempty"`
}

// Write marshals v with an XML declaration and writes it atomically enough
// for sidecar purposes (single WriteFile), creating parent directories.
func Write(path string, v interface{}) error {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal nfo: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create nfo directory: %w", err)
	}

	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write nfo: %w", err)
	}
	return nil
}

// Decode parses an NFO document. NFO files found in the wild are not always
// UTF-8, so the decoder resolves declared charsets instead of failing on
// them.
func Decode(r io.Reader, v interface{}) error {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

// ReadFile decodes the NFO at path into v.
func ReadFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Decode(f, v)
}
