package organizer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"

	"golang.org/x/image/draw"
)

const (
	overlayMaxHeightRatio = 0.15
	overlayMaxWidthRatio  = 0.50
	overlayPaddingRatio   = 0.02
)

// overlayLogo stamps the logo onto the poster's top-right corner. The logo
// is scaled down to at most 15% of the poster height and 50% of its width,
// with a 2% margin, and the result is written back in the poster's format.
func overlayLogo(posterPath string, logoData []byte) error {
	posterFile, err := os.Open(posterPath)
	if err != nil {
		return fmt.Errorf("open poster: %w", err)
	}
	poster, format, err := image.Decode(posterFile)
	posterFile.Close()
	if err != nil {
		return fmt.Errorf("decode poster: %w", err)
	}

	logo, _, err := image.Decode(bytes.NewReader(logoData))
	if err != nil {
		return fmt.Errorf("decode logo: %w", err)
	}

	pb := poster.Bounds()
	lb := logo.Bounds()
	if lb.Dx() == 0 || lb.Dy() == 0 {
		return fmt.Errorf("logo has zero dimensions")
	}

	scale := 1.0
	if maxH := float64(pb.Dy()) * overlayMaxHeightRatio; float64(lb.Dy()) > maxH {
		scale = maxH / float64(lb.Dy())
	}
	if maxW := float64(pb.Dx()) * overlayMaxWidthRatio; float64(lb.Dx())*scale > maxW {
		scale = maxW / float64(lb.Dx())
	}

	w := int(float64(lb.Dx()) * scale)
	h := int(float64(lb.Dy()) * scale)
	if w < 1 || h < 1 {
		return fmt.Errorf("poster too small for logo overlay")
	}

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), logo, lb, draw.Over, nil)

	padding := int(float64(pb.Dy()) * overlayPaddingRatio)
	pos := image.Pt(pb.Max.X-w-padding, pb.Min.Y+padding)

	out := image.NewRGBA(pb)
	draw.Draw(out, pb, poster, pb.Min, draw.Src)
	draw.Draw(out, image.Rectangle{Min: pos, Max: pos.Add(image.Pt(w, h))}, scaled, image.Point{}, draw.Over)

	return writeImage(posterPath, out, format)
}

func writeImage(path string, img image.Image, format string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	switch {
	case format == "png" || strings.EqualFold(filepath.Ext(path), ".png"):
		err = png.Encode(f, img)
	default:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
