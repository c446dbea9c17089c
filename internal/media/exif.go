// Package media runs the background image pipeline: EXIF extraction,
// orientation-corrected thumbnails and pixel dimensions for uploaded leaves.
package media

import (
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifData holds the EXIF fields the pipeline consumes.
type ExifData struct {
	Width       int
	Height      int
	Orientation int
	DateTaken   *time.Time
}

// ExtractExif reads EXIF data from an image reader. Images without EXIF
// (PNGs, stripped JPEGs) yield defaults, not an error.
func ExtractExif(r io.Reader) *ExifData {
	d := &ExifData{Orientation: 1}

	x, err := exif.Decode(r)
	if err != nil {
		return d
	}

	if orient, err := x.Get(exif.Orientation); err == nil {
		if v, err := orient.Int(0); err == nil && v >= 1 && v <= 8 {
			d.Orientation = v
		}
	}

	if dt, err := x.DateTime(); err == nil {
		d.DateTaken = &dt
	}

	if pw, err := x.Get(exif.PixelXDimension); err == nil {
		if v, err := pw.Int(0); err == nil {
			d.Width = v
		}
	}
	if ph, err := x.Get(exif.PixelYDimension); err == nil {
		if v, err := ph.Int(0); err == nil {
			d.Height = v
		}
	}

	// Orientations 5-8 transpose the axes; report dimensions as displayed.
	if d.Orientation >= 5 && d.Width > 0 {
		d.Width, d.Height = d.Height, d.Width
	}

	return d
}
