// Package media is the boundary to image codecs: format recognition,
// decoding, long-edge fitting, encoding and EXIF reads.
package media

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// DefaultMaxLongEdge is the default output bound in pixels.
const DefaultMaxLongEdge = 3840

// DefaultJPEGQuality is used when re-encoding JPEG output.
const DefaultJPEGQuality = 92

// Native lists the extensions the source recognizes without help.
var Native = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".heic", ".heif"}

// Ext returns the lower-cased extension of p, including the dot.
func Ext(p string) string { return strings.ToLower(path.Ext(p)) }

// IsNative reports whether p has a natively recognized extension.
func IsNative(p string) bool { return slices.Contains(Native, Ext(p)) }

// external lists recognized extensions no bundled codec can decode.
var external = []string{".heic", ".heif"}

// NeedsExternalDecoder reports whether p is recognized but can only be
// decoded by a codec outside this binary.
func NeedsExternalDecoder(p string) bool { return slices.Contains(external, Ext(p)) }

// Decode decodes data, applying the EXIF orientation so width and height
// match how the photo is displayed.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// Dimensions reads the displayed width and height without decoding pixels.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	w, h := cfg.Width, cfg.Height
	if o := orientation(data); o >= 5 && o <= 8 {
		w, h = h, w
	}
	return w, h, nil
}

// orientation returns the EXIF orientation tag, or 0 when absent.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

// Within reports whether a w×h image already fits maxLongEdge.
func Within(w, h, maxLongEdge int) bool {
	return max(w, h) <= maxLongEdge
}

// Fit scales img down so its longer side is at most maxLongEdge,
// preserving the aspect ratio. Images already within the bound are
// returned unchanged and resized is false.
func Fit(img image.Image, maxLongEdge int) (out image.Image, resized bool) {
	b := img.Bounds()
	if Within(b.Dx(), b.Dy(), maxLongEdge) {
		return img, false
	}
	return imaging.Fit(img, maxLongEdge, maxLongEdge, imaging.Lanczos), true
}

// CanEncode reports whether Encode supports the extension of p.
func CanEncode(p string) bool {
	_, err := imaging.FormatFromExtension(Ext(p))
	return err == nil
}

// Encode writes img to w in the format implied by the extension of p.
func Encode(w io.Writer, img image.Image, p string) error {
	format, err := imaging.FormatFromExtension(Ext(p))
	if err != nil {
		return fmt.Errorf("no encoder for %s: %w", Ext(p), err)
	}
	return imaging.Encode(w, img, format, imaging.JPEGQuality(DefaultJPEGQuality))
}

// DateTaken returns the EXIF capture time (DateTimeOriginal, falling back
// to DateTime).
func DateTaken(data []byte) (time.Time, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return time.Time{}, fmt.Errorf("read exif: %w", err)
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exif date: %w", err)
	}
	return t, nil
}
