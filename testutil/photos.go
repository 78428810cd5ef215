package testutil

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

// PhotoOption customizes a generated fixture.
type PhotoOption func(*photoOptions)

type photoOptions struct {
	taken *time.Time
	fill  color.NRGBA
}

// WithDateTaken embeds an EXIF DateTimeOriginal tag. Only JPEG fixtures carry it.
func WithDateTaken(t time.Time) PhotoOption {
	return func(o *photoOptions) { o.taken = &t }
}

// WithFill sets the solid fill colour of the image.
func WithFill(c color.NRGBA) PhotoOption {
	return func(o *photoOptions) { o.fill = c }
}

func buildOptions(opts []PhotoOption) photoOptions {
	o := photoOptions{fill: color.NRGBA{R: 200, G: 120, B: 40, A: 255}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// JPEG encodes a width x height JPEG image.
func JPEG(t testing.TB, width, height int, opts ...PhotoOption) []byte {
	t.Helper()
	o := buildOptions(opts)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(width, height, o.fill), imaging.JPEG); err != nil {
		t.Fatalf("encode jpeg fixture: %v", err)
	}
	data := buf.Bytes()
	if o.taken != nil {
		data = insertExif(data, *o.taken)
	}
	return data
}

// PNG encodes a width x height PNG image.
func PNG(t testing.TB, width, height int, opts ...PhotoOption) []byte {
	t.Helper()
	o := buildOptions(opts)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(width, height, o.fill), imaging.PNG); err != nil {
		t.Fatalf("encode png fixture: %v", err)
	}
	return buf.Bytes()
}

// BMP encodes a width x height BMP image.
func BMP(t testing.TB, width, height int, opts ...PhotoOption) []byte {
	t.Helper()
	o := buildOptions(opts)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(width, height, o.fill), imaging.BMP); err != nil {
		t.Fatalf("encode bmp fixture: %v", err)
	}
	return buf.Bytes()
}

// WritePhoto writes data to dir/rel, creating intermediate directories,
// and returns the absolute path.
func WritePhoto(t testing.TB, dir, rel string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return p
}

// insertExif places an APP1 segment holding a big-endian TIFF block with a
// single Exif sub-IFD right after the JPEG SOI marker. The sub-IFD carries
// DateTimeOriginal only.
func insertExif(jpegData []byte, taken time.Time) []byte {
	const (
		ifd0Offset = 8
		exifOffset = ifd0Offset + 2 + 12 + 4
		dateOffset = exifOffset + 2 + 12 + 4
	)
	date := append([]byte(taken.Format("2006:01:02 15:04:05")), 0)

	var tiff bytes.Buffer
	be := binary.BigEndian
	tiff.WriteString("MM")
	_ = binary.Write(&tiff, be, uint16(42))
	_ = binary.Write(&tiff, be, uint32(ifd0Offset))

	// IFD0: ExifIFDPointer
	_ = binary.Write(&tiff, be, uint16(1))
	writeEntry(&tiff, 0x8769, 4, 1, exifOffset)
	_ = binary.Write(&tiff, be, uint32(0))

	// Exif IFD: DateTimeOriginal
	_ = binary.Write(&tiff, be, uint16(1))
	writeEntry(&tiff, 0x9003, 2, uint32(len(date)), dateOffset)
	_ = binary.Write(&tiff, be, uint32(0))
	tiff.Write(date)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	be.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := make([]byte, 0, len(jpegData)+len(seg))
	out = append(out, jpegData[:2]...)
	out = append(out, seg...)
	return append(out, jpegData[2:]...)
}

func writeEntry(buf *bytes.Buffer, tag, typ uint16, count, value uint32) {
	var e [12]byte
	binary.BigEndian.PutUint16(e[0:], tag)
	binary.BigEndian.PutUint16(e[2:], typ)
	binary.BigEndian.PutUint32(e[4:], count)
	binary.BigEndian.PutUint32(e[8:], value)
	buf.Write(e[:])
}
