package media

import (
	"bytes"
	"image"
	"testing"
	"time"

	"github.com/kbukum/photoflow/testutil"
)

func TestIsNative(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a/b.jpg", true},
		{"a/b.JPEG", true},
		{"b.png", true},
		{"b.tif", true},
		{"b.HEIC", true},
		{"b.heif", true},
		{"b.bmp", false},
		{"b.webp", false},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsNative(tt.path); got != tt.want {
			t.Errorf("IsNative(%q) = %v", tt.path, got)
		}
	}
}

func TestDimensions(t *testing.T) {
	w, h, err := Dimensions(testutil.PNG(t, 40, 30))
	if err != nil || w != 40 || h != 30 {
		t.Errorf("Dimensions = %d, %d, %v", w, h, err)
	}
	if _, _, err := Dimensions([]byte("not an image")); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestDecode(t *testing.T) {
	img, err := Decode(testutil.JPEG(t, 16, 8))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("bounds = %v", b)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name        string
		w, h, bound int
		wantW       int
		wantH       int
		wantResized bool
	}{
		{"within", 100, 50, 100, 100, 50, false},
		{"landscape", 400, 200, 100, 100, 50, true},
		{"portrait", 300, 600, 120, 60, 120, true},
		{"small", 10, 10, 100, 10, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewNRGBA(image.Rect(0, 0, tt.w, tt.h))
			out, resized := Fit(img, tt.bound)
			if resized != tt.wantResized {
				t.Errorf("resized = %v", resized)
			}
			if b := out.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("bounds = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
			if !resized && out != image.Image(img) {
				t.Error("image within bound must be returned unchanged")
			}
		})
	}
}

func TestEncode(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 5, 3))
	for _, p := range []string{"a.jpg", "a.png", "a.tiff", "a.bmp"} {
		var buf bytes.Buffer
		if err := Encode(&buf, img, p); err != nil {
			t.Errorf("%s: %v", p, err)
			continue
		}
		w, h, err := Dimensions(buf.Bytes())
		if err != nil || w != 5 || h != 3 {
			t.Errorf("%s round trip = %dx%d, %v", p, w, h, err)
		}
	}
	if !NeedsExternalDecoder("IMG.HEIC") || NeedsExternalDecoder("a.jpg") {
		t.Error("only heic/heif need an external decoder")
	}
	if CanEncode("a.heic") {
		t.Error("heic has no encoder")
	}
	if err := Encode(&bytes.Buffer{}, img, "a.heic"); err == nil {
		t.Error("expected error for heic")
	}
}

func TestDateTaken(t *testing.T) {
	when := time.Date(2023, 7, 14, 9, 30, 0, 0, time.UTC)
	got, err := DateTaken(testutil.JPEG(t, 8, 8, testutil.WithDateTaken(when)))
	if err != nil {
		t.Fatal(err)
	}
	if got.Format(time.DateTime) != when.Format(time.DateTime) {
		t.Errorf("DateTaken = %v, want %v", got, when)
	}
	if _, err := DateTaken(testutil.PNG(t, 8, 8)); err == nil {
		t.Error("expected error without exif")
	}
}
