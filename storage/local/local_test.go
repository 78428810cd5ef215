package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStorage_UploadCreatesIntermediateDirs(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Upload(ctx, "2024/trip/a.jpg", strings.NewReader("data")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(s.BasePath(), "2024", "trip", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "data" {
		t.Errorf("got %q, want data", data)
	}
}

func TestStorage_DownloadRoundTrip(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Upload(ctx, "x.png", strings.NewReader("pixels")); err != nil {
		t.Fatal(err)
	}
	rc, err := s.Download(ctx, "x.png")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "pixels" {
		t.Errorf("got %q", got)
	}
}

func TestStorage_RejectsEscapingPaths(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"../evil.jpg", "a/../../evil.jpg", "/abs.jpg", "."} {
		if err := s.Upload(context.Background(), p, strings.NewReader("x")); err == nil {
			t.Errorf("Upload(%q) should fail", p)
		}
	}
}

func TestStorage_ExistsDelete(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	ok, err := s.Exists(ctx, "a.jpg")
	if err != nil || ok {
		t.Fatalf("Exists before upload = %v, %v", ok, err)
	}
	_ = s.Upload(ctx, "a.jpg", strings.NewReader("x"))
	if ok, _ := s.Exists(ctx, "a.jpg"); !ok {
		t.Error("expected file to exist")
	}
	if err := s.Delete(ctx, "a.jpg"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "a.jpg"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestStorage_ListSorted(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, p := range []string{"b/2.jpg", "a/1.jpg", "b/1.jpg"} {
		if err := s.Upload(ctx, p, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}
	files, err := s.List(ctx, "b/")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Path != "b/1.jpg" || files[1].Path != "b/2.jpg" {
		t.Errorf("files = %+v", files)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("expected 3 files, got %d", len(all))
	}
}

func TestStorage_Ping(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping on fresh root: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping should fail once the root is gone")
	}
}

func TestNewStorage_RootIsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStorage(f); err == nil {
		t.Error("expected error when the root is a regular file")
	}
}
