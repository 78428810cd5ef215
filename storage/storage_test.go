package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/photoflow/component"
	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/storage"
	_ "github.com/kbukum/photoflow/storage/local"
	_ "github.com/kbukum/photoflow/storage/memory"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var c storage.Config
	c.ApplyDefaults()
	if c.Provider != storage.ProviderLocal {
		t.Errorf("Provider = %q", c.Provider)
	}

	s3 := storage.Config{Provider: storage.ProviderS3}
	s3.ApplyDefaults()
	if s3.Region != storage.DefaultRegion {
		t.Errorf("Region = %q", s3.Region)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{"local ok", storage.Config{Provider: "local", BasePath: "/out"}, ""},
		{"local missing path", storage.Config{Provider: "local"}, "base_path"},
		{"s3 ok", storage.Config{Provider: "s3", Bucket: "b", Region: "eu-west-1"}, ""},
		{"s3 missing bucket", storage.Config{Provider: "s3", Region: "eu-west-1"}, "bucket"},
		{"memory", storage.Config{Provider: "memory"}, ""},
		{"unknown", storage.Config{Provider: "ftp"}, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Describe(t *testing.T) {
	c := storage.Config{Provider: "s3", Bucket: "photos", Prefix: "2024"}
	if got := c.Describe(); got != "s3://photos/2024" {
		t.Errorf("Describe = %q", got)
	}
	l := storage.Config{Provider: "local", BasePath: "/out"}
	if got := l.Describe(); got != "/out" {
		t.Errorf("Describe = %q", got)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := storage.NewComponent(storage.Config{Provider: "local", BasePath: t.TempDir()}, logger.NewNop())

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %+v", h)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Storage() == nil {
		t.Fatal("Storage() is nil after start")
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %+v", h)
	}
	if d := c.Describe(); !strings.Contains(d.Details, "provider=local") {
		t.Errorf("Describe = %+v", d)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestComponent_StartInvalidConfig(t *testing.T) {
	c := storage.NewComponent(storage.Config{Provider: "local"}, logger.NewNop())
	if err := c.Start(context.Background()); err == nil {
		t.Error("expected start to fail without a base path")
	}
}
