package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/raster2vec/internal/config"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raster2vec", "config.json")

	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Tiling.Size != config.Default().Tiling.Size {
		t.Errorf("tile size: got %d", cfg.Tiling.Size)
	}

	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected error for an existing file")
	}

	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Fatalf("forced overwrite failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) <= 2 {
		t.Errorf("file not overwritten: %s", data)
	}
}
