package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudkeel/keel/cmd/keel/internal/config"
	"github.com/cloudkeel/keel/cmd/keel/internal/manifest"
)

func TestEnsureProjectDir(t *testing.T) {
	t.Parallel()

	t.Run("creates new directory", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		targetDir := filepath.Join(tmpDir, "newproject")

		err := ensureProjectDir(targetDir)
		if err != nil {
			t.Fatalf("ensureProjectDir failed: %v", err)
		}

		info, err := os.Stat(targetDir)
		if err != nil {
			t.Fatalf("directory was not created: %v", err)
		}
		if !info.IsDir() {
			t.Fatal("expected a directory to be created")
		}
	})

	t.Run("succeeds if directory exists", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()

		if err := ensureProjectDir(tmpDir); err != nil {
			t.Fatalf("ensureProjectDir failed on existing directory: %v", err)
		}
	})

	t.Run("fails if already initialized", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, config.FileName)
		if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o644); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if err := ensureProjectDir(tmpDir); err == nil {
			t.Fatal("expected error when directory is already initialized")
		}
	})

	t.Run("fails if path is a file", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "file.txt")
		if err := os.WriteFile(filePath, []byte("content"), 0o644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		if err := ensureProjectDir(filePath); err == nil {
			t.Fatal("expected error when path is a file")
		}
	})
}

func TestDoInitDefaults(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "orders")

	err := doInit(InitOptions{
		Dir:         dir,
		UseDefaults: true,
	})
	if err != nil {
		t.Fatalf("doInit failed: %v", err)
	}

	finder := config.NewFinder(config.NewLoader())
	cfg, projectDir, err := finder.Find(dir)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if projectDir != dir {
		t.Errorf("projectDir = %q, want %q", projectDir, dir)
	}
	if cfg.Project != "orders" {
		t.Errorf("project = %q, want orders", cfg.Project)
	}
	if cfg.Framework != "commercial" {
		t.Errorf("framework = %q, want commercial", cfg.Framework)
	}

	m, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	if err != nil {
		t.Fatalf("starter manifest does not load: %v", err)
	}
	if len(m.Components) == 0 {
		t.Error("starter manifest should declare components")
	}

	data, err := os.ReadFile(filepath.Join(dir, "cdk.context.json"))
	if err != nil {
		t.Fatalf("cdk.context.json was not written: %v", err)
	}

	var context map[string]any
	if err := json.Unmarshal(data, &context); err != nil {
		t.Fatalf("cdk.context.json is not valid JSON: %v", err)
	}
	if context["orders-framework"] != "commercial" {
		t.Errorf("context framework = %v, want commercial", context["orders-framework"])
	}
	if context["orders-qualifier"] != "orders" {
		t.Errorf("context qualifier = %v, want orders", context["orders-qualifier"])
	}
	if context["orders-region-ident-eu-central-1"] != "euc1" {
		t.Errorf("context region ident = %v, want euc1 for the primary region",
			context["orders-region-ident-eu-central-1"])
	}
}

func TestDoInitRefusesReinit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := doInit(InitOptions{Dir: dir, UseDefaults: true}); err != nil {
		t.Fatalf("first init failed: %v", err)
	}

	if err := doInit(InitOptions{Dir: dir, UseDefaults: true}); err == nil {
		t.Fatal("expected error on re-init")
	}
}
