package manifest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudkeel/keel/cmd/keel/internal/manifest"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), manifest.FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("loads valid manifest", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components:
  - ident: orders
    type: queue
    overrides:
      retentionDays: 7
  - ident: ingest
    type: function
    overrides:
      entry: lambda/ingest
`)

		m, err := manifest.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m.Components) != 2 {
			t.Fatalf("expected 2 components, got %d", len(m.Components))
		}
		if m.Components[0].Type != manifest.TypeQueue {
			t.Errorf("expected queue component, got %q", m.Components[0].Type)
		}
	})

	t.Run("rejects unknown component type", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components:
  - ident: cache
    type: redis
`)

		if _, err := manifest.Load(path); err == nil {
			t.Fatal("expected error for unknown component type")
		}
	})

	t.Run("rejects invalid ident", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components:
  - ident: Orders
    type: queue
`)

		if _, err := manifest.Load(path); err == nil {
			t.Fatal("expected error for invalid ident")
		}
	})

	t.Run("rejects empty components", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components: []
`)

		if _, err := manifest.Load(path); err == nil {
			t.Fatal("expected error for empty components")
		}
	})
}

func TestCheck(t *testing.T) {
	t.Parallel()

	t.Run("defaults pass for every tier", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components:
  - ident: core
    type: network
  - ident: orders
    type: queue
  - ident: ingest
    type: function
    overrides:
      entry: lambda/ingest
  - ident: api
    type: gateway
  - ident: workers
    type: scaling
`)

		m, err := manifest.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, name := range klcdkcompliance.Names() {
			framework, err := klcdkcompliance.Parse(name)
			if err != nil {
				t.Fatalf("Parse(%q): %v", name, err)
			}
			if violations := manifest.Check(m, framework, "Prod"); len(violations) != 0 {
				t.Errorf("tier %s: unexpected violations: %v", name, violations)
			}
		}
	})

	t.Run("reports out of bounds override", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components:
  - ident: orders
    type: queue
    overrides:
      retentionDays: 99
`)

		m, err := manifest.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		violations := manifest.Check(m, klcdkcompliance.Commercial, "Prod")
		if len(violations) != 1 {
			t.Fatalf("expected 1 violation, got %v", violations)
		}
		if violations[0].Component != "orders" {
			t.Errorf("violation names %q, want orders", violations[0].Component)
		}
		if !strings.Contains(violations[0].Err.Error(), "retention") {
			t.Errorf("violation %v should mention retention", violations[0].Err)
		}
	})

	t.Run("reports missing function code", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components:
  - ident: ingest
    type: function
`)

		m, err := manifest.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if violations := manifest.Check(m, klcdkcompliance.Commercial, "Prod"); len(violations) != 1 {
			t.Fatalf("expected 1 violation, got %v", violations)
		}
	})

	t.Run("environment defaults apply per environment", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components:
  - ident: orders
    type: queue
    environmentDefaults:
      Prod:
        retentionDays: 99
`)

		m, err := manifest.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if violations := manifest.Check(m, klcdkcompliance.Commercial, "Prod"); len(violations) != 1 {
			t.Errorf("expected Prod violation, got %v", violations)
		}
		if violations := manifest.Check(m, klcdkcompliance.Commercial, "Stag"); len(violations) != 0 {
			t.Errorf("expected no Stag violations, got %v", violations)
		}
	})

	t.Run("rejects unknown override key", func(t *testing.T) {
		t.Parallel()
		path := writeManifest(t, `version: "1"
components:
  - ident: orders
    type: queue
    overrides:
      retensionDays: 7
`)

		m, err := manifest.Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		violations := manifest.Check(m, klcdkcompliance.Commercial, "Prod")
		if len(violations) != 1 {
			t.Fatalf("expected 1 violation for unknown key, got %v", violations)
		}
	})
}
