package initwizard_test

import (
	"testing"

	"github.com/cloudkeel/keel/cmd/keel/internal/initwizard"
)

func TestFormBuilder_Build(t *testing.T) {
	t.Parallel()

	t.Run("creates form with default values", func(t *testing.T) {
		t.Parallel()
		builder := initwizard.NewFormBuilder()
		var result initwizard.Result
		form := builder.Build("myproject", &result)

		if form == nil {
			t.Fatal("expected form to be created")
		}
		if result.ProjectIdent != "myproject" {
			t.Errorf("expected default project ident 'myproject', got %q", result.ProjectIdent)
		}
		if result.Qualifier != "myproject" {
			t.Errorf("expected default qualifier 'myproject', got %q", result.Qualifier)
		}
		if result.Framework != "commercial" {
			t.Errorf("expected default framework 'commercial', got %q", result.Framework)
		}
		if result.PrimaryRegion != "eu-central-1" {
			t.Errorf("expected default primary region 'eu-central-1', got %q", result.PrimaryRegion)
		}
	})

	t.Run("uses provided default ident", func(t *testing.T) {
		t.Parallel()
		builder := initwizard.NewFormBuilder()
		var result initwizard.Result
		builder.Build("custom-project", &result)

		if result.ProjectIdent != "custom-project" {
			t.Errorf("expected project ident 'custom-project', got %q", result.ProjectIdent)
		}
		if result.Qualifier != "customproj" {
			t.Errorf("expected derived qualifier 'customproj', got %q", result.Qualifier)
		}
	})
}
