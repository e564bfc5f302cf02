package klcdkscaling_test

import (
	"strings"
	"testing"

	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdk/klcdkscaling"
)

func ptr[T any](v T) *T { return &v }

func TestCommercialDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := klcdkscaling.ResolveConfig(klcdkcompliance.Commercial, klcdkscaling.Props{Ident: "workers"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *cfg.InstanceType != "t3.small" {
		t.Errorf("InstanceType = %v, want t3.small", *cfg.InstanceType)
	}
	if *cfg.MinCapacity != 1 || *cfg.MaxCapacity != 2 {
		t.Errorf("capacity = %v-%v, want 1-2", *cfg.MinCapacity, *cfg.MaxCapacity)
	}
	if *cfg.RequireImdsv2 {
		t.Error("commercial tier should not default IMDSv2 on")
	}
}

func TestModerateDefaultsHardened(t *testing.T) {
	t.Parallel()

	cfg, err := klcdkscaling.ResolveConfig(klcdkcompliance.ModerateAssurance, klcdkscaling.Props{Ident: "workers"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !*cfg.RequireImdsv2 {
		t.Error("moderate tier must default IMDSv2 on")
	}
	if !*cfg.DetailedMonitoring {
		t.Error("moderate tier must default detailed monitoring on")
	}
	if !*cfg.EncryptRootVolume {
		t.Error("moderate tier must default root volume encryption on")
	}
}

func TestHighAssurancePolicyBeatsUserOverride(t *testing.T) {
	t.Parallel()

	cfg, err := klcdkscaling.ResolveConfig(klcdkcompliance.HighAssurance, klcdkscaling.Props{
		Ident: "workers",
		Overrides: klcdkscaling.Config{
			RequireImdsv2:     ptr(false),
			EncryptRootVolume: ptr(false),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !*cfg.RequireImdsv2 {
		t.Error("user override must not disable IMDSv2 at high assurance")
	}
	if !*cfg.EncryptRootVolume {
		t.Error("user override must not disable root volume encryption at high assurance")
	}
}

func TestUserCanRaiseCapacityAboveHighMinimum(t *testing.T) {
	t.Parallel()

	cfg, err := klcdkscaling.ResolveConfig(klcdkcompliance.HighAssurance, klcdkscaling.Props{
		Ident: "workers",
		Overrides: klcdkscaling.Config{
			MinCapacity: ptr(5.0),
			MaxCapacity: ptr(10.0),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if *cfg.MinCapacity != 5 || *cfg.MaxCapacity != 10 {
		t.Errorf("capacity = %v-%v, want user override 5-10", *cfg.MinCapacity, *cfg.MaxCapacity)
	}
	if err := klcdkscaling.Validate(cfg, klcdkcompliance.HighAssurance); err != nil {
		t.Errorf("raised capacity must still validate: %v", err)
	}
}

func TestHighAssuranceRejectsSingleInstance(t *testing.T) {
	t.Parallel()

	cfg, err := klcdkscaling.ResolveConfig(klcdkcompliance.HighAssurance, klcdkscaling.Props{
		Ident:     "workers",
		Overrides: klcdkscaling.Config{MinCapacity: ptr(1.0)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = klcdkscaling.Validate(cfg, klcdkcompliance.HighAssurance)
	if err == nil || !strings.Contains(err.Error(), "scaling-min-capacity") {
		t.Errorf("expected minimum capacity violation, got %v", err)
	}
}

func TestValidateBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *klcdkscaling.Config)
		wantErr string
	}{
		{
			name:    "malformed instance type",
			mutate:  func(cfg *klcdkscaling.Config) { cfg.InstanceType = ptr("t3small") },
			wantErr: "instance type",
		},
		{
			name:    "negative minimum",
			mutate:  func(cfg *klcdkscaling.Config) { cfg.MinCapacity = ptr(-1.0) },
			wantErr: "minimum capacity",
		},
		{
			name: "maximum below minimum",
			mutate: func(cfg *klcdkscaling.Config) {
				cfg.MinCapacity = ptr(3.0)
				cfg.MaxCapacity = ptr(2.0)
			},
			wantErr: "maximum capacity",
		},
		{
			name:    "desired below minimum",
			mutate:  func(cfg *klcdkscaling.Config) { cfg.DesiredCapacity = ptr(0.0) },
			wantErr: "desired capacity",
		},
		{
			name:    "desired above maximum",
			mutate:  func(cfg *klcdkscaling.Config) { cfg.DesiredCapacity = ptr(5.0) },
			wantErr: "desired capacity",
		},
		{
			name:    "grace above one hour",
			mutate:  func(cfg *klcdkscaling.Config) { cfg.HealthCheckGraceSeconds = ptr(3601.0) },
			wantErr: "grace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := klcdkscaling.FallbackConfig()
			tt.mutate(&cfg)

			err := klcdkscaling.Validate(cfg, klcdkcompliance.Commercial)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolvedTiersPassTheirOwnRules(t *testing.T) {
	t.Parallel()

	for _, name := range klcdkcompliance.Names() {
		framework, err := klcdkcompliance.Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}

		cfg, err := klcdkscaling.ResolveConfig(framework, klcdkscaling.Props{Ident: "workers"})
		if err != nil {
			t.Fatalf("ResolveConfig(%s): %v", name, err)
		}
		if err := klcdkscaling.Validate(cfg, framework); err != nil {
			t.Errorf("tier %s defaults must satisfy the tier's own rules: %v", name, err)
		}
	}
}
