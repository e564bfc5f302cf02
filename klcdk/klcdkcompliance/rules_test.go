package klcdkcompliance_test

import (
	"strings"
	"testing"

	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cockroachdb/errors"
)

type fakeConfig struct {
	Encrypted bool
	Retention int
}

func fakeRules() []klcdkcompliance.Rule[fakeConfig] {
	return []klcdkcompliance.Rule[fakeConfig]{
		{
			Name:        "encryption-at-rest",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg fakeConfig) error {
				if !cfg.Encrypted {
					return errors.New("encryption must be enabled")
				}
				return nil
			},
		},
		{
			Name:        "long-retention",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg fakeConfig) error {
				if cfg.Retention < 365 {
					return errors.Newf("retention must be at least 365 days, got %d", cfg.Retention)
				}
				return nil
			},
		},
	}
}

func TestEnforce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		tier         klcdkcompliance.Framework
		cfg          fakeConfig
		wantErr      bool
		wantContains []string
	}{
		{
			name:    "commercial skips all rules",
			tier:    klcdkcompliance.Commercial,
			cfg:     fakeConfig{Encrypted: false, Retention: 0},
			wantErr: false,
		},
		{
			name:         "moderate enforces encryption only",
			tier:         klcdkcompliance.ModerateAssurance,
			cfg:          fakeConfig{Encrypted: false, Retention: 0},
			wantErr:      true,
			wantContains: []string{"encryption-at-rest"},
		},
		{
			name:    "moderate passes with encryption",
			tier:    klcdkcompliance.ModerateAssurance,
			cfg:     fakeConfig{Encrypted: true, Retention: 0},
			wantErr: false,
		},
		{
			name:         "high aggregates all violations",
			tier:         klcdkcompliance.HighAssurance,
			cfg:          fakeConfig{Encrypted: false, Retention: 90},
			wantErr:      true,
			wantContains: []string{"encryption-at-rest", "long-retention", "365"},
		},
		{
			name:    "high passes fully hardened",
			tier:    klcdkcompliance.HighAssurance,
			cfg:     fakeConfig{Encrypted: true, Retention: 365},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := klcdkcompliance.Enforce(tt.tier, tt.cfg, fakeRules())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Enforce() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q should contain %q", err, want)
				}
			}
		})
	}
}

func TestEnforceNamesTier(t *testing.T) {
	t.Parallel()

	err := klcdkcompliance.Enforce(
		klcdkcompliance.ModerateAssurance, fakeConfig{}, fakeRules())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "moderate-assurance") {
		t.Errorf("error %q should name the enforced tier", err)
	}
}
