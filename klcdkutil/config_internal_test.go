//nolint:paralleltest // this test doesn't need parallel execution
package klcdkutil

import (
	"strings"
	"testing"

	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

func TestValidateConfigRegionIdents(t *testing.T) {
	tests := []struct {
		name               string
		config             Config
		wantErr            bool
		wantMissingRegions []string
	}{
		{
			name: "valid - all regions have idents",
			config: Config{
				Prefix:           "test-",
				Qualifier:        "testq",
				PrimaryRegion:    "us-east-1",
				SecondaryRegions: []string{"eu-west-1"},
				RegionIdents: map[string]string{
					"us-east-1": "use1",
					"eu-west-1": "euw1",
				},
				Environments:   []string{"Dev"},
				Framework:      klcdkcompliance.ModerateAssurance,
				OperatorsGroup: "operators",
			},
			wantErr: false,
		},
		{
			name: "invalid - primary region missing from RegionIdents",
			config: Config{
				Prefix:           "test-",
				Qualifier:        "testq",
				PrimaryRegion:    "us-east-1",
				SecondaryRegions: []string{},
				RegionIdents:     map[string]string{},
				Environments:     []string{"Dev"},
				OperatorsGroup:   "operators",
			},
			wantErr:            true,
			wantMissingRegions: []string{"us-east-1"},
		},
		{
			name: "invalid - secondary region missing from RegionIdents",
			config: Config{
				Prefix:           "test-",
				Qualifier:        "testq",
				PrimaryRegion:    "us-east-1",
				SecondaryRegions: []string{"eu-west-1", "ap-southeast-1"},
				RegionIdents: map[string]string{
					"us-east-1": "use1",
					"eu-west-1": "euw1",
					// missing ap-southeast-1
				},
				Environments:   []string{"Dev"},
				OperatorsGroup: "operators",
			},
			wantErr:            true,
			wantMissingRegions: []string{"ap-southeast-1"},
		},
		{
			name: "invalid - multiple regions missing from RegionIdents",
			config: Config{
				Prefix:           "test-",
				Qualifier:        "testq",
				PrimaryRegion:    "us-east-1",
				SecondaryRegions: []string{"eu-west-1", "ap-southeast-1"},
				RegionIdents:     map[string]string{},
				Environments:     []string{"Dev"},
				OperatorsGroup:   "operators",
			},
			wantErr:            true,
			wantMissingRegions: []string{"us-east-1", "eu-west-1", "ap-southeast-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validate := validator.New(validator.WithRequiredStructEnabled())
			validate.RegisterStructValidation(validateConfigRegionIdents, Config{})

			err := validate.Struct(tt.config)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				return
			}

			if err == nil {
				t.Fatalf("expected error but got nil")
			}

			var validationErrs validator.ValidationErrors
			if !errors.As(err, &validationErrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}

			formatted := formatValidationErrors(validationErrs)

			for _, region := range tt.wantMissingRegions {
				if !strings.Contains(formatted, region) {
					t.Errorf("formatted error %q should contain region %q", formatted, region)
				}
			}

			if !strings.Contains(formatted, "RegionIdents") {
				t.Errorf("formatted error %q should contain 'RegionIdents'", formatted)
			}
			if !strings.Contains(formatted, "missing entry for region") {
				t.Errorf("formatted error %q should contain 'missing entry for region'", formatted)
			}
		})
	}
}

func TestAllowedEnvironments(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []string
	}{
		{
			name: "nil operator groups means bootstrap, no environments",
			config: Config{
				Environments:   []string{"Dev", "Prod"},
				OperatorsGroup: "operators",
			},
			want: nil,
		},
		{
			name: "full access group gets all environments",
			config: Config{
				Environments:           []string{"Dev", "Stag", "Prod"},
				OperatorGroups:         []string{"operators"},
				OperatorsGroup:         "operators",
				RestrictedEnvironments: []string{"Prod"},
			},
			want: []string{"Dev", "Stag", "Prod"},
		},
		{
			name: "other group is filtered to unrestricted environments",
			config: Config{
				Environments:           []string{"Dev", "Stag", "Prod"},
				OperatorGroups:         []string{"developers"},
				OperatorsGroup:         "operators",
				RestrictedEnvironments: []string{"Stag", "Prod"},
			},
			want: []string{"Dev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.config.AllowedEnvironments()
			if len(got) != len(tt.want) {
				t.Fatalf("AllowedEnvironments() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("AllowedEnvironments() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, formatValidationError(e))
	}

	return strings.Join(msgs, "\n")
}
