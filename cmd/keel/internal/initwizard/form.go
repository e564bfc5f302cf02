package initwizard

import (
	"github.com/charmbracelet/huh"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdkutil"
	"github.com/cockroachdb/errors"
)

type FormBuilder interface {
	Build(defaultIdent string, result *Result) *huh.Form
}

type formBuilder struct{}

func NewFormBuilder() FormBuilder {
	return &formBuilder{}
}

func (b *formBuilder) Build(defaultIdent string, result *Result) *huh.Form {
	*result = DefaultResult(defaultIdent)
	return huh.NewForm(
		huh.NewGroup(
			b.projectIdentInput(&result.ProjectIdent),
			b.qualifierInput(&result.Qualifier),
			b.frameworkSelect(&result.Framework),
			b.primaryRegionSelect(&result.PrimaryRegion),
			b.secondaryRegionsSelect(&result.PrimaryRegion, &result.SecondaryRegions),
			b.environmentsSelect(&result.Environments),
		),
	)
}

func (b *formBuilder) projectIdentInput(value *string) *huh.Input {
	return huh.NewInput().
		Title("Project identifier").
		Description("Used as the context key prefix and default component naming").
		Value(value).
		Validate(ValidateProjectIdent)
}

func (b *formBuilder) qualifierInput(value *string) *huh.Input {
	return huh.NewInput().
		Title("Stack qualifier").
		Description("Short name prefixed to stack and resource names (max 10 characters)").
		Value(value).
		Validate(ValidateQualifier)
}

func (b *formBuilder) frameworkSelect(value *string) *huh.Select[string] {
	return huh.NewSelect[string]().
		Title("Compliance framework").
		Description("Assurance tier that hardens component defaults and policy overrides").
		Options(huh.NewOptions(klcdkcompliance.Names()...)...).
		Value(value)
}

func (b *formBuilder) primaryRegionSelect(value *string) *huh.Select[string] {
	regions := klcdkutil.AllKnownRegions()
	return huh.NewSelect[string]().
		Title("Primary AWS region").
		Description("Main region for deployments").
		Options(huh.NewOptions(regions...)...).
		Value(value)
}

func (b *formBuilder) secondaryRegionsSelect(primaryRegion *string, value *[]string) *huh.MultiSelect[string] {
	return huh.NewMultiSelect[string]().
		Title("Secondary AWS regions").
		Description("Additional regions for multi-region deployments (optional)").
		OptionsFunc(func() []huh.Option[string] {
			var opts []huh.Option[string]
			for _, r := range klcdkutil.AllKnownRegions() {
				if r != *primaryRegion {
					opts = append(opts, huh.NewOption(r, r))
				}
			}
			return opts
		}, primaryRegion).
		Value(value)
}

func (b *formBuilder) environmentsSelect(value *[]string) *huh.MultiSelect[string] {
	options := []string{"Dev1", "Dev2", "Dev3", "Stag", "Prod"}
	return huh.NewMultiSelect[string]().
		Title("Environments").
		Description("Environment stacks created per region").
		Options(huh.NewOptions(options...)...).
		Value(value).
		Validate(func(selected []string) error {
			if len(selected) == 0 {
				return errors.New("at least one environment is required")
			}
			return nil
		})
}

func ValidateProjectIdent(s string) error {
	if s == "" {
		return errors.New("project identifier is required")
	}
	if len(s) > 20 {
		return errors.New("project identifier must be 20 characters or less")
	}
	for _, c := range s {
		if !IsValidIdentChar(c) {
			return errors.Newf("invalid character %q: use lowercase letters, numbers, and hyphens only", c)
		}
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return errors.New("project identifier cannot start or end with a hyphen")
	}
	return nil
}

func ValidateQualifier(s string) error {
	if s == "" {
		return errors.New("qualifier is required")
	}
	if len(s) > 10 {
		return errors.New("qualifier must be 10 characters or less")
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return errors.Newf("invalid character %q: use lowercase letters and numbers only", c)
		}
	}
	return nil
}

func IsValidIdentChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-'
}
