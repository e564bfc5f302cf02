// Package klcdkcompliance defines the compliance framework tiers that drive
// component configuration across the library.
//
// A Framework selects which defaults a component starts from and which rules
// its resolved configuration must satisfy. Tiers are ordered: each tier
// includes every requirement of the tiers below it.
package klcdkcompliance

import (
	"github.com/cockroachdb/errors"
)

// Framework is a compliance framework tier.
type Framework int

const (
	// Commercial is the baseline tier with cost-lean defaults and no
	// mandated hardening.
	Commercial Framework = iota

	// ModerateAssurance mandates encryption at rest, tracing and
	// audit-grade log retention on every component.
	ModerateAssurance

	// HighAssurance additionally mandates network isolation, multi-AZ
	// capacity and long-term log retention. Tier-mandated values are
	// applied as policy overrides so user configuration cannot weaken them.
	HighAssurance
)

const (
	commercialName        = "commercial"
	moderateAssuranceName = "moderate-assurance"
	highAssuranceName     = "high-assurance"
)

// Parse returns the framework tier for its canonical name.
// Unknown names are an error, never a silent fallback to Commercial.
func Parse(s string) (Framework, error) {
	switch s {
	case commercialName:
		return Commercial, nil
	case moderateAssuranceName:
		return ModerateAssurance, nil
	case highAssuranceName:
		return HighAssurance, nil
	default:
		return Commercial, errors.Newf(
			"unknown compliance framework %q (expected one of: %s, %s, %s)",
			s, commercialName, moderateAssuranceName, highAssuranceName)
	}
}

// Names returns the canonical names of all tiers, lowest first.
func Names() []string {
	return []string{commercialName, moderateAssuranceName, highAssuranceName}
}

func (f Framework) String() string {
	switch f {
	case Commercial:
		return commercialName
	case ModerateAssurance:
		return moderateAssuranceName
	case HighAssurance:
		return highAssuranceName
	default:
		return "unknown"
	}
}

// AtLeast reports whether the tier includes the requirements of 'other'.
func (f Framework) AtLeast(other Framework) bool {
	return f >= other
}

// MarshalText implements encoding.TextMarshaler for yaml/json round-trips.
func (f Framework) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for yaml/json round-trips.
func (f *Framework) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*f = parsed

	return nil
}
