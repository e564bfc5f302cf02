// Package klcdkresolve implements the layered configuration resolution used
// by every component's config builder.
//
// A component configuration is assembled from five layers of ascending
// precedence:
//
//	Fallback < PlatformDefault < EnvironmentDefault < UserOverride < PolicyOverride
//
// Set fields of a higher layer win over lower layers. Optional fields are
// pointers so "explicitly set to zero" is distinguishable from "unset".
// Maps merge key-wise with higher layers winning per key; slices replace
// wholesale so a higher layer can remove entries, not only add them.
package klcdkresolve

import (
	"dario.cat/mergo"
	"github.com/cockroachdb/errors"
)

// Layer names one of the five precedence levels.
type Layer int

const (
	// Fallback is the component's hardcoded baseline.
	Fallback Layer = iota
	// PlatformDefault carries the compliance framework tier defaults.
	PlatformDefault
	// EnvironmentDefault carries per-environment (Dev/Stag/Prod) defaults.
	EnvironmentDefault
	// UserOverride carries the consumer's explicit configuration.
	UserOverride
	// PolicyOverride carries tier-mandated values that user configuration
	// must not weaken.
	PolicyOverride
)

func (l Layer) String() string {
	switch l {
	case Fallback:
		return "fallback"
	case PlatformDefault:
		return "platform-default"
	case EnvironmentDefault:
		return "environment-default"
	case UserOverride:
		return "user-override"
	case PolicyOverride:
		return "policy-override"
	default:
		return "unknown"
	}
}

// Layers holds one configuration struct per precedence level. Component
// builders fill it explicitly so the resolution order cannot be permuted
// at a call site.
type Layers[C any] struct {
	Fallback           C
	PlatformDefault    C
	EnvironmentDefault C
	UserOverride       C
	PolicyOverride     C
}

// Resolve merges the layers in ascending precedence and returns the
// effective configuration. Input layers are never mutated.
func (l Layers[C]) Resolve() (C, error) {
	var out C

	ordered := []struct {
		layer Layer
		cfg   C
	}{
		{Fallback, l.Fallback},
		{PlatformDefault, l.PlatformDefault},
		{EnvironmentDefault, l.EnvironmentDefault},
		{UserOverride, l.UserOverride},
		{PolicyOverride, l.PolicyOverride},
	}

	// WithoutDereference keeps pointer fields atomic: a pointer to a zero
	// value is a set field and must win over lower layers.
	for _, entry := range ordered {
		if err := mergo.Merge(&out, entry.cfg, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return out, errors.Wrapf(err, "merging %s layer", entry.layer)
		}
	}

	return out, nil
}

// MustResolve is Resolve for construct paths, where configuration mistakes
// surface as panics like the rest of the CDK construct tree.
func (l Layers[C]) MustResolve() C {
	out, err := l.Resolve()
	if err != nil {
		panic(err)
	}

	return out
}
