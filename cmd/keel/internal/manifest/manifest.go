// Package manifest loads the project component manifest (keel.yml) and
// checks each declared component's resolved configuration against the
// project's compliance framework, without synthesizing any infrastructure.
package manifest

import (
	"bytes"
	"os"

	"github.com/cloudkeel/keel/klcdk/klcdkbind"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdk/klcdkfunction"
	"github.com/cloudkeel/keel/klcdk/klcdkgateway"
	"github.com/cloudkeel/keel/klcdk/klcdknetwork"
	"github.com/cloudkeel/keel/klcdk/klcdkqueue"
	"github.com/cloudkeel/keel/klcdk/klcdkscaling"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

const FileName = "keel.yml"

// Component types the manifest accepts.
const (
	TypeQueue    = "queue"
	TypeFunction = "function"
	TypeGateway  = "gateway"
	TypeNetwork  = "network"
	TypeScaling  = "scaling"
)

type Manifest struct {
	Version    string      `yaml:"version" validate:"required,oneof=1"`
	Components []Component `yaml:"components" validate:"required,min=1,dive"`
}

// Component declares one component instance. Overrides and environment
// defaults stay untyped here; they are decoded into the component's own
// Config type when checked.
type Component struct {
	Ident               string                    `yaml:"ident" validate:"required"`
	Type                string                    `yaml:"type" validate:"required,oneof=queue function gateway network scaling"`
	Overrides           map[string]any            `yaml:"overrides,omitempty"`
	EnvironmentDefaults map[string]map[string]any `yaml:"environmentDefaults,omitempty"`
}

// Load reads and validates a manifest file.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "failed to read manifest file")
	}

	dec := yaml.NewDecoder(
		bytes.NewReader(data),
		yaml.Validator(validator.New()),
		yaml.Strict(),
	)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, errors.Wrap(err, "failed to parse manifest file")
	}

	for _, c := range m.Components {
		if err := klcdkbind.ValidIdent(c.Ident); err != nil {
			return Manifest{}, err
		}
	}

	return m, nil
}

// Violation is one component whose resolved configuration failed.
type Violation struct {
	Component string
	Err       error
}

// Check resolves every component's configuration for the framework tier
// and environment and collects validation failures.
func Check(m Manifest, framework klcdkcompliance.Framework, environment string) []Violation {
	var violations []Violation
	for _, c := range m.Components {
		if err := checkComponent(c, framework, environment); err != nil {
			violations = append(violations, Violation{
				Component: c.Ident,
				Err:       err,
			})
		}
	}

	return violations
}

func checkComponent(c Component, framework klcdkcompliance.Framework, environment string) error {
	switch c.Type {
	case TypeQueue:
		return checkConfig(c, func(overrides klcdkqueue.Config, defaults map[string]klcdkqueue.Config) (klcdkqueue.Config, error) {
			return klcdkqueue.ResolveConfig(framework, klcdkqueue.Props{
				Ident:               c.Ident,
				Environment:         environment,
				EnvironmentDefaults: defaults,
				Overrides:           overrides,
			})
		}, func(cfg klcdkqueue.Config) error {
			return klcdkqueue.Validate(cfg, framework)
		})
	case TypeFunction:
		return checkConfig(c, func(overrides klcdkfunction.Config, defaults map[string]klcdkfunction.Config) (klcdkfunction.Config, error) {
			return klcdkfunction.ResolveConfig(framework, klcdkfunction.Props{
				Ident:               c.Ident,
				Environment:         environment,
				EnvironmentDefaults: defaults,
				Overrides:           overrides,
			})
		}, func(cfg klcdkfunction.Config) error {
			return klcdkfunction.Validate(cfg, framework)
		})
	case TypeGateway:
		return checkConfig(c, func(overrides klcdkgateway.Config, defaults map[string]klcdkgateway.Config) (klcdkgateway.Config, error) {
			return klcdkgateway.ResolveConfig(framework, klcdkgateway.Props{
				Ident:               c.Ident,
				Environment:         environment,
				EnvironmentDefaults: defaults,
				Overrides:           overrides,
			})
		}, func(cfg klcdkgateway.Config) error {
			return klcdkgateway.Validate(cfg, framework)
		})
	case TypeNetwork:
		return checkConfig(c, func(overrides klcdknetwork.Config, defaults map[string]klcdknetwork.Config) (klcdknetwork.Config, error) {
			return klcdknetwork.ResolveConfig(framework, klcdknetwork.Props{
				Ident:               c.Ident,
				Environment:         environment,
				EnvironmentDefaults: defaults,
				Overrides:           overrides,
			})
		}, func(cfg klcdknetwork.Config) error {
			return klcdknetwork.Validate(cfg, framework)
		})
	case TypeScaling:
		return checkConfig(c, func(overrides klcdkscaling.Config, defaults map[string]klcdkscaling.Config) (klcdkscaling.Config, error) {
			return klcdkscaling.ResolveConfig(framework, klcdkscaling.Props{
				Ident:               c.Ident,
				Environment:         environment,
				EnvironmentDefaults: defaults,
				Overrides:           overrides,
			})
		}, func(cfg klcdkscaling.Config) error {
			return klcdkscaling.Validate(cfg, framework)
		})
	default:
		return errors.Newf("unknown component type %q", c.Type)
	}
}

func checkConfig[C any](
	c Component,
	resolve func(overrides C, defaults map[string]C) (C, error),
	validate func(cfg C) error,
) error {
	overrides, err := decodeInto[C](c.Overrides)
	if err != nil {
		return errors.Wrap(err, "decoding overrides")
	}

	defaults := map[string]C{}
	for env, raw := range c.EnvironmentDefaults {
		cfg, err := decodeInto[C](raw)
		if err != nil {
			return errors.Wrapf(err, "decoding environment defaults for %q", env)
		}
		defaults[env] = cfg
	}

	cfg, err := resolve(overrides, defaults)
	if err != nil {
		return err
	}

	return validate(cfg)
}

// decodeInto round-trips an untyped manifest section through YAML into the
// component's typed Config so unknown keys are rejected.
func decodeInto[C any](raw map[string]any) (C, error) {
	var out C
	if raw == nil {
		return out, nil
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return out, errors.Wrap(err, "failed to re-marshal section")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data), yaml.Strict())
	if err := dec.Decode(&out); err != nil {
		return out, errors.Wrap(err, "failed to decode section")
	}

	return out, nil
}
