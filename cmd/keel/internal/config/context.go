package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
)

type contextKey struct{}

// Context carries the loaded project config and its location.
type Context struct {
	Config     Config
	ProjectDir string
}

// ManifestPath returns the path to the component manifest (keel.yml).
func (c Context) ManifestPath() string {
	return filepath.Join(c.ProjectDir, "keel.yml")
}

// CDKContextPath returns the path to cdk.context.json.
func (c Context) CDKContextPath() string {
	return filepath.Join(c.ProjectDir, "cdk.context.json")
}

func WithContext(ctx context.Context, cfg Context) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

func FromContext(ctx context.Context) (Context, bool) {
	cfg, ok := ctx.Value(contextKey{}).(Context)
	return cfg, ok
}

var defaultFinder = NewFinder(NewLoader())

// Ensure returns config from context if present, otherwise loads it from disk.
// This enables lazy config loading - config is only loaded when an action needs it.
func Ensure(ctx context.Context) (context.Context, Context, error) {
	if cfg, ok := FromContext(ctx); ok {
		return ctx, cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ctx, Context{}, err
	}

	inner, projectDir, err := defaultFinder.Find(cwd)
	if err != nil {
		return ctx, Context{}, err
	}

	cfg := Context{Config: inner, ProjectDir: projectDir}
	return WithContext(ctx, cfg), cfg, nil
}

// ActionFunc is a command action that receives the config.
type ActionFunc func(ctx context.Context, cmd *cli.Command, cfg Context) error

// RunWithConfig wraps an ActionFunc to lazily load config when the action runs.
// Config is only loaded when an actual command action executes, not when showing help.
func RunWithConfig(fn ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctx, cfg, err := Ensure(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, cfg)
	}
}
