package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudkeel/keel/cmd/keel/internal/config"
	"github.com/cloudkeel/keel/cmd/keel/internal/manifest"
	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v3"
)

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Resolve the component manifest and check it against the compliance framework",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "environment",
				Usage: "Only check a single environment instead of all configured ones",
			},
		},
		Action: config.RunWithConfig(runValidate),
	}
}

func runValidate(ctx context.Context, cmd *cli.Command, cfg config.Context) error {
	framework, err := cfg.Config.ParseFramework()
	if err != nil {
		return err
	}

	m, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return err
	}

	environments := cfg.Config.Environments
	if env := cmd.String("environment"); env != "" {
		environments = []string{env}
	}

	failed := false
	for _, env := range environments {
		violations := manifest.Check(m, framework, env)
		if len(violations) == 0 {
			fmt.Fprintf(os.Stdout, "%s: ok (%d components)\n", env, len(m.Components))
			continue
		}

		failed = true
		fmt.Fprintf(os.Stdout, "%s:\n", env)
		for _, v := range violations {
			fmt.Fprintf(os.Stdout, "  %s: %v\n", v.Component, v.Err)
		}
	}

	if failed {
		return errors.Newf("manifest does not satisfy the %s framework", framework)
	}

	return nil
}
