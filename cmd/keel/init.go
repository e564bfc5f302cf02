package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cloudkeel/keel/cmd/keel/internal/config"
	"github.com/cloudkeel/keel/cmd/keel/internal/initwizard"
	"github.com/cloudkeel/keel/cmd/keel/internal/manifest"
	"github.com/cloudkeel/keel/klcdkutil"
	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v3"
)

const starterManifest = `version: "1"
components:
  - ident: core
    type: network
  - ident: work
    type: queue
`

func initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Initialize a new keel project",
		ArgsUsage: "[directory]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "accessible",
				Usage: "Run the wizard in accessible (non-interactive-terminal) mode",
			},
			&cli.BoolFlag{
				Name:  "defaults",
				Usage: "Skip the wizard and write the default configuration",
			},
		},
		Action: runInit,
	}
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return errors.Wrap(err, "failed to get current working directory")
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrap(err, "failed to get absolute path")
	}

	var runner initwizard.FormRunner = initwizard.NewInteractiveRunner()
	if cmd.Bool("accessible") {
		runner = initwizard.NewAccessibleRunner(os.Stdout, os.Stdin)
	}

	return doInit(InitOptions{
		Dir:         absDir,
		Wizard:      initwizard.New(initwizard.NewFormBuilder(), runner),
		UseDefaults: cmd.Bool("defaults"),
	})
}

type InitOptions struct {
	Dir         string
	Wizard      *initwizard.Wizard
	UseDefaults bool
}

func doInit(opts InitOptions) error {
	if err := ensureProjectDir(opts.Dir); err != nil {
		return err
	}

	result := initwizard.DefaultResult(filepath.Base(opts.Dir))
	if !opts.UseDefaults {
		var err error
		result, err = opts.Wizard.Run(filepath.Base(opts.Dir))
		if err != nil {
			return err
		}
	}

	if err := initwizard.ValidateProjectIdent(result.ProjectIdent); err != nil {
		return err
	}
	if err := initwizard.ValidateQualifier(result.Qualifier); err != nil {
		return err
	}

	cfg := config.Config{
		Version:          "1",
		Project:          result.ProjectIdent,
		Qualifier:        result.Qualifier,
		Framework:        result.Framework,
		PrimaryRegion:    result.PrimaryRegion,
		SecondaryRegions: result.SecondaryRegions,
		Environments:     result.Environments,
	}

	if err := config.WriteToFile(opts.Dir, cfg, config.NewWriter()); err != nil {
		return err
	}

	if err := writeStarterManifest(opts.Dir); err != nil {
		return err
	}

	return writeCDKContextJSON(opts.Dir, cfg)
}

func ensureProjectDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return errors.Newf("%q is not a directory", dir)
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create directory")
		}
	default:
		return errors.Wrap(err, "failed to check directory")
	}

	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return errors.Newf("directory %q already holds a %s", dir, config.FileName)
	}

	return nil
}

func writeStarterManifest(dir string) error {
	path := filepath.Join(dir, manifest.FileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	//nolint:gosec // config file needs to be readable
	if err := os.WriteFile(path, []byte(starterManifest), 0o644); err != nil {
		return errors.Wrap(err, "failed to write starter manifest")
	}

	return nil
}

// writeCDKContextJSON writes the context values the construct library reads
// through the app's construct tree, keyed by the project prefix.
func writeCDKContextJSON(dir string, cfg config.Config) error {
	prefix := cfg.Project + "-"
	context := map[string]any{
		prefix + "qualifier":         cfg.Qualifier,
		prefix + "primary-region":    cfg.PrimaryRegion,
		prefix + "secondary-regions": cfg.SecondaryRegions,
		prefix + "environments":      cfg.Environments,
		prefix + "framework":         cfg.Framework,
	}

	for _, region := range append([]string{cfg.PrimaryRegion}, cfg.SecondaryRegions...) {
		ident := klcdkutil.DefaultRegionIdent(region)
		if ident == "" {
			return errors.Newf("no default region identifier known for %q", region)
		}
		context[prefix+"region-ident-"+region] = ident
	}

	output, err := json.MarshalIndent(context, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal cdk.context.json")
	}

	contextPath := filepath.Join(dir, "cdk.context.json")
	if err := os.WriteFile(contextPath, output, 0o644); err != nil { //nolint:gosec // config file needs to be readable
		return errors.Wrap(err, "failed to write cdk.context.json")
	}

	return nil
}
