package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudkeel/keel/cmd/keel/internal/config"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdk/klcdkfunction"
	"github.com/cloudkeel/keel/klcdk/klcdkgateway"
	"github.com/cloudkeel/keel/klcdk/klcdknetwork"
	"github.com/cloudkeel/keel/klcdk/klcdkqueue"
	"github.com/cloudkeel/keel/klcdk/klcdkscaling"
	"github.com/urfave/cli/v3"
)

// catalogEntry describes one component type for the catalog listing.
type catalogEntry struct {
	Name      string
	Publishes []string
	Consumes  []string
	Rules     []ruleInfo
}

type ruleInfo struct {
	Name        string
	AppliesFrom klcdkcompliance.Framework
}

func catalogEntries() []catalogEntry {
	return []catalogEntry{
		{
			Name:      "network",
			Publishes: []string{"<ident>.network.placement"},
			Rules:     ruleInfos(klcdknetwork.Rules()),
		},
		{
			Name:      "queue",
			Publishes: []string{"<ident>.queue.send", "<ident>.queue.consume"},
			Rules:     ruleInfos(klcdkqueue.Rules()),
		},
		{
			Name:      "function",
			Publishes: []string{"<ident>.function.invoke"},
			Consumes:  []string{"queue and function capabilities via binds"},
			Rules:     ruleInfos(klcdkfunction.Rules()),
		},
		{
			Name:      "gateway",
			Publishes: []string{"<ident>.http.invoke"},
			Consumes:  []string{"a function invoke capability"},
			Rules:     ruleInfos(klcdkgateway.Rules()),
		},
		{
			Name:      "scaling",
			Publishes: []string{},
			Consumes:  []string{"a network placement capability", "queue and function capabilities via binds"},
			Rules:     ruleInfos(klcdkscaling.Rules()),
		},
	}
}

func ruleInfos[C any](rules []klcdkcompliance.Rule[C]) []ruleInfo {
	infos := make([]ruleInfo, 0, len(rules))
	for _, r := range rules {
		infos = append(infos, ruleInfo{Name: r.Name, AppliesFrom: r.AppliesFrom})
	}
	return infos
}

func catalogCmd() *cli.Command {
	return &cli.Command{
		Name:   "catalog",
		Usage:  "List available components, their capabilities and compliance rules",
		Action: config.RunWithConfig(runCatalog),
	}
}

func runCatalog(ctx context.Context, cmd *cli.Command, cfg config.Context) error {
	framework, err := cfg.Config.ParseFramework()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "components for compliance framework %s:\n\n", framework)

	for _, entry := range catalogEntries() {
		fmt.Fprintf(os.Stdout, "%s\n", entry.Name)
		for _, p := range entry.Publishes {
			fmt.Fprintf(os.Stdout, "  publishes: %s\n", p)
		}
		for _, c := range entry.Consumes {
			fmt.Fprintf(os.Stdout, "  consumes:  %s\n", c)
		}
		for _, r := range entry.Rules {
			marker := " "
			if framework.AtLeast(r.AppliesFrom) {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "  %s rule %s (from %s)\n", marker, r.Name, r.AppliesFrom)
		}
		fmt.Fprintln(os.Stdout)
	}

	fmt.Fprintln(os.Stdout, "rules marked * are enforced at this project's tier")

	return nil
}
