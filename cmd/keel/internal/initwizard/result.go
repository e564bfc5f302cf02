package initwizard

import "strings"

type Result struct {
	ProjectIdent     string
	Qualifier        string
	Framework        string
	PrimaryRegion    string
	SecondaryRegions []string
	Environments     []string
}

func DefaultResult(defaultIdent string) Result {
	return Result{
		ProjectIdent:     defaultIdent,
		Qualifier:        DefaultQualifier(defaultIdent),
		Framework:        "commercial",
		PrimaryRegion:    "eu-central-1",
		SecondaryRegions: []string{},
		Environments:     []string{"Dev1", "Stag", "Prod"},
	}
}

// DefaultQualifier derives a stack qualifier from the project identifier:
// hyphens stripped and truncated to the ten character maximum.
func DefaultQualifier(ident string) string {
	qualifier := strings.ReplaceAll(ident, "-", "")
	if len(qualifier) > 10 {
		qualifier = qualifier[:10]
	}
	return qualifier
}
