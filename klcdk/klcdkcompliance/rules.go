package klcdkcompliance

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Rule is a named check a resolved component configuration must satisfy
// once the deployment targets a certain tier.
type Rule[C any] struct {
	// Name identifies the rule in violation messages, e.g. "queue-encryption".
	Name string

	// AppliesFrom is the lowest tier at which the rule is enforced.
	AppliesFrom Framework

	// Check returns a descriptive error when the configuration violates
	// the rule, nil otherwise.
	Check func(cfg C) error
}

// Enforce runs every rule that applies at the given tier and aggregates the
// violations into a single error, formatted as a bullet list like the
// context validation errors elsewhere in the library.
func Enforce[C any](f Framework, cfg C, rules []Rule[C]) error {
	var msgs []string

	for _, rule := range rules {
		if !f.AtLeast(rule.AppliesFrom) {
			continue
		}

		if err := rule.Check(cfg); err != nil {
			msgs = append(msgs, rule.Name+": "+err.Error())
		}
	}

	if len(msgs) > 0 {
		return errors.Newf("compliance violations for tier %s:\n  - %s",
			f, strings.Join(msgs, "\n  - "))
	}

	return nil
}
