package klcdkutil

import (
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// NetworkValidated reports whether the network reachability validation flag
// is set in context. Foundational network resources deploy first; workload
// resources that need a reachable network are only created once an operator
// has validated connectivity and set this flag.
func NetworkValidated(scope constructs.Construct) bool {
	cfg := ConfigFromScope(scope)
	return boolContext(scope, cfg.Prefix+"network-validated")
}

// boolContext retrieves an optional boolean context flag. Absent means false.
// Accepts bool or the strings "true"/"false" since -c flags arrive as strings.
func boolContext(scope constructs.Construct, key string) bool {
	val := scope.Node().TryGetContext(jsii.String(key))
	if val == nil {
		return false
	}

	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		panic("invalid '" + key + "', expected a boolean")
	}
}
