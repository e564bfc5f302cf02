package klcdkbind

import (
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssqs"
	"github.com/cockroachdb/errors"
)

// queueBinder wires a queue capability into a consumer. Capabilities named
// "*.send" get send permissions, "*.consume" get consume permissions.
type queueBinder struct{}

func (queueBinder) Kind() Kind { return KindQueue }

func (queueBinder) Bind(capability Capability, target Target) error {
	queue, ok := capability.Resource.(awssqs.IQueue)
	if !ok {
		return errors.Newf("queue capability resource has unexpected type %T", capability.Resource)
	}

	switch {
	case strings.HasSuffix(capability.Name, ".send"):
		queue.GrantSendMessages(target.Grantee())
	case strings.HasSuffix(capability.Name, ".consume"):
		queue.GrantConsumeMessages(target.Grantee())
	default:
		return errors.Newf("queue capability %q must end in .send or .consume", capability.Name)
	}

	injectOutputs(capability, target)

	return nil
}

// functionBinder grants invoke on a function capability.
type functionBinder struct{}

func (functionBinder) Kind() Kind { return KindFunction }

func (functionBinder) Bind(capability Capability, target Target) error {
	function, ok := capability.Resource.(awslambda.IFunction)
	if !ok {
		return errors.Newf("function capability resource has unexpected type %T", capability.Resource)
	}

	function.GrantInvoke(target.Grantee())
	injectOutputs(capability, target)

	return nil
}

// httpBinder injects endpoint discovery only; HTTP surfaces carry their own
// authorization and need no IAM grant.
type httpBinder struct{}

func (httpBinder) Kind() Kind { return KindHTTP }

func (httpBinder) Bind(capability Capability, target Target) error {
	injectOutputs(capability, target)
	return nil
}

func injectOutputs(capability Capability, target Target) {
	for name, value := range capability.Outputs {
		target.AddDiscoveryEnv(name, value)
	}
}
