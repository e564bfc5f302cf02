// Package klcdkservicebase provides the foundational service infrastructure
// construct that composes the network, queue and worker components.
//
// ServiceBase encapsulates resources that must be deployed and validated
// before workloads can run. Currently this includes:
//   - Network: the VPC and workload subnets (must be validated before
//     instances are placed into it)
//   - Queue: the service work queue (created in all cases)
//   - Workers: the autoscaling worker fleet (only created after the
//     network is validated)
//
// The construct checks validation flags from context (e.g.,
// "network-validated"):
//   - When not validated: only creates foundational resources, returns early.
//   - When validated: full infrastructure available.
package klcdkservicebase

import (
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/cloudkeel/keel/klcdk/klcdknetwork"
	"github.com/cloudkeel/keel/klcdk/klcdkqueue"
	"github.com/cloudkeel/keel/klcdk/klcdkscaling"
	"github.com/cloudkeel/keel/klcdkutil"
)

// ServiceBase provides access to foundational service infrastructure.
type ServiceBase interface {
	// Network returns the Network construct.
	// Always created, even before validation.
	Network() klcdknetwork.Network

	// Queue returns the work Queue construct.
	// Always created, even before validation.
	Queue() klcdkqueue.Queue

	// Workers returns the Scaling construct, or nil if not yet validated.
	// Only available after IsValidated() returns true.
	Workers() klcdkscaling.Scaling

	// IsValidated returns true if the network has been validated and all
	// foundational resources are available.
	IsValidated() bool
}

// Props configures the ServiceBase construct.
type Props struct {
	// NetworkProps configures the Network construct.
	// Optional: defaults to the "core" network.
	NetworkProps *klcdknetwork.Props

	// QueueProps configures the work Queue construct.
	// Optional: defaults to the "work" queue.
	QueueProps *klcdkqueue.Props

	// WorkersProps configures the worker Scaling construct.
	// Optional: defaults to workers consuming the work queue, placed
	// into the core network.
	WorkersProps *klcdkscaling.Props
}

type serviceBase struct {
	network   klcdknetwork.Network
	queue     klcdkqueue.Queue
	workers   klcdkscaling.Scaling
	validated bool
}

// DefaultNetworkProps returns the network configuration used when the caller
// does not provide one.
func DefaultNetworkProps() klcdknetwork.Props {
	return klcdknetwork.Props{Ident: "core"}
}

// DefaultQueueProps returns the work queue configuration used when the caller
// does not provide one.
func DefaultQueueProps() klcdkqueue.Props {
	return klcdkqueue.Props{Ident: "work"}
}

// DefaultWorkersProps derives the worker fleet configuration from the network
// and queue it composes with: workers are placed through the network's
// placement capability and bound to consume from the work queue.
func DefaultWorkersProps(networkIdent, queueIdent string) klcdkscaling.Props {
	return klcdkscaling.Props{
		Ident:   "workers",
		Network: networkIdent + ".network.placement",
		Binds:   []string{queueIdent + ".queue.consume"},
	}
}

// New creates a ServiceBase construct with foundational infrastructure.
//
// The construct checks validation flags to determine if all foundational
// infrastructure is ready. Currently requires:
//   - Network reachability confirmed (network-validated context flag)
//
// Consumers should check IsValidated() before creating dependent resources.
func New(scope constructs.Construct, props Props) ServiceBase {
	scope = constructs.NewConstruct(scope, jsii.String("ServiceBase"))
	base := &serviceBase{}

	networkProps := DefaultNetworkProps()
	if props.NetworkProps != nil {
		networkProps = *props.NetworkProps
	}
	base.network = klcdknetwork.New(scope, networkProps)

	queueProps := DefaultQueueProps()
	if props.QueueProps != nil {
		queueProps = *props.QueueProps
	}
	base.queue = klcdkqueue.New(scope, queueProps)

	if !isValidated(scope) {
		return base
	}

	base.validated = true

	workersProps := DefaultWorkersProps(networkProps.Ident, queueProps.Ident)
	if props.WorkersProps != nil {
		workersProps = *props.WorkersProps
	}
	base.workers = klcdkscaling.New(scope, workersProps)

	return base
}

// isValidated checks all required validation flags.
// Add additional checks here as more foundational infrastructure is added.
func isValidated(scope constructs.Construct) bool {
	return klcdkutil.NetworkValidated(scope)
}

func (s *serviceBase) Network() klcdknetwork.Network {
	return s.network
}

func (s *serviceBase) Queue() klcdkqueue.Queue {
	return s.queue
}

func (s *serviceBase) Workers() klcdkscaling.Scaling {
	return s.workers
}

func (s *serviceBase) IsValidated() bool {
	return s.validated
}
