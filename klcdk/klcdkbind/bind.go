// Package klcdkbind implements the capability vocabulary components use to
// discover and wire into each other's outputs.
//
// A component that creates a resource publishes one or more capabilities to
// the app-wide registry, e.g. "orders.queue.send". A consuming component
// binds a capability by name: the binder strategy for the capability's kind
// grants the needed IAM permissions on the consumer and injects discovery
// environment variables.
//
// The registry lives in the construct-tree context under a well-known key,
// the same mechanism used for the validated Config.
package klcdkbind

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/cockroachdb/errors"
)

// Kind classifies a capability so the registry can pick a binder strategy.
type Kind string

const (
	// KindQueue is a message queue surface (send or consume).
	KindQueue Kind = "queue"
	// KindFunction is a serverless function invoke surface.
	KindFunction Kind = "function"
	// KindHTTP is an HTTP endpoint surface.
	KindHTTP Kind = "http"
	// KindNetwork is a network placement surface. Placement is consumed
	// structurally (no grants or env vars), so no binder exists for it.
	KindNetwork Kind = "network"
)

// Capability is a named output surface published by a component.
type Capability struct {
	// Name is the dotted capability name, e.g. "orders.queue.send".
	Name string

	// Kind selects the binder strategy.
	Kind Kind

	// Publisher is the construct path of the publishing component, used
	// in error messages.
	Publisher string

	// Resource is the typed CDK handle (awssqs.IQueue, awslambda.IFunction,
	// ...). Binders type-assert it.
	Resource any

	// Outputs are discovery values injected into the consumer's
	// environment on bind, e.g. "ORDERS_QUEUE_URL" -> queue URL token.
	Outputs map[string]*string
}

// Target is implemented by components that can receive capability bindings.
type Target interface {
	// Grantee is the IAM principal permissions are granted on.
	Grantee() awsiam.IGrantable

	// AddDiscoveryEnv injects one discovery environment variable.
	AddDiscoveryEnv(name string, value *string)
}

// Binder wires a capability of one kind into a consuming component.
type Binder interface {
	Kind() Kind
	Bind(capability Capability, target Target) error
}

// Registry holds published capabilities and the binder strategies per kind.
type Registry struct {
	caps    map[string]Capability
	binders map[Kind]Binder
}

// NewRegistry creates a registry with the built-in binder strategies
// registered.
func NewRegistry() *Registry {
	reg := &Registry{
		caps:    map[string]Capability{},
		binders: map[Kind]Binder{},
	}

	reg.RegisterBinder(queueBinder{})
	reg.RegisterBinder(functionBinder{})
	reg.RegisterBinder(httpBinder{})

	return reg
}

// registryContextKey is the well-known key used to store the Registry in
// the construct tree.
const registryContextKey = "__klcdkbind_registry"

// StoreRegistry stores the registry in the app's context so it can be
// retrieved anywhere in the construct tree via RegistryFromScope.
func StoreRegistry(app awscdk.App, reg *Registry) {
	app.Node().SetContext(jsii.String(registryContextKey), reg)
}

// RegistryFromScope retrieves the registry from the construct tree.
// It panics if the registry was not stored (i.e., SetupApp was not called).
func RegistryFromScope(scope constructs.Construct) *Registry {
	val := scope.Node().TryGetContext(jsii.String(registryContextKey))
	if val == nil {
		panic("klcdkbind.Registry not found in construct tree - was SetupApp or StoreRegistry called?")
	}

	reg, ok := val.(*Registry)
	if !ok {
		panic(fmt.Sprintf("klcdkbind.Registry has unexpected type %T", val))
	}

	return reg
}

// RegisterBinder registers a binder strategy, replacing any previous binder
// for the same kind.
func (r *Registry) RegisterBinder(b Binder) {
	r.binders[b.Kind()] = b
}

// Publish registers a capability. Capability names are unique app-wide.
func (r *Registry) Publish(capability Capability) error {
	if capability.Name == "" {
		return errors.New("capability name must not be empty")
	}

	if existing, ok := r.caps[capability.Name]; ok {
		return errors.Newf("capability %q already published by %s",
			capability.Name, existing.Publisher)
	}

	r.caps[capability.Name] = capability

	return nil
}

// Lookup returns the capability with the given name, if published.
func (r *Registry) Lookup(name string) (Capability, bool) {
	capability, ok := r.caps[name]
	return capability, ok
}

// Require returns the capability with the given name, or an error naming
// the missing capability and what is currently published.
func (r *Registry) Require(name string) (Capability, error) {
	capability, ok := r.caps[name]
	if !ok {
		return Capability{}, errors.Newf(
			"capability %q is not published (published: %v)", name, r.Names())
	}

	return capability, nil
}

// Names returns the names of all published capabilities, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Bind looks up a capability by name and wires it into the target using
// the binder strategy for its kind.
func (r *Registry) Bind(name string, target Target) error {
	capability, err := r.Require(name)
	if err != nil {
		return err
	}

	binder, ok := r.binders[capability.Kind]
	if !ok {
		return errors.Newf("no binder strategy registered for capability kind %q (capability %q)",
			capability.Kind, capability.Name)
	}

	if err := binder.Bind(capability, target); err != nil {
		return errors.Wrapf(err, "binding capability %q published by %s", capability.Name, capability.Publisher)
	}

	return nil
}

// MustBind is Bind for construct paths, where wiring mistakes surface as
// panics like the rest of the CDK construct tree.
func (r *Registry) MustBind(name string, target Target) {
	if err := r.Bind(name, target); err != nil {
		panic(err)
	}
}

var identRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidIdent checks a component instance identifier. Capability names
// derive from idents, so they share one vocabulary: lowercase letters,
// digits and hyphens, starting with a letter.
func ValidIdent(ident string) error {
	if !identRe.MatchString(ident) {
		return errors.Newf(
			"component ident must be lowercase alphanumeric with hyphens, got: %q", ident)
	}
	return nil
}

// MustValidIdent is ValidIdent for construct paths.
func MustValidIdent(ident string) {
	if err := ValidIdent(ident); err != nil {
		panic(err)
	}
}
