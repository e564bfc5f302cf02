package klcdkutil

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/cloudkeel/keel/klcdk/klcdkbind"
)

// SharedConstructor creates shared infrastructure in a given stack.
// It returns the shared construct that will be passed to environment constructors.
type SharedConstructor[S any] func(stack awscdk.Stack) S

// EnvironmentConstructor creates environment-specific infrastructure in a given stack.
// It receives the shared construct from the same region and the environment identifier.
type EnvironmentConstructor[S any] func(stack awscdk.Stack, shared S, environmentIdent string)

// AppConfig configures the CDK app setup.
type AppConfig struct {
	// Prefix for context keys (e.g., "myapp-" for "myapp-qualifier", "myapp-framework", etc.)
	Prefix string
	// OperatorsGroup is the IAM group that can deploy to all environments.
	OperatorsGroup string
	// RestrictedEnvironments are environment identifiers that require OperatorsGroup membership.
	RestrictedEnvironments []string
}

// SetupApp configures a CDK app with multi-region, multi-environment stacks
// under a single compliance framework tier.
//
// It validates all context upfront, stores the Config and the capability
// registry in the construct tree, and creates:
//  1. A primary shared stack using the SharedConstructor
//  2. Secondary shared stacks for each secondary region (dependent on primary)
//  3. Environment stacks for each allowed environment in the primary region
//  4. Secondary environment stacks for each secondary region (dependent on primary environment)
//
// The type parameter S represents the shared construct type returned by SharedConstructor.
func SetupApp[S any](
	app awscdk.App,
	cfg AppConfig,
	newShared SharedConstructor[S],
	newEnvironment EnvironmentConstructor[S],
) {
	config, err := NewConfig(app, cfg)
	if err != nil {
		panic(err)
	}
	StoreConfig(app, config)
	klcdkbind.StoreRegistry(app, klcdkbind.NewRegistry())

	// Create shared primary region stack first
	primarySharedStack := NewStackFromConfig(app, config, config.PrimaryRegion)
	primaryShared := newShared(primarySharedStack)

	// Create secondary shared region stacks with dependency on primary
	secondaryShared := map[string]S{}
	for _, region := range config.SecondaryRegions {
		secondarySharedStack := NewStackFromConfig(app, config, region)
		secondaryShared[region] = newShared(secondarySharedStack)
		secondarySharedStack.AddDependency(primarySharedStack, jsii.String("Primary region must deploy first"))
	}

	// Create stacks for each allowed environment
	for _, environmentIdent := range config.AllowedEnvironments() {
		primaryEnvironmentStack := NewStackFromConfig(app, config, config.PrimaryRegion, environmentIdent)
		newEnvironment(primaryEnvironmentStack, primaryShared, environmentIdent)
		primaryEnvironmentStack.AddDependency(primarySharedStack,
			jsii.String("Primary shared stack must deploy first"))

		// Secondary region stacks for each environment
		for _, region := range config.SecondaryRegions {
			secondaryEnvironmentStack := NewStackFromConfig(app, config, region, environmentIdent)
			newEnvironment(secondaryEnvironmentStack, secondaryShared[region], environmentIdent)
			secondaryEnvironmentStack.AddDependency(primaryEnvironmentStack,
				jsii.String("Primary region environment must deploy first"))
		}
	}
}
