// Package klcdknetwork provides a compliance-configured VPC component.
//
// The virtual network resolves its topology through the five-layer
// precedence. The moderate-assurance tier turns flow logs on; the
// high-assurance tier additionally forbids public subnets and pins
// three availability zones, as policy overrides.
//
// The component publishes "<ident>.network.placement" whose resource is a
// Placement other components consume structurally to place workloads into
// the private subnets.
package klcdknetwork

import (
	"net"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/cloudkeel/keel/klcdk/klcdkbind"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdk/klcdkresolve"
	"github.com/cloudkeel/keel/klcdkutil"
	"github.com/cockroachdb/errors"
	"github.com/iancoleman/strcase"
)

// VpcIDOutputKey is the CloudFormation output key for the VPC id.
const VpcIDOutputKey = "VpcId"

// Network provides access to a compliance-configured VPC.
type Network interface {
	// Vpc returns the VPC.
	Vpc() awsec2.IVpc

	// Placement returns the workload placement into this network.
	Placement() Placement
}

// Placement is the structural handle consumers use to place workloads.
type Placement struct {
	Vpc     awsec2.IVpc
	Subnets *awsec2.SubnetSelection
}

// Config is the network configuration resolved through the layer
// precedence. Optional fields are pointers so an explicit zero survives
// merging.
type Config struct {
	// CidrBlock is the VPC CIDR, /16 to /24.
	CidrBlock *string `yaml:"cidrBlock,omitempty"`

	// AzCount is the number of availability zones. Bounds: 1 to 3.
	AzCount *float64 `yaml:"azCount,omitempty"`

	// NatGateways is the number of NAT gateways. Requires public subnets.
	NatGateways *float64 `yaml:"natGateways,omitempty"`

	// PublicSubnets allows internet-facing subnets in the topology.
	PublicSubnets *bool `yaml:"publicSubnets,omitempty"`

	// FlowLogs captures all VPC traffic metadata to CloudWatch.
	FlowLogs *bool `yaml:"flowLogs,omitempty"`

	// GatewayEndpoints are AWS service gateway endpoints to create,
	// "s3" and "dynamodb".
	GatewayEndpoints []string `yaml:"gatewayEndpoints,omitempty"`
}

// Props configures the Network construct.
type Props struct {
	// Ident names the component instance; lowercase, e.g. "core".
	// The placement capability derives from it: "core.network.placement".
	Ident string

	// Environment is the environment identifier this instance deploys
	// into, used to select from EnvironmentDefaults. Optional.
	Environment string

	// EnvironmentDefaults are per-environment configuration defaults.
	EnvironmentDefaults map[string]Config

	// Overrides is the user override configuration layer.
	Overrides Config
}

type network struct {
	vpc       awsec2.IVpc
	placement Placement
}

// New creates a Network construct and publishes its placement capability.
func New(scope constructs.Construct, props Props) Network {
	klcdkbind.MustValidIdent(props.Ident)
	scope = constructs.NewConstruct(scope, jsii.Sprintf("Network%s", strcase.ToCamel(props.Ident)))
	con := &network{}

	framework := klcdkutil.FrameworkFromScope(scope)
	cfg, err := ResolveConfig(framework, props)
	if err != nil {
		panic(err)
	}
	if err := Validate(cfg, framework); err != nil {
		panic(err)
	}

	workloadSubnetType := awsec2.SubnetType_PRIVATE_ISOLATED
	subnetConfig := []*awsec2.SubnetConfiguration{}
	natGateways := jsii.Number(0)

	if *cfg.PublicSubnets {
		workloadSubnetType = awsec2.SubnetType_PRIVATE_WITH_EGRESS
		natGateways = cfg.NatGateways
		subnetConfig = append(subnetConfig,
			&awsec2.SubnetConfiguration{
				Name:       jsii.String("Public"),
				SubnetType: awsec2.SubnetType_PUBLIC,
			},
			&awsec2.SubnetConfiguration{
				Name:       jsii.String("Workload"),
				SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
			})
	} else {
		subnetConfig = append(subnetConfig, &awsec2.SubnetConfiguration{
			Name:       jsii.String("Workload"),
			SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
		})
	}

	con.vpc = awsec2.NewVpc(scope, jsii.String("Vpc"), &awsec2.VpcProps{
		IpAddresses:         awsec2.IpAddresses_Cidr(cfg.CidrBlock),
		MaxAzs:              cfg.AzCount,
		NatGateways:         natGateways,
		SubnetConfiguration: &subnetConfig,
	})

	if *cfg.FlowLogs {
		con.vpc.AddFlowLog(jsii.String("FlowLog"), &awsec2.FlowLogOptions{
			TrafficType: awsec2.FlowLogTrafficType_ALL,
		})
	}

	for _, endpoint := range cfg.GatewayEndpoints {
		switch endpoint {
		case "s3":
			con.vpc.AddGatewayEndpoint(jsii.String("S3Endpoint"), &awsec2.GatewayVpcEndpointOptions{
				Service: awsec2.GatewayVpcEndpointAwsService_S3(),
			})
		case "dynamodb":
			con.vpc.AddGatewayEndpoint(jsii.String("DynamoDbEndpoint"), &awsec2.GatewayVpcEndpointOptions{
				Service: awsec2.GatewayVpcEndpointAwsService_DYNAMODB(),
			})
		}
	}

	con.placement = Placement{
		Vpc:     con.vpc,
		Subnets: &awsec2.SubnetSelection{SubnetType: workloadSubnetType},
	}

	awscdk.NewCfnOutput(awscdk.Stack_Of(scope), jsii.String(VpcIDOutputKey), &awscdk.CfnOutputProps{
		Value:       con.vpc.VpcId(),
		Description: jsii.String("VPC id of the workload network"),
	})

	reg := klcdkbind.RegistryFromScope(scope)
	if err := reg.Publish(klcdkbind.Capability{
		Name:      props.Ident + ".network.placement",
		Kind:      klcdkbind.KindNetwork,
		Publisher: *scope.Node().Path(),
		Resource:  con.placement,
	}); err != nil {
		panic(err)
	}

	return con
}

func (n *network) Vpc() awsec2.IVpc { return n.vpc }

func (n *network) Placement() Placement { return n.placement }

// RequirePlacement looks up a placement capability and returns its typed
// resource. Placement is consumed structurally, not through a binder.
func RequirePlacement(reg *klcdkbind.Registry, name string) (Placement, error) {
	capability, err := reg.Require(name)
	if err != nil {
		return Placement{}, err
	}

	placement, ok := capability.Resource.(Placement)
	if !ok {
		return Placement{}, errors.Newf(
			"capability %q resource has unexpected type %T", name, capability.Resource)
	}

	return placement, nil
}

// ResolveConfig resolves the effective network configuration for a
// framework tier through the five-layer precedence.
func ResolveConfig(framework klcdkcompliance.Framework, props Props) (Config, error) {
	layers := klcdkresolve.Layers[Config]{
		Fallback:           FallbackConfig(),
		PlatformDefault:    PlatformDefaults(framework),
		EnvironmentDefault: props.EnvironmentDefaults[props.Environment],
		UserOverride:       props.Overrides,
		PolicyOverride:     PolicyOverrides(framework),
	}

	cfg, err := layers.Resolve()
	if err != nil {
		return Config{}, errors.Wrapf(err, "resolving network config for %q", props.Ident)
	}

	return cfg, nil
}

// FallbackConfig is the hardcoded baseline every resolution starts from.
func FallbackConfig() Config {
	return Config{
		CidrBlock:     jsii.String("10.0.0.0/16"),
		AzCount:       jsii.Number(2),
		NatGateways:   jsii.Number(1),
		PublicSubnets: jsii.Bool(true),
		FlowLogs:      jsii.Bool(false),
	}
}

// PlatformDefaults returns the framework tier defaults.
func PlatformDefaults(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.FlowLogs = jsii.Bool(true)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.AzCount = jsii.Number(3)
		cfg.PublicSubnets = jsii.Bool(false)
		cfg.NatGateways = jsii.Number(0)
		cfg.GatewayEndpoints = []string{"s3", "dynamodb"}
	}

	return cfg
}

// PolicyOverrides returns tier-mandated values that user overrides must
// not weaken.
func PolicyOverrides(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.FlowLogs = jsii.Bool(true)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.AzCount = jsii.Number(3)
		cfg.PublicSubnets = jsii.Bool(false)
		cfg.NatGateways = jsii.Number(0)
	}

	return cfg
}

// Validate checks the resolved configuration against its bounds and the
// framework's compliance rules.
func Validate(cfg Config, framework klcdkcompliance.Framework) error {
	if cfg.CidrBlock != nil {
		_, ipNet, err := net.ParseCIDR(*cfg.CidrBlock)
		if err != nil {
			return errors.Wrapf(err, "invalid CIDR block %q", *cfg.CidrBlock)
		}
		if ones, _ := ipNet.Mask.Size(); ones < 16 || ones > 24 {
			return errors.Newf("CIDR block mask must be within /16-/24, got /%d", ones)
		}
	}

	if cfg.AzCount != nil {
		if v := *cfg.AzCount; v < 1 || v > 3 {
			return errors.Newf("availability zone count must be within 1-3, got %v", v)
		}
	}

	if cfg.NatGateways != nil && cfg.AzCount != nil && *cfg.NatGateways > *cfg.AzCount {
		return errors.Newf("NAT gateway count %v exceeds availability zone count %v",
			*cfg.NatGateways, *cfg.AzCount)
	}

	if cfg.NatGateways != nil && *cfg.NatGateways > 0 &&
		cfg.PublicSubnets != nil && !*cfg.PublicSubnets {
		return errors.New("NAT gateways require public subnets")
	}

	for _, endpoint := range cfg.GatewayEndpoints {
		if endpoint != "s3" && endpoint != "dynamodb" {
			return errors.Newf("unknown gateway endpoint %q (expected s3 or dynamodb)", endpoint)
		}
	}

	return klcdkcompliance.Enforce(framework, cfg, Rules())
}

// Rules are the network compliance rules per tier.
func Rules() []klcdkcompliance.Rule[Config] {
	return []klcdkcompliance.Rule[Config]{
		{
			Name:        "network-flow-logs",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.FlowLogs == nil || !*cfg.FlowLogs {
					return errors.New("VPC flow logs must be enabled")
				}
				return nil
			},
		},
		{
			Name:        "network-no-public-subnets",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.PublicSubnets != nil && *cfg.PublicSubnets {
					return errors.New("public subnets are forbidden")
				}
				return nil
			},
		},
		{
			Name:        "network-multi-az",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.AzCount == nil || *cfg.AzCount < 3 {
					return errors.New("three availability zones are required")
				}
				return nil
			},
		},
	}
}
