// Package klcdkscaling provides a compliance-configured autoscaling group
// component for container-less worker fleets.
//
// The group consumes a "<ident>.network.placement" capability and places
// its instances into the network's workload subnets. Capacity and instance
// settings resolve through the five-layer precedence: the moderate-assurance
// tier mandates IMDSv2 and detailed monitoring; the high-assurance tier
// additionally requires at least two instances and encrypted root volumes.
//
// The group is a bind target, so workers can receive queue and function
// capabilities through the registry like any other consumer.
package klcdkscaling

import (
	"regexp"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsautoscaling"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/cloudkeel/keel/klcdk/klcdkbind"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdk/klcdknetwork"
	"github.com/cloudkeel/keel/klcdk/klcdkresolve"
	"github.com/cloudkeel/keel/klcdkutil"
	"github.com/cockroachdb/errors"
	"github.com/iancoleman/strcase"
)

// Scaling provides access to a compliance-configured autoscaling group.
type Scaling interface {
	klcdkbind.Target

	// Group returns the autoscaling group.
	Group() awsautoscaling.AutoScalingGroup
}

// Config is the autoscaling configuration resolved through the layer
// precedence. Optional fields are pointers so an explicit zero survives
// merging.
type Config struct {
	// InstanceType is the EC2 instance type, e.g. "t3.small".
	InstanceType *string `yaml:"instanceType,omitempty"`

	// MinCapacity is the minimum number of instances.
	MinCapacity *float64 `yaml:"minCapacity,omitempty"`

	// MaxCapacity is the maximum number of instances.
	MaxCapacity *float64 `yaml:"maxCapacity,omitempty"`

	// DesiredCapacity is the initial number of instances. Optional; when
	// unset the group starts at MinCapacity.
	DesiredCapacity *float64 `yaml:"desiredCapacity,omitempty"`

	// DetailedMonitoring enables one-minute CloudWatch metrics.
	DetailedMonitoring *bool `yaml:"detailedMonitoring,omitempty"`

	// RequireImdsv2 enforces session-token instance metadata access.
	RequireImdsv2 *bool `yaml:"requireImdsv2,omitempty"`

	// HealthCheckGraceSeconds is the warmup before health checks count.
	// Bounds: 0 to 3600.
	HealthCheckGraceSeconds *float64 `yaml:"healthCheckGraceSeconds,omitempty"`

	// EncryptRootVolume encrypts the instance root EBS volume.
	EncryptRootVolume *bool `yaml:"encryptRootVolume,omitempty"`

	// RollingUpdate replaces instances in batches on template changes
	// instead of all at once.
	RollingUpdate *bool `yaml:"rollingUpdate,omitempty"`
}

// Props configures the Scaling construct.
type Props struct {
	// Ident names the component instance; lowercase, e.g. "workers".
	Ident string

	// Network is the name of the network placement capability the group
	// deploys into, e.g. "core.network.placement".
	Network string

	// Environment is the environment identifier this instance deploys
	// into, used to select from EnvironmentDefaults. Optional.
	Environment string

	// EnvironmentDefaults are per-environment configuration defaults.
	EnvironmentDefaults map[string]Config

	// Overrides is the user override configuration layer.
	Overrides Config

	// Binds are capability names wired into the instances on creation,
	// e.g. "orders.queue.consume".
	Binds []string
}

type scaling struct {
	asg awsautoscaling.AutoScalingGroup
}

// New creates a Scaling construct placed into the named network capability
// and binds the requested capabilities to its instances.
func New(scope constructs.Construct, props Props) Scaling {
	klcdkbind.MustValidIdent(props.Ident)
	scope = constructs.NewConstruct(scope, jsii.Sprintf("Scaling%s", strcase.ToCamel(props.Ident)))
	con := &scaling{}

	framework := klcdkutil.FrameworkFromScope(scope)
	cfg, err := ResolveConfig(framework, props)
	if err != nil {
		panic(err)
	}
	if err := Validate(cfg, framework); err != nil {
		panic(err)
	}

	reg := klcdkbind.RegistryFromScope(scope)
	placement, err := klcdknetwork.RequirePlacement(reg, props.Network)
	if err != nil {
		panic(err)
	}

	var grace awscdk.Duration
	if cfg.HealthCheckGraceSeconds != nil {
		grace = awscdk.Duration_Seconds(cfg.HealthCheckGraceSeconds)
	}

	var updatePolicy awsautoscaling.UpdatePolicy
	if *cfg.RollingUpdate {
		updatePolicy = awsautoscaling.UpdatePolicy_RollingUpdate(nil)
	}

	monitoring := awsautoscaling.Monitoring_BASIC
	if *cfg.DetailedMonitoring {
		monitoring = awsautoscaling.Monitoring_DETAILED
	}

	con.asg = awsautoscaling.NewAutoScalingGroup(scope, jsii.String("Group"), &awsautoscaling.AutoScalingGroupProps{
		Vpc:                placement.Vpc,
		VpcSubnets:         placement.Subnets,
		InstanceType:       awsec2.NewInstanceType(cfg.InstanceType),
		MachineImage:       awsec2.MachineImage_LatestAmazonLinux2023(nil),
		MinCapacity:        cfg.MinCapacity,
		MaxCapacity:        cfg.MaxCapacity,
		DesiredCapacity:    cfg.DesiredCapacity,
		RequireImdsv2:      cfg.RequireImdsv2,
		InstanceMonitoring: monitoring,
		HealthCheck: awsautoscaling.HealthCheck_Ec2(&awsautoscaling.Ec2HealthCheckOptions{
			Grace: grace,
		}),
		UpdatePolicy: updatePolicy,
		BlockDevices: &[]*awsautoscaling.BlockDevice{{
			DeviceName: jsii.String("/dev/xvda"),
			Volume: awsautoscaling.BlockDeviceVolume_Ebs(jsii.Number(30), &awsautoscaling.EbsDeviceOptions{
				Encrypted:  cfg.EncryptRootVolume,
				VolumeType: awsautoscaling.EbsDeviceVolumeType_GP3,
			}),
		}},
	})

	for _, name := range props.Binds {
		reg.MustBind(name, con)
	}

	return con
}

func (s *scaling) Group() awsautoscaling.AutoScalingGroup { return s.asg }

// Grantee implements klcdkbind.Target. Grants land on the instance role.
func (s *scaling) Grantee() awsiam.IGrantable { return s.asg }

// AddDiscoveryEnv implements klcdkbind.Target. Discovery values are
// exported to the instances through a profile script in user data.
func (s *scaling) AddDiscoveryEnv(name string, value *string) {
	s.asg.AddUserData(jsii.Sprintf(
		"echo 'export %s=%s' >> /etc/profile.d/discovery.sh", name, *value))
}

// ResolveConfig resolves the effective autoscaling configuration for a
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
		return Config{}, errors.Wrapf(err, "resolving autoscaling config for %q", props.Ident)
	}

	return cfg, nil
}

// FallbackConfig is the hardcoded baseline every resolution starts from.
func FallbackConfig() Config {
	return Config{
		InstanceType:            jsii.String("t3.small"),
		MinCapacity:             jsii.Number(1),
		MaxCapacity:             jsii.Number(2),
		DetailedMonitoring:      jsii.Bool(false),
		RequireImdsv2:           jsii.Bool(false),
		HealthCheckGraceSeconds: jsii.Number(300),
		EncryptRootVolume:       jsii.Bool(false),
		RollingUpdate:           jsii.Bool(true),
	}
}

// PlatformDefaults returns the framework tier defaults.
func PlatformDefaults(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.RequireImdsv2 = jsii.Bool(true)
		cfg.DetailedMonitoring = jsii.Bool(true)
		cfg.EncryptRootVolume = jsii.Bool(true)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.MinCapacity = jsii.Number(2)
		cfg.MaxCapacity = jsii.Number(4)
	}

	return cfg
}

// PolicyOverrides returns tier-mandated values that user overrides must
// not weaken. Minimum capacity stays a rule rather than a pin so users can
// still raise it.
func PolicyOverrides(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.RequireImdsv2 = jsii.Bool(true)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.EncryptRootVolume = jsii.Bool(true)
	}

	return cfg
}

var instanceTypeRe = regexp.MustCompile(`^[a-z][a-z0-9-]*\.[a-z0-9]+$`)

// Validate checks the resolved configuration against its bounds and the
// framework's compliance rules.
func Validate(cfg Config, framework klcdkcompliance.Framework) error {
	if cfg.InstanceType != nil && !instanceTypeRe.MatchString(*cfg.InstanceType) {
		return errors.Newf("invalid instance type %q, expect e.g. t3.small", *cfg.InstanceType)
	}

	if cfg.MinCapacity != nil && *cfg.MinCapacity < 0 {
		return errors.Newf("minimum capacity must not be negative, got %v", *cfg.MinCapacity)
	}

	if cfg.MinCapacity != nil && cfg.MaxCapacity != nil && *cfg.MaxCapacity < *cfg.MinCapacity {
		return errors.Newf("maximum capacity %v is below minimum capacity %v",
			*cfg.MaxCapacity, *cfg.MinCapacity)
	}

	if cfg.DesiredCapacity != nil {
		if cfg.MinCapacity != nil && *cfg.DesiredCapacity < *cfg.MinCapacity {
			return errors.Newf("desired capacity %v is below minimum capacity %v",
				*cfg.DesiredCapacity, *cfg.MinCapacity)
		}
		if cfg.MaxCapacity != nil && *cfg.DesiredCapacity > *cfg.MaxCapacity {
			return errors.Newf("desired capacity %v exceeds maximum capacity %v",
				*cfg.DesiredCapacity, *cfg.MaxCapacity)
		}
	}

	if cfg.HealthCheckGraceSeconds != nil {
		if v := *cfg.HealthCheckGraceSeconds; v < 0 || v > 3600 {
			return errors.Newf("health check grace must be within 0-3600 seconds, got %v", v)
		}
	}

	return klcdkcompliance.Enforce(framework, cfg, Rules())
}

// Rules are the autoscaling compliance rules per tier.
func Rules() []klcdkcompliance.Rule[Config] {
	return []klcdkcompliance.Rule[Config]{
		{
			Name:        "scaling-imdsv2",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.RequireImdsv2 == nil || !*cfg.RequireImdsv2 {
					return errors.New("IMDSv2 must be required on instances")
				}
				return nil
			},
		},
		{
			Name:        "scaling-detailed-monitoring",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.DetailedMonitoring == nil || !*cfg.DetailedMonitoring {
					return errors.New("detailed instance monitoring must be enabled")
				}
				return nil
			},
		},
		{
			Name:        "scaling-min-capacity",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.MinCapacity == nil || *cfg.MinCapacity < 2 {
					return errors.New("at least two instances are required")
				}
				return nil
			},
		},
		{
			Name:        "scaling-root-encryption",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.EncryptRootVolume == nil || !*cfg.EncryptRootVolume {
					return errors.New("root volumes must be encrypted")
				}
				return nil
			},
		},
	}
}
