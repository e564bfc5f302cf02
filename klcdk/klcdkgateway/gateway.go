// Package klcdkgateway provides a compliance-configured REST API gateway
// component that fronts a serverless function.
//
// The gateway consumes a "<ident>.function.invoke" capability from the app
// registry and proxies all routes to it. Its stage configuration resolves
// through the five-layer precedence: the moderate-assurance tier turns on
// access logging, tracing and metrics; the high-assurance tier additionally
// forces the private endpoint type, as a policy override.
//
// The component publishes "<ident>.http.invoke" with the stage URL as its
// discovery output.
package klcdkgateway

import (
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigateway"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/cloudkeel/keel/klcdk/klcdkbind"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdk/klcdkresolve"
	"github.com/cloudkeel/keel/klcdkutil"
	"github.com/cockroachdb/errors"
	"github.com/iancoleman/strcase"
)

// Endpoint types the gateway supports.
const (
	EndpointRegional = "regional"
	EndpointPrivate  = "private"
)

// Gateway provides access to a compliance-configured REST API.
type Gateway interface {
	// Api returns the REST API.
	Api() awsapigateway.LambdaRestApi

	// Url returns the deployed stage URL token.
	Url() *string
}

// Config is the gateway configuration resolved through the layer
// precedence. Optional fields are pointers so an explicit zero survives
// merging.
type Config struct {
	// StageName is the deployment stage, e.g. "prod".
	StageName *string `yaml:"stageName,omitempty"`

	// ThrottlingRateLimit is the steady-state requests per second.
	ThrottlingRateLimit *float64 `yaml:"throttlingRateLimit,omitempty"`

	// ThrottlingBurstLimit is the maximum concurrent request burst.
	ThrottlingBurstLimit *float64 `yaml:"throttlingBurstLimit,omitempty"`

	// AccessLogging writes per-request access logs to a log group.
	AccessLogging *bool `yaml:"accessLogging,omitempty"`

	// Tracing enables X-Ray tracing on the stage.
	Tracing *bool `yaml:"tracing,omitempty"`

	// MetricsEnabled emits per-method CloudWatch metrics.
	MetricsEnabled *bool `yaml:"metricsEnabled,omitempty"`

	// EndpointType is "regional" or "private".
	EndpointType *string `yaml:"endpointType,omitempty"`
}

// Props configures the Gateway construct.
type Props struct {
	// Ident names the component instance; lowercase, e.g. "api".
	// The published capability derives from it: "api.http.invoke".
	Ident string

	// Function is the name of the function invoke capability the gateway
	// fronts, e.g. "ingest.function.invoke".
	Function string

	// Environment is the environment identifier this instance deploys
	// into, used to select from EnvironmentDefaults. Optional.
	Environment string

	// EnvironmentDefaults are per-environment configuration defaults.
	EnvironmentDefaults map[string]Config

	// Overrides is the user override configuration layer.
	Overrides Config
}

type gateway struct {
	api awsapigateway.LambdaRestApi
}

// New creates a Gateway construct fronting the named function capability
// and publishes its http capability to the app registry.
func New(scope constructs.Construct, props Props) Gateway {
	klcdkbind.MustValidIdent(props.Ident)
	scope = constructs.NewConstruct(scope, jsii.Sprintf("Gateway%s", strcase.ToCamel(props.Ident)))
	con := &gateway{}

	framework := klcdkutil.FrameworkFromScope(scope)
	cfg, err := ResolveConfig(framework, props)
	if err != nil {
		panic(err)
	}
	if err := Validate(cfg, framework); err != nil {
		panic(err)
	}

	reg := klcdkbind.RegistryFromScope(scope)
	capability, err := reg.Require(props.Function)
	if err != nil {
		panic(err)
	}

	handler, ok := capability.Resource.(awslambda.IFunction)
	if !ok {
		panic(errors.Newf("capability %q resource has unexpected type %T, need a function",
			props.Function, capability.Resource))
	}

	stage := &awsapigateway.StageOptions{
		StageName:            cfg.StageName,
		ThrottlingRateLimit:  cfg.ThrottlingRateLimit,
		ThrottlingBurstLimit: cfg.ThrottlingBurstLimit,
		TracingEnabled:       cfg.Tracing,
		MetricsEnabled:       cfg.MetricsEnabled,
	}

	if *cfg.AccessLogging {
		logs := awslogs.NewLogGroup(scope, jsii.String("AccessLogs"), &awslogs.LogGroupProps{
			Retention: awslogs.RetentionDays_THREE_MONTHS,
		})
		stage.AccessLogDestination = awsapigateway.NewLogGroupLogDestination(logs)
		stage.AccessLogFormat = awsapigateway.AccessLogFormat_JsonWithStandardFields(
			&awsapigateway.JsonWithStandardFieldProps{
				Caller:         jsii.Bool(true),
				HttpMethod:     jsii.Bool(true),
				Ip:             jsii.Bool(true),
				Protocol:       jsii.Bool(true),
				RequestTime:    jsii.Bool(true),
				ResourcePath:   jsii.Bool(true),
				ResponseLength: jsii.Bool(true),
				Status:         jsii.Bool(true),
				User:           jsii.Bool(true),
			})
	}

	endpointType := awsapigateway.EndpointType_REGIONAL
	if *cfg.EndpointType == EndpointPrivate {
		endpointType = awsapigateway.EndpointType_PRIVATE
	}

	con.api = awsapigateway.NewLambdaRestApi(scope, jsii.String("Api"), &awsapigateway.LambdaRestApiProps{
		Handler:       handler,
		DeployOptions: stage,
		EndpointConfiguration: &awsapigateway.EndpointConfiguration{
			Types: &[]awsapigateway.EndpointType{endpointType},
		},
	})

	if err := reg.Publish(klcdkbind.Capability{
		Name:      props.Ident + ".http.invoke",
		Kind:      klcdkbind.KindHTTP,
		Publisher: *scope.Node().Path(),
		Resource:  con.api,
		Outputs: map[string]*string{
			strcase.ToScreamingSnake(props.Ident) + "_API_URL": con.api.Url(),
		},
	}); err != nil {
		panic(err)
	}

	return con
}

func (g *gateway) Api() awsapigateway.LambdaRestApi { return g.api }

func (g *gateway) Url() *string { return g.api.Url() }

// ResolveConfig resolves the effective gateway configuration for a
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
		return Config{}, errors.Wrapf(err, "resolving gateway config for %q", props.Ident)
	}

	return cfg, nil
}

// FallbackConfig is the hardcoded baseline every resolution starts from.
func FallbackConfig() Config {
	return Config{
		StageName:            jsii.String("v1"),
		ThrottlingRateLimit:  jsii.Number(100),
		ThrottlingBurstLimit: jsii.Number(200),
		AccessLogging:        jsii.Bool(false),
		Tracing:              jsii.Bool(false),
		MetricsEnabled:       jsii.Bool(false),
		EndpointType:         jsii.String(EndpointRegional),
	}
}

// PlatformDefaults returns the framework tier defaults.
func PlatformDefaults(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.AccessLogging = jsii.Bool(true)
		cfg.Tracing = jsii.Bool(true)
		cfg.MetricsEnabled = jsii.Bool(true)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.EndpointType = jsii.String(EndpointPrivate)
	}

	return cfg
}

// PolicyOverrides returns tier-mandated values that user overrides must
// not weaken.
func PolicyOverrides(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.AccessLogging = jsii.Bool(true)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.EndpointType = jsii.String(EndpointPrivate)
	}

	return cfg
}

// Validate checks the resolved configuration against its bounds and the
// framework's compliance rules.
func Validate(cfg Config, framework klcdkcompliance.Framework) error {
	if cfg.EndpointType != nil {
		if v := *cfg.EndpointType; v != EndpointRegional && v != EndpointPrivate {
			return errors.Newf("endpoint type must be %q or %q, got %q",
				EndpointRegional, EndpointPrivate, v)
		}
	}

	if cfg.ThrottlingRateLimit != nil {
		if v := *cfg.ThrottlingRateLimit; v < 1 || v > 10000 {
			return errors.Newf("throttling rate limit must be within 1-10000, got %v", v)
		}
	}

	if cfg.ThrottlingBurstLimit != nil {
		if v := *cfg.ThrottlingBurstLimit; v < 1 || v > 5000 {
			return errors.Newf("throttling burst limit must be within 1-5000, got %v", v)
		}
	}

	if cfg.StageName != nil && *cfg.StageName == "" {
		return errors.New("stage name must not be empty")
	}

	return klcdkcompliance.Enforce(framework, cfg, Rules())
}

// Rules are the gateway compliance rules per tier.
func Rules() []klcdkcompliance.Rule[Config] {
	return []klcdkcompliance.Rule[Config]{
		{
			Name:        "gateway-access-logs",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.AccessLogging == nil || !*cfg.AccessLogging {
					return errors.New("stage access logging must be enabled")
				}
				return nil
			},
		},
		{
			Name:        "gateway-tracing",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.Tracing == nil || !*cfg.Tracing {
					return errors.New("stage tracing must be enabled")
				}
				return nil
			},
		},
		{
			Name:        "gateway-throttling",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.ThrottlingRateLimit == nil || cfg.ThrottlingBurstLimit == nil {
					return errors.New("stage throttling limits must be set")
				}
				return nil
			},
		},
		{
			Name:        "gateway-private-endpoint",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.EndpointType == nil || *cfg.EndpointType != EndpointPrivate {
					return errors.New("the endpoint type must be private")
				}
				return nil
			},
		},
	}
}
