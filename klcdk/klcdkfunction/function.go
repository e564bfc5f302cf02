// Package klcdkfunction provides a compliance-configured Lambda function
// component.
//
// Functions bundle Go source reproducibly through the lambda-go-alpha
// module, or ship a prebuilt asset for managed runtimes with a
// "file.function" handler. The effective configuration is resolved through
// the five-layer precedence; from moderate-assurance up the platform turns
// on tracing, environment encryption and audit-grade log retention, and at
// high-assurance those arrive as policy overrides together with a one year
// log retention floor.
//
// The component publishes "<ident>.function.invoke" and is itself a bind
// target, so queue and HTTP capabilities can be wired into it.
package klcdkfunction

import (
	"regexp"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskms"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	awslambdago "github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/cloudkeel/keel/klcdk/klcdkbind"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdk/klcdkresolve"
	"github.com/cloudkeel/keel/klcdkutil"
	"github.com/cockroachdb/errors"
	"github.com/iancoleman/strcase"
)

// Function provides access to a compliance-configured Lambda function.
type Function interface {
	klcdkbind.Target

	// Handler returns the Lambda function.
	Handler() awslambda.IFunction
}

// Config is the function configuration resolved through the layer
// precedence. Optional fields are pointers so an explicit zero survives
// merging.
type Config struct {
	// FunctionName overrides the default "{qualifier}-{ident}" name.
	FunctionName *string `yaml:"functionName,omitempty"`

	// Runtime is the managed runtime name, e.g. "python3.12". Ignored for
	// Go bundling (Entry).
	Runtime *string `yaml:"runtime,omitempty"`

	// Handler is the "file.function" handler for managed runtimes.
	// Mutually exclusive with Entry.
	Handler *string `yaml:"handler,omitempty"`

	// Entry is the Go source directory bundled into the function.
	// Mutually exclusive with Handler.
	Entry *string `yaml:"entry,omitempty"`

	// MemoryMB is the memory allocation. Bounds: 128 to 10240.
	MemoryMB *float64 `yaml:"memoryMB,omitempty"`

	// TimeoutSeconds is the invocation timeout. Bounds: 1 to 900.
	TimeoutSeconds *float64 `yaml:"timeoutSeconds,omitempty"`

	// Environment are static environment variables. Bound capabilities
	// inject their discovery variables on top.
	Environment map[string]*string `yaml:"environment,omitempty"`

	// Tracing enables X-Ray active tracing.
	Tracing *bool `yaml:"tracing,omitempty"`

	// EncryptEnvironment encrypts environment variables with a dedicated
	// KMS key.
	EncryptEnvironment *bool `yaml:"encryptEnvironment,omitempty"`

	// LogRetentionDays is the log group retention. Must be one of the
	// CloudWatch-supported values (7, 14, 30, 60, 90, 180, 365, 731).
	LogRetentionDays *float64 `yaml:"logRetentionDays,omitempty"`

	// ReservedConcurrency caps and guarantees concurrent executions.
	ReservedConcurrency *float64 `yaml:"reservedConcurrency,omitempty"`
}

// Props configures the Function construct.
type Props struct {
	// Ident names the component instance; lowercase, e.g. "ingest".
	// The invoke capability derives from it: "ingest.function.invoke".
	Ident string

	// CodeDir is the asset directory for managed runtimes. Required when
	// the resolved config uses Handler instead of Entry.
	CodeDir string

	// Environment is the environment identifier this instance deploys
	// into, used to select from EnvironmentDefaults. Optional.
	Environment string

	// EnvironmentDefaults are per-environment configuration defaults.
	EnvironmentDefaults map[string]Config

	// Overrides is the user override configuration layer.
	Overrides Config

	// Binds are capability names wired into this function after creation,
	// e.g. "orders.queue.send".
	Binds []string
}

type function struct {
	fn awslambda.Function
}

// New creates a Function construct, publishes its invoke capability and
// binds the requested capabilities into it.
func New(scope constructs.Construct, props Props) Function {
	klcdkbind.MustValidIdent(props.Ident)
	scope = constructs.NewConstruct(scope, jsii.Sprintf("Function%s", strcase.ToCamel(props.Ident)))
	con := &function{}

	framework := klcdkutil.FrameworkFromScope(scope)
	cfg, err := ResolveConfig(framework, props)
	if err != nil {
		panic(err)
	}
	if err := Validate(cfg, framework); err != nil {
		panic(err)
	}

	functionName := cfg.FunctionName
	if functionName == nil {
		functionName = jsii.Sprintf("%s-%s", klcdkutil.Qualifier(scope), props.Ident)
	}

	var envKey awskms.IKey
	if *cfg.EncryptEnvironment {
		envKey = awskms.NewKey(scope, jsii.String("EnvironmentKey"), &awskms.KeyProps{
			EnableKeyRotation: jsii.Bool(true),
			Description:       jsii.Sprintf("environment encryption key for function %s", *functionName),
		})
	}

	tracing := awslambda.Tracing_DISABLED
	if *cfg.Tracing {
		tracing = awslambda.Tracing_ACTIVE
	}

	logGroup := awslogs.NewLogGroup(scope, jsii.String("Logs"), &awslogs.LogGroupProps{
		Retention:     retentionFromDays(*cfg.LogRetentionDays),
		RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
	})

	if cfg.Entry != nil {
		con.fn = awslambdago.NewGoFunction(scope, jsii.String("Function"), &awslambdago.GoFunctionProps{
			FunctionName:                 functionName,
			Entry:                        cfg.Entry,
			Bundling:                     klcdkutil.ReproducibleGoBundling(),
			MemorySize:                   cfg.MemoryMB,
			Timeout:                      awscdk.Duration_Seconds(cfg.TimeoutSeconds),
			Environment:                  &cfg.Environment,
			EnvironmentEncryption:        envKey,
			Tracing:                      tracing,
			LogGroup:                     logGroup,
			ReservedConcurrentExecutions: cfg.ReservedConcurrency,
		})
	} else {
		con.fn = awslambda.NewFunction(scope, jsii.String("Function"), &awslambda.FunctionProps{
			FunctionName:                 functionName,
			Runtime:                      runtimeFromName(*cfg.Runtime),
			Handler:                      cfg.Handler,
			Code:                         awslambda.Code_FromAsset(jsii.String(props.CodeDir), nil),
			MemorySize:                   cfg.MemoryMB,
			Timeout:                      awscdk.Duration_Seconds(cfg.TimeoutSeconds),
			Environment:                  &cfg.Environment,
			EnvironmentEncryption:        envKey,
			Tracing:                      tracing,
			LogGroup:                     logGroup,
			ReservedConcurrentExecutions: cfg.ReservedConcurrency,
		})
	}

	reg := klcdkbind.RegistryFromScope(scope)
	if err := reg.Publish(klcdkbind.Capability{
		Name:      props.Ident + ".function.invoke",
		Kind:      klcdkbind.KindFunction,
		Publisher: *scope.Node().Path(),
		Resource:  con.fn,
		Outputs: map[string]*string{
			strcase.ToScreamingSnake(props.Ident) + "_FUNCTION_ARN": con.fn.FunctionArn(),
		},
	}); err != nil {
		panic(err)
	}

	for _, name := range props.Binds {
		reg.MustBind(name, con)
	}

	return con
}

func (f *function) Handler() awslambda.IFunction { return f.fn }

func (f *function) Grantee() awsiam.IGrantable { return f.fn }

func (f *function) AddDiscoveryEnv(name string, value *string) {
	f.fn.AddEnvironment(jsii.String(name), value, nil)
}

// handlerRe matches the "file.function" handler format of managed
// runtimes, allowing directory prefixes.
var handlerRe = regexp.MustCompile(`^[A-Za-z0-9_\-/]+\.[A-Za-z0-9_]+$`)

var knownRuntimes = map[string]func() awslambda.Runtime{
	"python3.12":      awslambda.Runtime_PYTHON_3_12,
	"python3.13":      awslambda.Runtime_PYTHON_3_13,
	"nodejs20.x":      awslambda.Runtime_NODEJS_20_X,
	"nodejs22.x":      awslambda.Runtime_NODEJS_22_X,
	"java21":          awslambda.Runtime_JAVA_21,
	"provided.al2023": awslambda.Runtime_PROVIDED_AL2023,
}

func runtimeFromName(name string) awslambda.Runtime {
	factory, ok := knownRuntimes[name]
	if !ok {
		panic("unknown runtime: " + name)
	}
	return factory()
}

var supportedRetentionDays = map[float64]func() awslogs.RetentionDays{
	7:   func() awslogs.RetentionDays { return awslogs.RetentionDays_ONE_WEEK },
	14:  func() awslogs.RetentionDays { return awslogs.RetentionDays_TWO_WEEKS },
	30:  func() awslogs.RetentionDays { return awslogs.RetentionDays_ONE_MONTH },
	60:  func() awslogs.RetentionDays { return awslogs.RetentionDays_TWO_MONTHS },
	90:  func() awslogs.RetentionDays { return awslogs.RetentionDays_THREE_MONTHS },
	180: func() awslogs.RetentionDays { return awslogs.RetentionDays_SIX_MONTHS },
	365: func() awslogs.RetentionDays { return awslogs.RetentionDays_ONE_YEAR },
	731: func() awslogs.RetentionDays { return awslogs.RetentionDays_TWO_YEARS },
}

func retentionFromDays(days float64) awslogs.RetentionDays {
	factory, ok := supportedRetentionDays[days]
	if !ok {
		panic(errors.Newf("unsupported log retention: %v days", days))
	}
	return factory()
}

// ResolveConfig resolves the effective function configuration for a
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
		return Config{}, errors.Wrapf(err, "resolving function config for %q", props.Ident)
	}

	return cfg, nil
}

// FallbackConfig is the hardcoded baseline every resolution starts from.
func FallbackConfig() Config {
	return Config{
		MemoryMB:           jsii.Number(128),
		TimeoutSeconds:     jsii.Number(30),
		Tracing:            jsii.Bool(false),
		EncryptEnvironment: jsii.Bool(false),
		LogRetentionDays:   jsii.Number(14),
	}
}

// PlatformDefaults returns the framework tier defaults.
func PlatformDefaults(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.Tracing = jsii.Bool(true)
		cfg.EncryptEnvironment = jsii.Bool(true)
		cfg.LogRetentionDays = jsii.Number(90)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.LogRetentionDays = jsii.Number(365)
		cfg.ReservedConcurrency = jsii.Number(10)
	}

	return cfg
}

// PolicyOverrides returns tier-mandated values that user overrides must
// not weaken.
func PolicyOverrides(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.Tracing = jsii.Bool(true)
		cfg.EncryptEnvironment = jsii.Bool(true)
		cfg.LogRetentionDays = jsii.Number(365)
	}

	return cfg
}

// Validate checks the resolved configuration against its bounds and the
// framework's compliance rules.
func Validate(cfg Config, framework klcdkcompliance.Framework) error {
	if cfg.Entry != nil && cfg.Handler != nil {
		return errors.New("entry (Go bundling) and handler (managed runtime) are mutually exclusive")
	}
	if cfg.Entry == nil && cfg.Handler == nil {
		return errors.New("either entry (Go bundling) or handler (managed runtime) must be set")
	}

	if cfg.Handler != nil {
		if !handlerRe.MatchString(*cfg.Handler) {
			return errors.Newf("handler %q must use the file.function format", *cfg.Handler)
		}
		if cfg.Runtime == nil {
			return errors.New("runtime is required for handler-based functions")
		}
		if _, ok := knownRuntimes[*cfg.Runtime]; !ok {
			return errors.Newf("unknown runtime %q", *cfg.Runtime)
		}
	}

	if cfg.MemoryMB != nil {
		if v := *cfg.MemoryMB; v < 128 || v > 10240 {
			return errors.Newf("memory must be within 128-10240 MB, got %v", v)
		}
	}

	if cfg.TimeoutSeconds != nil {
		if v := *cfg.TimeoutSeconds; v < 1 || v > 900 {
			return errors.Newf("timeout must be within 1-900 seconds, got %v", v)
		}
	}

	if cfg.LogRetentionDays != nil {
		if _, ok := supportedRetentionDays[*cfg.LogRetentionDays]; !ok {
			return errors.Newf("unsupported log retention: %v days", *cfg.LogRetentionDays)
		}
	}

	if cfg.ReservedConcurrency != nil && *cfg.ReservedConcurrency < 0 {
		return errors.Newf("reserved concurrency must not be negative, got %v", *cfg.ReservedConcurrency)
	}

	return klcdkcompliance.Enforce(framework, cfg, Rules())
}

// Rules are the function compliance rules per tier.
func Rules() []klcdkcompliance.Rule[Config] {
	return []klcdkcompliance.Rule[Config]{
		{
			Name:        "function-tracing",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.Tracing == nil || !*cfg.Tracing {
					return errors.New("X-Ray tracing must be active")
				}
				return nil
			},
		},
		{
			Name:        "function-env-encryption",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.EncryptEnvironment == nil || !*cfg.EncryptEnvironment {
					return errors.New("environment variables must be KMS encrypted")
				}
				return nil
			},
		},
		{
			Name:        "function-log-retention",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.LogRetentionDays == nil || *cfg.LogRetentionDays < 90 {
					return errors.New("log retention must be at least 90 days")
				}
				return nil
			},
		},
		{
			Name:        "function-log-retention-audit",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.LogRetentionDays == nil || *cfg.LogRetentionDays < 365 {
					return errors.New("log retention must be at least one year")
				}
				return nil
			},
		},
		{
			Name:        "function-reserved-concurrency",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.ReservedConcurrency == nil || *cfg.ReservedConcurrency < 1 {
					return errors.New("reserved concurrency must be set to guarantee capacity")
				}
				return nil
			},
		},
	}
}
