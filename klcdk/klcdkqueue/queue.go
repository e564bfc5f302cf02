// Package klcdkqueue provides a compliance-configured SQS queue component.
//
// The queue's effective configuration is resolved through the five-layer
// precedence (fallback, platform default, environment default, user
// override, policy override). From the moderate-assurance tier up the
// platform mandates customer-managed encryption, a dead-letter queue and
// TLS-only access; the high-assurance tier additionally pins maximum
// retention and a tight receive count, as policy overrides.
//
// The component publishes "<ident>.queue.send" and "<ident>.queue.consume"
// capabilities so other components can wire into it.
package klcdkqueue

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskms"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssqs"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/cloudkeel/keel/klcdk/klcdkbind"
	"github.com/cloudkeel/keel/klcdk/klcdkcompliance"
	"github.com/cloudkeel/keel/klcdk/klcdkresolve"
	"github.com/cloudkeel/keel/klcdkutil"
	"github.com/cockroachdb/errors"
	"github.com/iancoleman/strcase"
)

// Queue provides access to a compliance-configured SQS queue.
type Queue interface {
	// Queue returns the main queue.
	Queue() awssqs.IQueue

	// DeadLetterQueue returns the dead-letter queue, or nil when the
	// resolved configuration disables it.
	DeadLetterQueue() awssqs.IQueue
}

// Config is the queue configuration resolved through the layer precedence.
// Optional fields are pointers so an explicit zero survives merging.
type Config struct {
	// QueueName overrides the default "{qualifier}-{ident}" name.
	QueueName *string `yaml:"queueName,omitempty"`

	// VisibilityTimeoutSeconds is how long a received message stays
	// hidden from other consumers. Bounds: 0 to 43200.
	VisibilityTimeoutSeconds *float64 `yaml:"visibilityTimeoutSeconds,omitempty"`

	// RetentionDays is how long unconsumed messages are kept. Bounds: 1 to 14.
	RetentionDays *float64 `yaml:"retentionDays,omitempty"`

	// DeadLetter enables a dead-letter queue for poisoned messages.
	DeadLetter *bool `yaml:"deadLetter,omitempty"`

	// MaxReceiveCount is the receive count after which a message moves to
	// the dead-letter queue. Only used when DeadLetter is enabled.
	MaxReceiveCount *float64 `yaml:"maxReceiveCount,omitempty"`

	// CustomerManagedKey encrypts the queue with a dedicated KMS key
	// instead of SQS-managed encryption.
	CustomerManagedKey *bool `yaml:"customerManagedKey,omitempty"`

	// EnforceTLS denies non-TLS access through the queue policy.
	EnforceTLS *bool `yaml:"enforceTLS,omitempty"`
}

// Props configures the Queue construct.
type Props struct {
	// Ident names the component instance; lowercase, e.g. "orders".
	// Capability names derive from it: "orders.queue.send".
	Ident string

	// Environment is the environment identifier this instance deploys
	// into, used to select from EnvironmentDefaults. Optional.
	Environment string

	// EnvironmentDefaults are per-environment configuration defaults.
	EnvironmentDefaults map[string]Config

	// Overrides is the user override configuration layer.
	Overrides Config
}

type queue struct {
	main awssqs.IQueue
	dlq  awssqs.IQueue
}

// New creates a Queue construct and publishes its send and consume
// capabilities to the app registry.
func New(scope constructs.Construct, props Props) Queue {
	klcdkbind.MustValidIdent(props.Ident)
	scope = constructs.NewConstruct(scope, jsii.Sprintf("Queue%s", strcase.ToCamel(props.Ident)))
	con := &queue{}

	framework := klcdkutil.FrameworkFromScope(scope)
	cfg, err := ResolveConfig(framework, props)
	if err != nil {
		panic(err)
	}
	if err := Validate(cfg, framework); err != nil {
		panic(err)
	}

	queueName := cfg.QueueName
	if queueName == nil {
		queueName = jsii.Sprintf("%s-%s", klcdkutil.Qualifier(scope), props.Ident)
	}

	encryption := awssqs.QueueEncryption_SQS_MANAGED
	var masterKey awskms.IKey
	if *cfg.CustomerManagedKey {
		encryption = awssqs.QueueEncryption_KMS
		masterKey = awskms.NewKey(scope, jsii.String("Key"), &awskms.KeyProps{
			EnableKeyRotation: jsii.Bool(true),
			Description:       jsii.Sprintf("encryption key for queue %s", *queueName),
		})
	}

	var deadLetter *awssqs.DeadLetterQueue
	if *cfg.DeadLetter {
		con.dlq = awssqs.NewQueue(scope, jsii.String("DeadLetterQueue"), &awssqs.QueueProps{
			QueueName:           jsii.Sprintf("%s-dlq", *queueName),
			Encryption:          encryption,
			EncryptionMasterKey: masterKey,
			EnforceSSL:          cfg.EnforceTLS,
			RetentionPeriod:     awscdk.Duration_Days(jsii.Number(14)),
		})
		deadLetter = &awssqs.DeadLetterQueue{
			MaxReceiveCount: cfg.MaxReceiveCount,
			Queue:           con.dlq,
		}
	}

	con.main = awssqs.NewQueue(scope, jsii.String("Queue"), &awssqs.QueueProps{
		QueueName:           queueName,
		Encryption:          encryption,
		EncryptionMasterKey: masterKey,
		EnforceSSL:          cfg.EnforceTLS,
		VisibilityTimeout:   awscdk.Duration_Seconds(cfg.VisibilityTimeoutSeconds),
		RetentionPeriod:     awscdk.Duration_Days(cfg.RetentionDays),
		DeadLetterQueue:     deadLetter,
	})

	publishCapabilities(scope, props.Ident, con.main)

	return con
}

func (q *queue) Queue() awssqs.IQueue { return q.main }

func (q *queue) DeadLetterQueue() awssqs.IQueue { return q.dlq }

func publishCapabilities(scope constructs.Construct, ident string, main awssqs.IQueue) {
	reg := klcdkbind.RegistryFromScope(scope)
	outputs := map[string]*string{
		strcase.ToScreamingSnake(ident) + "_QUEUE_URL": main.QueueUrl(),
	}

	for _, suffix := range []string{"send", "consume"} {
		err := reg.Publish(klcdkbind.Capability{
			Name:      ident + ".queue." + suffix,
			Kind:      klcdkbind.KindQueue,
			Publisher: *scope.Node().Path(),
			Resource:  main,
			Outputs:   outputs,
		})
		if err != nil {
			panic(err)
		}
	}
}

// ResolveConfig resolves the effective queue configuration for a framework
// tier through the five-layer precedence.
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
		return Config{}, errors.Wrapf(err, "resolving queue config for %q", props.Ident)
	}

	return cfg, nil
}

// FallbackConfig is the hardcoded baseline every resolution starts from.
func FallbackConfig() Config {
	return Config{
		VisibilityTimeoutSeconds: jsii.Number(30),
		RetentionDays:            jsii.Number(4),
		DeadLetter:               jsii.Bool(false),
		MaxReceiveCount:          jsii.Number(5),
		CustomerManagedKey:       jsii.Bool(false),
		EnforceTLS:               jsii.Bool(false),
	}
}

// PlatformDefaults returns the framework tier defaults.
func PlatformDefaults(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.DeadLetter = jsii.Bool(true)
		cfg.CustomerManagedKey = jsii.Bool(true)
		cfg.EnforceTLS = jsii.Bool(true)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.RetentionDays = jsii.Number(14)
	}

	return cfg
}

// PolicyOverrides returns tier-mandated values that user overrides must
// not weaken.
func PolicyOverrides(framework klcdkcompliance.Framework) Config {
	cfg := Config{}

	if framework.AtLeast(klcdkcompliance.ModerateAssurance) {
		cfg.CustomerManagedKey = jsii.Bool(true)
		cfg.EnforceTLS = jsii.Bool(true)
	}

	if framework.AtLeast(klcdkcompliance.HighAssurance) {
		cfg.RetentionDays = jsii.Number(14)
		cfg.MaxReceiveCount = jsii.Number(3)
	}

	return cfg
}

// Validate checks the resolved configuration against its bounds and the
// framework's compliance rules.
func Validate(cfg Config, framework klcdkcompliance.Framework) error {
	if cfg.VisibilityTimeoutSeconds != nil {
		if v := *cfg.VisibilityTimeoutSeconds; v < 0 || v > 43200 {
			return errors.Newf("visibility timeout must be within 0-43200 seconds, got %v", v)
		}
	}

	if cfg.RetentionDays != nil {
		if v := *cfg.RetentionDays; v < 1 || v > 14 {
			return errors.Newf("retention must be within 1-14 days, got %v", v)
		}
	}

	if cfg.MaxReceiveCount != nil {
		if v := *cfg.MaxReceiveCount; v < 1 || v > 1000 {
			return errors.Newf("max receive count must be within 1-1000, got %v", v)
		}
	}

	return klcdkcompliance.Enforce(framework, cfg, Rules())
}

// Rules are the queue compliance rules per tier.
func Rules() []klcdkcompliance.Rule[Config] {
	return []klcdkcompliance.Rule[Config]{
		{
			Name:        "queue-encryption",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.CustomerManagedKey == nil || !*cfg.CustomerManagedKey {
					return errors.New("customer-managed encryption key is required")
				}
				return nil
			},
		},
		{
			Name:        "queue-tls-only",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.EnforceTLS == nil || !*cfg.EnforceTLS {
					return errors.New("queue policy must deny non-TLS access")
				}
				return nil
			},
		},
		{
			Name:        "queue-dead-letter",
			AppliesFrom: klcdkcompliance.ModerateAssurance,
			Check: func(cfg Config) error {
				if cfg.DeadLetter == nil || !*cfg.DeadLetter {
					return errors.New("a dead-letter queue is required")
				}
				return nil
			},
		},
		{
			Name:        "queue-retention",
			AppliesFrom: klcdkcompliance.HighAssurance,
			Check: func(cfg Config) error {
				if cfg.RetentionDays == nil || *cfg.RetentionDays < 14 {
					return errors.New("message retention must be the 14 day maximum")
				}
				return nil
			},
		},
	}
}
