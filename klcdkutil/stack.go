package klcdkutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/iancoleman/strcase"
)

// FrameworkTagName is the stack tag carrying the compliance framework tier.
// The tag value is pass-through for downstream governance tooling.
const FrameworkTagName = "compliance-framework"

// NewStackFromConfig creates a new CDK Stack using a validated Config,
// either shared (no environment) or environment-specific.
//
// Every stack is tagged with the compliance framework tier so downstream
// governance tooling can group resources by assurance level.
func NewStackFromConfig(
	scope constructs.Construct, cfg *Config, region string, environmentIdent ...string,
) awscdk.Stack {
	qualifier := strcase.ToLowerCamel(fmt.Sprintf("%s-%s", cfg.Qualifier, cfg.RegionIdent(region)))
	stackName := jsii.Sprintf("%sShared", qualifier)

	description := jsii.String(fmt.Sprintf("%s (region: %s, framework: %s)",
		qualifier, region, cfg.Framework))
	if len(environmentIdent) > 0 && environmentIdent[0] != "" {
		ident := environmentIdent[0]
		if strings.ToUpper(string(ident[0])) != string(ident[0]) {
			panic("environment identifier must start with a upper-case letter, got: " + ident)
		}

		description = jsii.String(fmt.Sprintf("%s (region: %s, framework: %s, environment: %s)",
			qualifier, region, cfg.Framework, ident))

		stackName = jsii.Sprintf("%s%s", qualifier, ident)
	} else if len(environmentIdent) > 0 {
		panic("invalid environmentIdent: " + environmentIdent[0])
	}

	stack := awscdk.NewStack(scope, stackName, &awscdk.StackProps{
		Env: &awscdk.Environment{
			Account: jsii.String(os.Getenv("CDK_DEFAULT_ACCOUNT")),
			Region:  jsii.String(region),
		},
		Description: description,
		Synthesizer: awscdk.NewDefaultStackSynthesizer(&awscdk.DefaultStackSynthesizerProps{
			Qualifier: jsii.String(cfg.Qualifier),
		}),
	})

	awscdk.Tags_Of(stack).Add(
		jsii.String(FrameworkTagName), jsii.String(cfg.Framework.String()), nil)

	awscdk.Annotations_Of(stack).AcknowledgeWarning(
		jsii.String("@aws-cdk/aws-lambda-go-alpha:goBuildFlagsSecurityWarning"),
		jsii.String("Build flags are controlled by klcdkutil.ReproducibleGoBundling and are safe"),
	)

	return stack
}
