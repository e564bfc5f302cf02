package klcdkutil

import (
	awslambdago "github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/jsii-runtime-go"
)

// ReproducibleGoBundling returns bundling options that produce bit-identical
// Lambda binaries across machines: paths are trimmed, VCS stamps dropped and
// the build id zeroed. Stable binaries keep asset hashes stable, so
// unchanged functions never redeploy.
func ReproducibleGoBundling() *awslambdago.BundlingOptions {
	return &awslambdago.BundlingOptions{
		GoBuildFlags: jsii.Strings(
			`-trimpath`,
			`-buildvcs=false`,
			`-ldflags "-s -w -buildid="`,
		),
		Environment: &map[string]*string{
			"CGO_ENABLED": jsii.String("0"),
		},
	}
}
