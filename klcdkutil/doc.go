// Package klcdkutil provides utilities for compliance-tiered AWS CDK
// applications in Go.
//
// This package includes helpers for:
//   - CDK context management with upfront validation
//   - Multi-region and multi-environment stack management
//   - Compliance framework tier selection and stack tagging
//   - Environment authorization via IAM groups
//   - Reproducible Go Lambda builds
package klcdkutil
