package klcdkutil

// AllKnownRegions returns the AWS regions the library knows default
// acronym identifiers for. Used by project scaffolding to offer choices.
func AllKnownRegions() []string {
	regions := make([]string, 0, len(regionIdents))
	for _, r := range regionOrder {
		regions = append(regions, r)
	}
	return regions
}

// DefaultRegionIdent returns the default acronym identifier for a known
// region, or the empty string for unknown regions.
func DefaultRegionIdent(region string) string {
	return regionIdents[region]
}

var regionOrder = []string{
	"us-east-1",
	"us-east-2",
	"us-west-2",
	"eu-west-1",
	"eu-central-1",
	"eu-north-1",
	"ap-southeast-1",
	"ap-southeast-2",
	"ap-northeast-1",
}

var regionIdents = map[string]string{
	"us-east-1":      "use1",
	"us-east-2":      "use2",
	"us-west-2":      "usw2",
	"eu-west-1":      "euw1",
	"eu-central-1":   "euc1",
	"eu-north-1":     "eun1",
	"ap-southeast-1": "apse1",
	"ap-southeast-2": "apse2",
	"ap-northeast-1": "apne1",
}
