package utils

import "regexp"

// regionPattern matches region codes such as ap-northeast-2 or us-gov-west-1,
// so regions launched after this list was written still validate
var regionPattern = regexp.MustCompile(`^([a-z]{2})(-gov|-iso[a-z]?)?-(central|north|south|east|west|northeast|northwest|southeast|southwest)-[0-9]+$`)

// geographies maps the leading part of a region code to its area
var geographies = map[string]string{
	"af": "Africa",
	"ap": "Asia Pacific",
	"ca": "Canada",
	"eu": "Europe",
	"il": "Israel",
	"me": "Middle East",
	"mx": "Mexico",
	"sa": "South America",
	"us": "US",
}

// locations names the city or state of the regions we know about
var locations = map[string]string{
	"us-east-1":      "N. Virginia",
	"us-east-2":      "Ohio",
	"us-west-1":      "N. California",
	"us-west-2":      "Oregon",
	"af-south-1":     "Cape Town",
	"ap-east-1":      "Hong Kong",
	"ap-south-1":     "Mumbai",
	"ap-south-2":     "Hyderabad",
	"ap-northeast-1": "Tokyo",
	"ap-northeast-2": "Seoul",
	"ap-northeast-3": "Osaka",
	"ap-southeast-1": "Singapore",
	"ap-southeast-2": "Sydney",
	"ap-southeast-3": "Jakarta",
	"ap-southeast-4": "Melbourne",
	"ap-southeast-5": "Malaysia",
	"ap-southeast-7": "Thailand",
	"ca-central-1":   "Central",
	"ca-west-1":      "Calgary",
	"eu-central-1":   "Frankfurt",
	"eu-central-2":   "Zurich",
	"eu-west-1":      "Ireland",
	"eu-west-2":      "London",
	"eu-west-3":      "Paris",
	"eu-north-1":     "Stockholm",
	"eu-south-1":     "Milan",
	"eu-south-2":     "Spain",
	"il-central-1":   "Tel Aviv",
	"me-central-1":   "UAE",
	"me-south-1":     "Bahrain",
	"mx-central-1":   "Central",
	"sa-east-1":      "Sao Paulo",
}

// GetRegionDescriptiveName returns e.g. "Asia Pacific (Seoul)" for ap-northeast-2.
// Unknown locations fall back to the area name, unknown areas to the code itself.
func GetRegionDescriptiveName(region string) string {
	m := regionPattern.FindStringSubmatch(region)
	if m == nil {
		return region
	}
	geo, ok := geographies[m[1]]
	if !ok {
		return region
	}
	if loc, ok := locations[region]; ok {
		return geo + " (" + loc + ")"
	}
	return geo
}

// IsValidRegion reports whether region is shaped like an AWS region code
func IsValidRegion(region string) bool {
	return regionPattern.MatchString(region)
}
