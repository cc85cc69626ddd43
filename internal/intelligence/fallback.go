package intelligence

// fallbackPlans are the known-good per-category plans used when the
// collaborator is unreachable or returns nothing usable. Order matters: the
// engine runs these sequences as-is.
var fallbackPlans = map[string][]Recommendation{
	"network_scanning": {
		{Tool: "nmap", Rationale: "baseline port and service discovery", Priority: "high"},
		{Tool: "dnsrecon", Rationale: "enumerate DNS records", Priority: "medium"},
	},
	"web_application": {
		{Tool: "nmap", Rationale: "confirm exposed web ports", Priority: "high"},
		{Tool: "whatweb", Rationale: "fingerprint the web stack", Priority: "high"},
		{Tool: "nikto", Rationale: "scan for known web server issues", Priority: "medium"},
	},
	"password_attacks": {
		{Tool: "nmap", Rationale: "identify authentication services", Priority: "high"},
		{Tool: "hydra", Rationale: "test credential strength on discovered services", Priority: "medium"},
	},
	"wireless": {
		{Tool: "aircrack-ng", Rationale: "attempt key recovery on the provided capture", Priority: "specialized"},
	},
	"forensics": {
		{Tool: "binwalk", Rationale: "identify embedded content in the artifact", Priority: "medium"},
		{Tool: "foremost", Rationale: "carve recoverable files", Priority: "specialized"},
	},
	"information_gathering": {
		{Tool: "dnsrecon", Rationale: "map DNS posture", Priority: "high"},
		{Tool: "theharvester", Rationale: "collect exposed emails and hosts", Priority: "medium"},
		{Tool: "subfinder", Rationale: "discover subdomains passively", Priority: "medium"},
	},
	"general": {
		{Tool: "nmap", Rationale: "baseline discovery", Priority: "high"},
		{Tool: "whatweb", Rationale: "identify web technologies if present", Priority: "medium"},
	},
}

// FallbackRecommendations returns the offline plan for a category. Unknown
// categories get the general plan, never an empty one.
func FallbackRecommendations(category string) []Recommendation {
	if plan, ok := fallbackPlans[category]; ok {
		out := make([]Recommendation, len(plan))
		copy(out, plan)
		return out
	}
	out := make([]Recommendation, len(fallbackPlans["general"]))
	copy(out, fallbackPlans["general"])
	return out
}
