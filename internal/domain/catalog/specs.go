package catalog

// Category names used across the catalog, the collaborator prompts, and the
// CLI category menu.
const (
	CategoryNetworkScanning = "network_scanning"
	CategoryWebApplication  = "web_application"
	CategoryPasswordAttacks = "password_attacks"
	CategoryWireless        = "wireless"
	CategoryForensics       = "forensics"
	CategoryInformation     = "information_gathering"
	CategoryGeneral         = "general"
)

// builtinSpecs is the shipped tool catalog. Placeholders: {target} is always
// supplied by the engine; {wordlist}, {port}, {ports}, {path}, {username} and
// {service} come from run parameters or from context extracted out of prior
// tool output.
var builtinSpecs = []ToolSpec{
	{
		Name:        "nmap",
		Category:    CategoryNetworkScanning,
		Description: "Network exploration and port scanner",
		Template:    []string{"nmap", "-sV", "--top-ports", "1000", "{target}"},
		Priority:    PriorityHigh,
	},
	{
		Name:        "nmap-ports",
		Category:    CategoryNetworkScanning,
		Description: "Service/version scan of specific ports discovered earlier",
		Template:    []string{"nmap", "-sC", "-sV", "-p", "{ports}", "{target}"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "masscan",
		Category:    CategoryNetworkScanning,
		Description: "High-rate TCP port scanner",
		Template:    []string{"masscan", "-p1-1000", "--rate", "1000", "{target}"},
		Priority:    PrioritySpecialized,
	},
	{
		Name:        "nikto",
		Category:    CategoryWebApplication,
		Description: "Web server vulnerability scanner",
		Template:    []string{"nikto", "-h", "{target}"},
		Priority:    PriorityHigh,
	},
	{
		Name:        "whatweb",
		Category:    CategoryWebApplication,
		Description: "Web technology fingerprinter",
		Template:    []string{"whatweb", "{target}"},
		Priority:    PriorityHigh,
	},
	{
		Name:        "gobuster",
		Category:    CategoryWebApplication,
		Description: "Directory and file brute-forcer",
		Template:    []string{"gobuster", "dir", "-u", "http://{target}/", "-w", "{wordlist}", "-x", "php,html,txt"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "dirb",
		Category:    CategoryWebApplication,
		Description: "Web content scanner",
		Template:    []string{"dirb", "http://{target}/", "{wordlist}"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "sqlmap",
		Category:    CategoryWebApplication,
		Description: "Automated SQL injection detection",
		Template:    []string{"sqlmap", "-u", "http://{target}{path}", "--batch", "--crawl=2"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "wpscan",
		Category:    CategoryWebApplication,
		Description: "WordPress security scanner",
		Template:    []string{"wpscan", "--url", "http://{target}/", "--enumerate", "u,p,t"},
		Priority:    PrioritySpecialized,
	},
	{
		Name:        "hydra",
		Category:    CategoryPasswordAttacks,
		Description: "Network logon brute-forcer",
		Template:    []string{"hydra", "-l", "{username}", "-P", "{wordlist}", "{target}", "{service}"},
		Priority:    PriorityHigh,
	},
	{
		Name:        "john",
		Category:    CategoryPasswordAttacks,
		Description: "Password hash cracker",
		Template:    []string{"john", "--wordlist={wordlist}", "{path}"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "aircrack-ng",
		Category:    CategoryWireless,
		Description: "WEP/WPA-PSK key cracker",
		Template:    []string{"aircrack-ng", "-w", "{wordlist}", "{path}"},
		Priority:    PrioritySpecialized,
	},
	{
		Name:        "binwalk",
		Category:    CategoryForensics,
		Description: "Firmware and file analysis",
		Template:    []string{"binwalk", "{path}"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "foremost",
		Category:    CategoryForensics,
		Description: "File carving by header/footer signatures",
		Template:    []string{"foremost", "-i", "{path}"},
		Priority:    PrioritySpecialized,
	},
	{
		Name:        "dnsrecon",
		Category:    CategoryInformation,
		Description: "DNS enumeration",
		Template:    []string{"dnsrecon", "-d", "{target}"},
		Priority:    PriorityHigh,
	},
	{
		Name:        "theharvester",
		Category:    CategoryInformation,
		Description: "OSINT email/subdomain harvester",
		Template:    []string{"theHarvester", "-d", "{target}", "-b", "duckduckgo"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "subfinder",
		Category:    CategoryInformation,
		Description: "Passive subdomain discovery",
		Template:    []string{"subfinder", "-d", "{target}", "-silent"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "enum4linux",
		Category:    CategoryGeneral,
		Description: "SMB/Windows enumeration",
		Template:    []string{"enum4linux", "-a", "{target}"},
		Priority:    PriorityMedium,
	},
	{
		Name:        "smbclient",
		Category:    CategoryGeneral,
		Description: "List SMB shares anonymously",
		Template:    []string{"smbclient", "-L", "{target}", "-N"},
		Priority:    PrioritySpecialized,
	},
}
