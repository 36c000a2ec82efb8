package masking

import "regexp"

// Placeholders form the fixed replacement set for report output. Every
// cluster-specific URL, hostname, user, or secret that reaches a report is
// rewritten to one of these.
const (
	PlaceholderConsoleURL    = "<CLUSTER_CONSOLE_URL>"
	PlaceholderAPIURL        = "<CLUSTER_API_URL>"
	PlaceholderAdminUser     = "<CLUSTER_ADMIN_USER>"
	PlaceholderAdminPassword = "<CLUSTER_ADMIN_PASSWORD>"
	PlaceholderClusterHost   = "<CLUSTER_HOST>"
	PlaceholderRegistryURL   = "<INTERNAL_REGISTRY_URL>"
)

// CompiledPattern holds a pre-compiled regex with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns returns the masking patterns in application order. More
// specific patterns come first so broad host matching never swallows a
// console or registry URL.
func builtinPatterns() []*CompiledPattern {
	return []*CompiledPattern{
		{
			Name:        "console_url",
			Regex:       regexp.MustCompile(`https?://console-openshift-console\.apps\.[A-Za-z0-9.-]+[A-Za-z0-9](?:/[^\s"'|)]*)?`),
			Replacement: PlaceholderConsoleURL,
			Description: "OpenShift console route URL",
		},
		{
			Name:        "api_url",
			Regex:       regexp.MustCompile(`https?://api\.[A-Za-z0-9.-]+:\d+(?:/[^\s"'|)]*)?`),
			Replacement: PlaceholderAPIURL,
			Description: "Cluster API server URL",
		},
		{
			Name:        "internal_registry",
			Regex:       regexp.MustCompile(`(?:image-registry\.openshift-image-registry\.svc(?::\d+)?|default-route-openshift-image-registry\.apps\.[A-Za-z0-9.-]+[A-Za-z0-9])`),
			Replacement: PlaceholderRegistryURL,
			Description: "Internal image registry host",
		},
		{
			Name:        "kubeadmin_password",
			Regex:       regexp.MustCompile(`(?i)(kubeadmin[^\n]{0,40}?(?:password|pwd)\s*[=: ]\s*)\S+`),
			Replacement: "${1}" + PlaceholderAdminPassword,
			Description: "kubeadmin password assignments",
		},
		{
			Name:        "kubeadmin_user",
			Regex:       regexp.MustCompile(`\bkubeadmin\b`),
			Replacement: PlaceholderAdminUser,
			Description: "kubeadmin user name",
		},
		{
			Name:        "github_token",
			Regex:       regexp.MustCompile(`\b(?:ghp|gho|ghs|ghu)_[A-Za-z0-9]{20,}\b|\bgithub_pat_[A-Za-z0-9_]{20,}\b`),
			Replacement: PlaceholderAdminPassword,
			Description: "GitHub access tokens",
		},
		{
			Name:        "bearer_token",
			Regex:       regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{8,}`),
			Replacement: "Bearer " + PlaceholderAdminPassword,
			Description: "HTTP bearer tokens",
		},
		{
			Name:        "password_assignment",
			Regex:       regexp.MustCompile(`(?i)((?:password|passwd|secret|api[_-]?token)\s*[=:]\s*)["']?[^\s"',;|]+["']?`),
			Replacement: "${1}" + PlaceholderAdminPassword,
			Description: "Inline password/token assignments",
		},
		{
			Name:        "cluster_host",
			Regex:       regexp.MustCompile(`\b(?:[A-Za-z0-9-]+\.)*apps\.[A-Za-z0-9-]+\.[A-Za-z0-9.-]*[A-Za-z0-9]\b`),
			Replacement: PlaceholderClusterHost,
			Description: "Cluster application route hosts",
		},
		{
			Name:        "api_host",
			Regex:       regexp.MustCompile(`\bapi\.[A-Za-z0-9-]+\.(?:dev|qe|stage|prod|red-chesterfield)[A-Za-z0-9.-]*[A-Za-z0-9]\b`),
			Replacement: PlaceholderClusterHost,
			Description: "Cluster API hosts without scheme",
		},
	}
}
