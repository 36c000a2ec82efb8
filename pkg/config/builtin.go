package config

// BuiltinConfig carries the compiled-in defaults. User configuration is
// merged over these; anything the user does not declare keeps the built-in
// value.
type BuiltinConfig struct {
	Agents     map[string]*AgentConfig
	MCPServers map[string]*MCPServerConfig
}

// GetBuiltinConfig returns the built-in agents and MCP servers.
func GetBuiltinConfig() *BuiltinConfig {
	return &BuiltinConfig{
		Agents: map[string]*AgentConfig{
			"agent_a": {
				Name:       "jira-intelligence",
				Role:       RoleJira,
				MCPServers: []string{"jira"},
			},
			"agent_d": {
				Name:       "environment-intelligence",
				Role:       RoleEnvironment,
				MCPServers: []string{"filesystem"},
			},
			"agent_b": {
				Name:       "documentation-intelligence",
				Role:       RoleDocumentation,
				MCPServers: []string{"filesystem", "github"},
			},
			"agent_c": {
				Name:       "github-investigation",
				Role:       RoleGitHub,
				MCPServers: []string{"github"},
			},
			"qe_intelligence": {
				Name: "qe-intelligence",
				Role: RoleIntelligence,
			},
		},
		MCPServers: map[string]*MCPServerConfig{
			"github": {
				Type:        TransportStdio,
				Command:     "npx",
				Args:        []string{"-y", "@modelcontextprotocol/server-github"},
				Env:         map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": "{{.GITHUB_TOKEN}}"},
				Description: "GitHub repository and pull-request access",
			},
			"filesystem": {
				Type:        TransportStdio,
				Command:     "npx",
				Args:        []string{"-y", "@modelcontextprotocol/server-filesystem", "."},
				Description: "Local repository file access",
			},
			"jira": {
				Type:        TransportStdio,
				Command:     "uvx",
				Args:        []string{"mcp-atlassian"},
				Env:         map[string]string{"JIRA_API_TOKEN": "{{.JIRA_API_TOKEN}}"},
				Description: "JIRA ticket retrieval",
			},
			"jenkins": {
				Type:        TransportHTTP,
				URL:         "{{.JENKINS_MCP_URL}}",
				Description: "Jenkins build metadata and artifacts",
			},
		},
	}
}
