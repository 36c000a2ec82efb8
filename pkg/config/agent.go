package config

import (
	"fmt"
	"sync"
	"time"
)

// AgentRole names what an agent investigates.
type AgentRole string

const (
	RoleJira          AgentRole = "jira"
	RoleEnvironment   AgentRole = "environment"
	RoleDocumentation AgentRole = "documentation"
	RoleGitHub        AgentRole = "github"
	RoleIntelligence  AgentRole = "intelligence"
)

// AgentConfig declares one agent: its role, which MCP servers it may use,
// and its execution bounds.
type AgentConfig struct {
	Name           string    `yaml:"name"`
	Role           AgentRole `yaml:"role"`
	Enabled        *bool     `yaml:"enabled,omitempty"`
	TimeoutSeconds int       `yaml:"timeout,omitempty"`
	MCPServers     []string  `yaml:"mcp_servers,omitempty"`
}

// IsEnabled reports whether the agent should run. Unset means enabled.
func (a *AgentConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Timeout returns the agent execution bound, falling back to def when unset.
func (a *AgentConfig) Timeout(def time.Duration) time.Duration {
	if a.TimeoutSeconds > 0 {
		return time.Duration(a.TimeoutSeconds) * time.Second
	}
	return def
}

// AgentRegistry stores agent configurations with thread-safe access.
type AgentRegistry struct {
	agents map[string]*AgentConfig
	mu     sync.RWMutex
}

// NewAgentRegistry creates a registry over the given agents.
func NewAgentRegistry(agents map[string]*AgentConfig) *AgentRegistry {
	if agents == nil {
		agents = make(map[string]*AgentConfig)
	}
	return &AgentRegistry{agents: agents}
}

// Get retrieves an agent configuration by ID.
func (r *AgentRegistry) Get(agentID string) (*AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[agentID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return agent, nil
}

// GetAll returns a copy of all agent configurations.
func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*AgentConfig, len(r.agents))
	for k, v := range r.agents {
		result[k] = v
	}
	return result
}

// Has reports whether an agent exists in the registry.
func (r *AgentRegistry) Has(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.agents[agentID]
	return exists
}
