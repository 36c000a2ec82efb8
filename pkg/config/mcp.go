package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TransportType identifies how an MCP server is reached.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
)

// MCPServerConfig defines one MCP server entry from the JSON config.
// The same struct round-trips YAML for servers declared inline in
// qe-intelligence.yaml.
type MCPServerConfig struct {
	Type TransportType `json:"type" yaml:"type"`

	// For stdio transport
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// For http transport
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
	Timeout     int    `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds

	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// mcpJSONFile mirrors the on-disk MCP configuration document.
type mcpJSONFile struct {
	MCPServers map[string]*MCPServerConfig `json:"mcpServers"`
	Settings   *MCPSettings                `json:"settings,omitempty"`
}

// mcpConfigSearchPaths returns the well-known MCP config locations, most
// specific first. The first existing file wins.
func mcpConfigSearchPaths(configDir string) []string {
	paths := []string{
		filepath.Join(configDir, "mcp-servers.json"),
		".mcp.json",
		filepath.Join(".claude", "mcp-servers.json"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "qe-intelligence", "mcp-servers.json"))
	}
	return paths
}

// loadMCPJSON reads and parses one MCP config file, with env expansion.
func loadMCPJSON(path string) (*mcpJSONFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var file mcpJSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if file.MCPServers == nil {
		file.MCPServers = make(map[string]*MCPServerConfig)
	}
	return &file, nil
}

// discoverMCPJSON finds and loads the first MCP config file from the
// well-known paths. A missing file is not an error; built-ins apply.
func discoverMCPJSON(configDir string) (*mcpJSONFile, string, error) {
	for _, path := range mcpConfigSearchPaths(configDir) {
		file, err := loadMCPJSON(path)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, path, NewLoadError(path, err)
		}
	}
	return nil, "", nil
}

// MCPServerRegistry stores MCP server configurations with thread-safe access.
type MCPServerRegistry struct {
	servers map[string]*MCPServerConfig
	mu      sync.RWMutex
}

// NewMCPServerRegistry creates a registry over the given servers.
func NewMCPServerRegistry(servers map[string]*MCPServerConfig) *MCPServerRegistry {
	if servers == nil {
		servers = make(map[string]*MCPServerConfig)
	}
	return &MCPServerRegistry{servers: servers}
}

// Get retrieves an MCP server configuration by ID.
func (r *MCPServerRegistry) Get(serverID string) (*MCPServerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	server, exists := r.servers[serverID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrMCPServerNotFound, serverID)
	}
	return server, nil
}

// GetAll returns a copy of all MCP server configurations.
func (r *MCPServerRegistry) GetAll() map[string]*MCPServerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*MCPServerConfig, len(r.servers))
	for k, v := range r.servers {
		result[k] = v
	}
	return result
}

// Has reports whether an MCP server exists in the registry.
func (r *MCPServerRegistry) Has(serverID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.servers[serverID]
	return exists
}
