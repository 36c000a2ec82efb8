// Package config loads, merges, and validates configuration: the optional
// qe-intelligence.yaml, the MCP servers JSON discovered at well-known paths,
// and compiled-in defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlFile represents the complete qe-intelligence.yaml structure.
type yamlFile struct {
	Run        *RunSettings                `yaml:"run"`
	MCP        *MCPSettings                `yaml:"mcp"`
	Agents     map[string]*AgentConfig     `yaml:"agents"`
	MCPServers map[string]*MCPServerConfig `yaml:"mcp_servers"`
}

// Initialize loads, merges, validates, and returns ready-to-use
// configuration. This is the primary entry point.
//
// Steps performed:
//  1. Load qe-intelligence.yaml from configDir (optional)
//  2. Expand {{.VAR}} environment references
//  3. Discover and load the MCP servers JSON from well-known paths
//  4. Merge built-in + user-defined agents and servers (user wins)
//  5. Merge settings over built-in defaults
//  6. Build registries and validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized",
		"agents", stats.Agents,
		"mcp_servers", stats.MCPServers,
		"mcp_config", cfg.MCPConfigPath)
	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	// 1. qe-intelligence.yaml (optional; built-ins cover everything)
	userYAML, err := loadYAMLFile(configDir)
	if err != nil {
		return nil, NewLoadError("qe-intelligence.yaml", err)
	}

	// 2. MCP servers JSON from the well-known paths
	mcpFile, mcpPath, err := discoverMCPJSON(configDir)
	if err != nil {
		return nil, err
	}

	builtin := GetBuiltinConfig()

	// 3. Merge server maps: built-in < YAML mcp_servers < JSON mcpServers.
	servers := make(map[string]*MCPServerConfig, len(builtin.MCPServers))
	for id, s := range builtin.MCPServers {
		servers[id] = s
	}
	for id, s := range userYAML.MCPServers {
		servers[id] = s
	}
	if mcpFile != nil {
		for id, s := range mcpFile.MCPServers {
			servers[id] = s
		}
	}

	// 4. Merge agents: user entries override built-ins wholesale.
	agents := make(map[string]*AgentConfig, len(builtin.Agents))
	for id, a := range builtin.Agents {
		agents[id] = a
	}
	for id, a := range userYAML.Agents {
		agents[id] = a
	}

	// 5. Settings: defaults, then YAML, then the JSON settings block. Each
	// layer only overrides what it sets.
	mcpSettings := DefaultMCPSettings()
	if userYAML.MCP != nil {
		if err := mergo.Merge(mcpSettings, userYAML.MCP, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge mcp settings: %w", err)
		}
	}
	if mcpFile != nil && mcpFile.Settings != nil {
		if err := mergo.Merge(mcpSettings, mcpFile.Settings, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge mcp settings from %s: %w", mcpPath, err)
		}
	}

	runSettings := DefaultRunSettings()
	if userYAML.Run != nil {
		if err := mergo.Merge(runSettings, userYAML.Run, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge run settings: %w", err)
		}
	}

	return &Config{
		configDir:         configDir,
		Run:               runSettings,
		MCP:               mcpSettings,
		MCPConfigPath:     mcpPath,
		MaskingEnabled:    true,
		AgentRegistry:     NewAgentRegistry(agents),
		MCPServerRegistry: NewMCPServerRegistry(servers),
	}, nil
}

// loadYAMLFile reads qe-intelligence.yaml. A missing file yields an empty
// document, not an error.
func loadYAMLFile(configDir string) (*yamlFile, error) {
	var file yamlFile
	file.Agents = make(map[string]*AgentConfig)
	file.MCPServers = make(map[string]*MCPServerConfig)

	path := filepath.Join(configDir, "qe-intelligence.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &file, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if file.Agents == nil {
		file.Agents = make(map[string]*AgentConfig)
	}
	if file.MCPServers == nil {
		file.MCPServers = make(map[string]*MCPServerConfig)
	}
	return &file, nil
}

func validate(cfg *Config) error {
	v := &validator{cfg: cfg}
	return v.validateAll()
}
