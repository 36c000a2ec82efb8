package config

// Config is the fully resolved runtime configuration: merged built-in and
// user values, with registries ready for lookup. Construct via Initialize.
type Config struct {
	configDir string

	// Run holds output-directory and orchestration timing settings.
	Run *RunSettings

	// MCP holds the integration-layer tuning from the JSON settings block.
	MCP *MCPSettings

	// MCPConfigPath is the JSON file the MCP servers came from, empty when
	// only built-ins are in effect.
	MCPConfigPath string

	// MaskingEnabled controls report sanitization. On by default; there is
	// deliberately no YAML knob to turn it off, only tests override it.
	MaskingEnabled bool

	AgentRegistry     *AgentRegistry
	MCPServerRegistry *MCPServerRegistry
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Stats summarizes the loaded configuration for startup logging.
type Stats struct {
	Agents     int
	MCPServers int
}

// Stats returns configuration statistics.
func (c *Config) Stats() Stats {
	return Stats{
		Agents:     len(c.AgentRegistry.GetAll()),
		MCPServers: len(c.MCPServerRegistry.GetAll()),
	}
}
