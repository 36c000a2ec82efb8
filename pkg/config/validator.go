package config

import (
	"errors"
	"fmt"
)

// validator performs cross-reference and range checks on a loaded Config.
type validator struct {
	cfg *Config
}

func (v *validator) validateAll() error {
	var errs []error
	errs = append(errs, v.validateAgents()...)
	errs = append(errs, v.validateMCPServers()...)
	errs = append(errs, v.validateSettings()...)
	return errors.Join(errs...)
}

// validateAgents checks every agent's MCP server references.
func (v *validator) validateAgents() []error {
	var errs []error
	for id, agent := range v.cfg.AgentRegistry.GetAll() {
		if agent.Name == "" {
			errs = append(errs, NewValidationError("agent", id, "name", ErrMissingRequiredField))
		}
		if agent.Role == "" {
			errs = append(errs, NewValidationError("agent", id, "role", ErrMissingRequiredField))
		}
		for _, serverID := range agent.MCPServers {
			if !v.cfg.MCPServerRegistry.Has(serverID) {
				errs = append(errs, NewValidationError("agent", id, "mcp_servers",
					fmt.Errorf("%w: references unknown MCP server %q", ErrInvalidReference, serverID)))
			}
		}
	}
	return errs
}

// validateMCPServers checks transport completeness per type.
func (v *validator) validateMCPServers() []error {
	var errs []error
	for id, server := range v.cfg.MCPServerRegistry.GetAll() {
		switch server.Type {
		case TransportStdio:
			if server.Command == "" {
				errs = append(errs, NewValidationError("mcp_server", id, "command", ErrMissingRequiredField))
			}
		case TransportHTTP:
			if server.URL == "" {
				errs = append(errs, NewValidationError("mcp_server", id, "url", ErrMissingRequiredField))
			}
		default:
			errs = append(errs, NewValidationError("mcp_server", id, "type",
				fmt.Errorf("%w: %q (want stdio or http)", ErrInvalidValue, server.Type)))
		}
	}
	return errs
}

// validateSettings checks numeric ranges.
func (v *validator) validateSettings() []error {
	var errs []error
	s := v.cfg.MCP
	if s.CacheTTLSeconds < 0 {
		errs = append(errs, NewValidationError("settings", "mcp", "cache_ttl", ErrInvalidValue))
	}
	if s.HealthCheckIntervalSeconds < 0 {
		errs = append(errs, NewValidationError("settings", "mcp", "health_check_interval", ErrInvalidValue))
	}
	if s.MaxRetries < 0 {
		errs = append(errs, NewValidationError("settings", "mcp", "max_retries", ErrInvalidValue))
	}
	if s.RetryDelaySeconds < 0 {
		errs = append(errs, NewValidationError("settings", "mcp", "retry_delay", ErrInvalidValue))
	}
	if v.cfg.Run.OutputDir == "" {
		errs = append(errs, NewValidationError("settings", "run", "output_dir", ErrMissingRequiredField))
	}
	return errs
}
