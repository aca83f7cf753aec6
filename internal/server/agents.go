package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aragora-project/aragora-go/internal/agentcore"
	"github.com/aragora-project/aragora-go/internal/breaker"
	"github.com/aragora-project/aragora-go/internal/types"
)

// LoadAgentConfigs reads a JSON array of AgentConfig from path,
// generalizing the teacher's per-agent JSON config files (e.g.
// internal/agent/degenerate.json) from a single hardcoded pair into an
// arbitrary-length roster.
func LoadAgentConfigs(path string) ([]AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config %s: %w", path, err)
	}
	var configs []AgentConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	return configs, nil
}

// BuildAgents constructs one agentcore.Agent per AgentConfig, dispatching
// on AgentType to the concrete backend adapter it names. All agents share
// br so the circuit breaker's failure accounting is process-wide, per
// spec §4.5.
func BuildAgents(configs []AgentConfig, br *breaker.Breaker) (map[string]*agentcore.Agent, error) {
	agents := make(map[string]*agentcore.Agent, len(configs))
	for _, ac := range configs {
		backend, err := buildBackend(ac)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", ac.Name, err)
		}
		role := types.AgentRole(ac.Role)
		if !role.IsValid() {
			return nil, fmt.Errorf("agent %q: invalid role %q", ac.Name, ac.Role)
		}
		agents[ac.Name] = agentcore.New(agentcore.Config{
			Name:      ac.Name,
			Role:      role,
			Model:     ac.Model,
			AgentType: types.BackendKind(ac.AgentType),
		}, backend, br)
	}
	return agents, nil
}

func buildBackend(ac AgentConfig) (agentcore.Backend, error) {
	switch types.BackendKind(ac.AgentType) {
	case types.BackendHTTPOpenAIShape:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return agentcore.NewHTTPOpenAIBackend(apiKey, ac.Model, ac.BaseURL)
	case types.BackendHTTPAnthropicShape:
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		return agentcore.NewHTTPAnthropicBackend(apiKey, ac.Model, ac.BaseURL), nil
	case types.BackendLocalHTTP:
		if ac.BaseURL == "" {
			return nil, fmt.Errorf("local-http agent requires a base_url")
		}
		return agentcore.NewLocalHTTPBackend(ac.BaseURL, ac.Model), nil
	case types.BackendCLI:
		if ac.BaseURL == "" {
			return nil, fmt.Errorf("cli agent requires a base_url holding the executable path")
		}
		return agentcore.NewCLIBackend(ac.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown agent_type %q", ac.AgentType)
	}
}
