package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects providers globally and per agent.
type Config struct {
	ActiveProvider string                 `yaml:"active_provider" json:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents" json:"agents,omitempty"`
	GeminiModel    string                 `yaml:"gemini_model" json:"gemini_model,omitempty"`
	GeminiAPIKey   string                 `yaml:"-" json:"-"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
}

// AgentClassifier is the agent name the classification assistant runs as.
const AgentClassifier = "classifier"

// Manager routes agent prompts to providers. The active provider may be
// switched at runtime.
type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]Provider
}

// NewManager registers the built-in providers.
func NewManager(config Config) *Manager {
	if config.ActiveProvider == "" {
		config.ActiveProvider = "gemini"
	}
	return &Manager{
		config: config,
		providers: map[string]Provider{
			"gemini":   &GeminiProvider{Model: config.GeminiModel, APIKey: config.GeminiAPIKey},
			"deepseek": &DeepSeekProvider{},
		},
	}
}

// Register adds or replaces a provider.
func (m *Manager) Register(name string, p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

// GetProvider resolves the agent override, then the active provider.
func (m *Manager) GetProvider(agentType string) Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return p
		}
	}
	return m.providers[m.config.ActiveProvider]
}

// ExecutePrompt adapts instructions for the agent's provider and sends the prompt.
func (m *Manager) ExecutePrompt(ctx context.Context, agentType, prompt, systemPrompt string, opts Options) (string, error) {
	provider := m.GetProvider(agentType)
	if provider == nil {
		return "", fmt.Errorf("no provider configured for agent %s", agentType)
	}
	if opts.Model == "" {
		m.mu.RLock()
		opts.Model = m.config.Agents[agentType].Model
		m.mu.RUnlock()
	}
	return provider.GenerateResponse(ctx, prompt, provider.AdaptInstructions(systemPrompt), opts)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists registered provider names.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
