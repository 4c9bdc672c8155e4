package models

import "time"

// AgentConfig holds the tunable parameters governing one bot persona.
// Zero values for max_tokens, temperature, and model_name mean "use the
// default"; ApplyDefaults fills them in before the document is stored.
type AgentConfig struct {
	PromptPreamble     string  `json:"prompt_preamble" bson:"prompt_preamble"`
	MaxTokens          int     `json:"max_tokens" bson:"max_tokens"`
	Temperature        float64 `json:"temperature" bson:"temperature"`
	UserInitialMessage string  `json:"user_initial_message,omitempty" bson:"user_initial_message,omitempty"`
	BotInitialMessage  string  `json:"bot_initial_message,omitempty" bson:"bot_initial_message,omitempty"`
	ModelName          string  `json:"model_name" bson:"model_name"`
}

const (
	DefaultMaxTokens   = 400
	DefaultTemperature = 0.3
	DefaultModelName   = "gpt-4o-mini"
	DefaultBotName     = "Untitled Bot"
)

// ClientAgentConfig is the stored configuration document, keyed by the
// composite (client_id, config_id) pair and replaced wholesale on update.
type ClientAgentConfig struct {
	ClientID    string      `json:"client_id" bson:"client_id"`
	ConfigID    string      `json:"config_id" bson:"config_id"`
	AgentConfig AgentConfig `json:"agent_config" bson:"agent_config"`
	BotName     string      `json:"bot_name" bson:"bot_name"`
	CreatedAt   time.Time   `json:"created_at,omitempty" bson:"created_at,omitempty"`
}

// FetchClientAgentConfig identifies one configuration document.
type FetchClientAgentConfig struct {
	ClientID string `json:"client_id" bson:"client_id"`
	ConfigID string `json:"config_id" bson:"config_id"`
}

// ConfigSummary is the listing projection of a configuration document.
type ConfigSummary struct {
	ConfigID string `json:"config_id" bson:"config_id"`
	BotName  string `json:"bot_name" bson:"bot_name"`
}

// ApplyDefaults fills unset persona fields with their defaults.
func (c *ClientAgentConfig) ApplyDefaults() {
	if c.BotName == "" {
		c.BotName = DefaultBotName
	}
	if c.AgentConfig.MaxTokens == 0 {
		c.AgentConfig.MaxTokens = DefaultMaxTokens
	}
	if c.AgentConfig.Temperature == 0 {
		c.AgentConfig.Temperature = DefaultTemperature
	}
	if c.AgentConfig.ModelName == "" {
		c.AgentConfig.ModelName = DefaultModelName
	}
}
