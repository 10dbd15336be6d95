package agent

import "time"

// RemovalPolicy controls how the assistant resolves ambiguous cart-removal
// requests ("remove the boots" when two boots are in the cart).
type RemovalPolicy string

const (
	// RemovalAsk makes the assistant ask which item to remove.
	RemovalAsk RemovalPolicy = "ask"
	// RemovalAuto makes the assistant remove the closest match directly.
	RemovalAuto RemovalPolicy = "auto"
)

// Config holds agent configuration.
type Config struct {
	// LLM settings
	Model        string  `yaml:"model" json:"model"`
	SummaryModel string  `yaml:"summaryModel" json:"summaryModel"`
	MaxTokens    int     `yaml:"maxTokens" json:"maxTokens"`
	Temperature  float64 `yaml:"temperature" json:"temperature"`
	MaxTurns     int     `yaml:"maxTurns" json:"maxTurns"`

	// Context window settings
	Budget         int `yaml:"budget" json:"budget"`
	MinRecentTurns int `yaml:"minRecentTurns" json:"minRecentTurns"`

	// System prompt components
	BasePrompt    string        `yaml:"basePrompt" json:"basePrompt"`
	RemovalPolicy RemovalPolicy `yaml:"removalPolicy" json:"removalPolicy"`

	// Timeouts
	ReasoningTimeout time.Duration `yaml:"reasoningTimeout" json:"reasoningTimeout"`
	ToolTimeout      time.Duration `yaml:"toolTimeout" json:"toolTimeout"`
	SummaryTimeout   time.Duration `yaml:"summaryTimeout" json:"summaryTimeout"`

	// RetryBackoff is the pause before retrying a timed-out read-only tool.
	RetryBackoff time.Duration `yaml:"retryBackoff" json:"retryBackoff"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model:            "claude-sonnet-4-5",
		SummaryModel:     "gpt-4o-mini",
		MaxTokens:        4096,
		Temperature:      0.7,
		MaxTurns:         10,
		Budget:           8000,
		MinRecentTurns:   2,
		RemovalPolicy:    RemovalAsk,
		ReasoningTimeout: 60 * time.Second,
		ToolTimeout:      15 * time.Second,
		SummaryTimeout:   30 * time.Second,
		RetryBackoff:     500 * time.Millisecond,
	}
}

// WithModel sets the reasoning model.
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

// WithSummaryModel sets the summarizer model tier.
func (c Config) WithSummaryModel(model string) Config {
	c.SummaryModel = model
	return c
}

// WithMaxTurns sets the hard ceiling on reasoning/tool round trips.
func (c Config) WithMaxTurns(turns int) Config {
	c.MaxTurns = turns
	return c
}

// WithBudget sets the context-window token budget.
func (c Config) WithBudget(budget int) Config {
	c.Budget = budget
	return c
}

// WithBasePrompt overrides the built-in system prompt.
func (c Config) WithBasePrompt(prompt string) Config {
	c.BasePrompt = prompt
	return c
}

// WithRemovalPolicy sets the ambiguous-removal behavior.
func (c Config) WithRemovalPolicy(p RemovalPolicy) Config {
	c.RemovalPolicy = p
	return c
}
