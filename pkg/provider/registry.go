package provider

import (
	"github.com/rs/zerolog"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
)

// Factory constructs the Provider for one of the seven closed wire shapes
// named in §4.8, keyed the same way domain.ConnectionProfile.Provider and
// tokencount.Provider are: lowercase wire-shape name.
type Factory struct {
	log zerolog.Logger
}

// NewFactory returns a Factory that logs adapter construction the way the
// teacher's connector package logs per-provider client creation.
func NewFactory(log zerolog.Logger) *Factory {
	return &Factory{log: log}
}

// Build returns the adapter for name, or a ConfigurationError if name is
// not one of the seven supported wire shapes (§4.8's closed provider set;
// see DESIGN.md on why Bedrock was considered and rejected as an eighth).
func (f *Factory) Build(name string) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAI(f.log), nil
	case "anthropic":
		return NewAnthropic(f.log), nil
	case "ollama":
		return NewOllama(f.log), nil
	case "openrouter":
		return NewOpenRouter(f.log), nil
	case "openai-compatible":
		return NewOpenAICompatible(f.log), nil
	case "grok":
		return NewGrok(f.log), nil
	case "gab-ai":
		return NewGabAI(f.log), nil
	default:
		return nil, &chaterrors.ConfigurationError{Missing: []string{"unsupported provider: " + name}}
	}
}
