// Package tokencount implements the Token Estimator (C3, §4.3): a pure,
// deliberately conservative character-to-token approximation rather than a
// real tokenizer. The teacher repo reaches for github.com/pkoukk/tiktoken-go
// for exact OpenAI token counts (pkg/aitokens/tokenizer.go); that approach is
// not used here because §4.3 specifies a provider-tuned *approximation* by
// design, to over-estimate rather than risk exceeding a non-OpenAI
// provider's context window with an OpenAI-specific tokenizer (see
// DESIGN.md for the full justification).
package tokencount

import (
	"math"
	"strings"
)

// Provider names a wire protocol whose character-per-token ratio may differ
// from the default. Values are illustrative of observed provider tendencies,
// not measured constants.
type Provider string

const (
	ProviderOpenAI         Provider = "openai"
	ProviderAnthropic      Provider = "anthropic"
	ProviderOllama         Provider = "ollama"
	ProviderOpenRouter     Provider = "openrouter"
	ProviderOpenAICompat   Provider = "openai-compatible"
	ProviderGrok           Provider = "grok"
	ProviderGabAI          Provider = "gab-ai"
)

// defaultCharsPerToken is the conservative default (§4.3).
const defaultCharsPerToken = 3.5

// safetyBuffer is applied uniformly across all providers (§4.3, and see the
// Open Question in spec §9 about whether this is deliberate).
const safetyBuffer = 0.05

// perMessageOverhead is the flat token cost added per message, before the
// role label's own estimated tokens (§4.3).
const perMessageOverhead = 4

// perConversationOverhead is the flat token cost added once per assembled
// conversation (§4.3).
const perConversationOverhead = 3

var charsPerToken = map[Provider]float64{
	ProviderOpenAI:       3.5,
	ProviderAnthropic:    3.6,
	ProviderOllama:       3.3,
	ProviderOpenRouter:   3.5,
	ProviderOpenAICompat: 3.5,
	ProviderGrok:         3.4,
	ProviderGabAI:        3.5,
}

// ratioFor returns the chars-per-token ratio for provider, falling back to
// the conservative default for unknown or empty providers.
func ratioFor(provider Provider) float64 {
	if r, ok := charsPerToken[provider]; ok && r > 0 {
		return r
	}
	return defaultCharsPerToken
}

// Estimate returns the approximate token count for text under provider's
// ratio: ceil(runeCount(text) / charsPerToken[provider] * (1 + safetyBuffer)),
// with the buffer applied before rounding up.
func Estimate(text string, provider Provider) int {
	if text == "" {
		return 0
	}
	raw := float64(len([]rune(text))) / ratioFor(provider)
	return int(math.Ceil(raw * (1 + safetyBuffer)))
}

// Message is the minimal shape the estimator needs: a role label and text
// content. Higher-level message types (domain.MessageEvent,
// provider.UnifiedMessage) are adapted into this at call sites.
type Message struct {
	Role string
	Text string
}

// EstimateMessage returns the token cost of a single message including its
// per-message overhead and the estimated cost of the role label itself.
func EstimateMessage(m Message, provider Provider) int {
	return perMessageOverhead + Estimate(m.Role, provider) + Estimate(m.Text, provider)
}

// EstimateConversation returns the total estimated token cost of an ordered
// list of messages, including per-message and per-conversation overhead.
func EstimateConversation(messages []Message, provider Provider) int {
	total := perConversationOverhead
	for _, m := range messages {
		total += EstimateMessage(m, provider)
	}
	return total
}

// JoinForEstimate concatenates text blocks with newlines, a convenience for
// estimating a combined block (e.g. system + persona + character) before
// they are split back into individual provider messages.
func JoinForEstimate(parts ...string) string {
	return strings.Join(parts, "\n")
}
