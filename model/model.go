package model

import (
	"github.com/google/uuid"
)

type Model struct {
	ID            uuid.UUID
	Provider      ProviderKind
	Name          string
	Capabilities  []Capability
	ContextWindow int64
	Pricing       ModelPricing
}

type ProviderKind string

const (
	ProviderKindAnthropic ProviderKind = "anthropic"
	ProviderKindOpenAI    ProviderKind = "openai"
)

type Capability string

const (
	CapabilityImage            Capability = "image"
	CapabilityPromptCache      Capability = "prompt_cache"
	CapabilityExtendedThinking Capability = "extended_thinking"
)

// ModelPricing is USD per million tokens.
type ModelPricing struct {
	Input      float64
	Output     float64
	CacheWrite float64
	CacheRead  float64
}

func SupportedModels(provider ProviderKind) []Model {
	switch provider {
	case ProviderKindAnthropic:
		return SupportedAnthropicModels()
	case ProviderKindOpenAI:
		return SupportedOpenAIModels()
	}

	return nil
}

func LookupModel(name string) (Model, bool) {
	for _, provider := range []ProviderKind{ProviderKindAnthropic, ProviderKindOpenAI} {
		for _, m := range SupportedModels(provider) {
			if m.Name == name {
				return m, true
			}
		}
	}
	return Model{}, false
}
