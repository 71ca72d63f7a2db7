// Package openrouter implements llm.Provider against the OpenRouter API.
//
// OpenRouter speaks the OpenAI chat-completions wire format and fronts many
// upstream vendors, so one adapter covers every council member. The adapter
// additionally supports OpenRouter's reasoning-effort extension and maps
// upstream HTTP failures onto the unified llm.Error taxonomy.
package openrouter
