// Package llmclient defines the abstract language-model and
// image-generation contracts the core consumes (spec §6: "Treated as
// abstract Completer.complete(...) and ImageGen.generate(...)"), plus a
// default adapter wrapping the OpenAI API.
package llmclient

import "context"

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a completion request.
type Message struct {
	Role Role
	Text string
}

// Usage reports token accounting for a completed call (spec §6: "Each
// returns usage statistics that are logged").
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResult is a Completer.Complete response.
type CompletionResult struct {
	Text  string
	Usage Usage
}

// Completer is the abstract text-generation contract.
type Completer interface {
	Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64, reasoningEffort string) (CompletionResult, error)
}

// ReferenceImage is an optional conditioning image for generation.
type ReferenceImage struct {
	Data     []byte
	MimeType string
}

// ImageResult is an ImageGen.Generate response.
type ImageResult struct {
	Data     []byte
	MimeType string
	Usage    Usage
}

// ImageGen is the abstract image-generation contract.
type ImageGen interface {
	Generate(ctx context.Context, prompt string, quality, size string, reference *ReferenceImage) (ImageResult, error)
}
