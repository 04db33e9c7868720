package llmclient

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

// reasoningEffortMap mirrors the teacher's string→SDK-constant table for
// reasoning-capable models.
var reasoningEffortMap = map[string]openai.ReasoningEffort{
	"low":    openai.ReasoningEffortLow,
	"medium": openai.ReasoningEffortMedium,
	"high":   openai.ReasoningEffortHigh,
}

// OpenAICompleter is the default Completer backed by the Chat
// Completions API.
type OpenAICompleter struct {
	client openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAICompleter builds a Completer for the given model.
func NewOpenAICompleter(apiKey, model string, log zerolog.Logger) *OpenAICompleter {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAICompleter{client: client, model: model, log: log.With().Str("component", "llmclient").Logger()}
}

func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64, reasoningEffort string) (CompletionResult, error) {
	req := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toChatMessages(messages),
	}
	if maxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	if temperature > 0 {
		req.Temperature = openai.Float(temperature)
	}
	if effort, ok := reasoningEffortMap[reasoningEffort]; ok {
		req.ReasoningEffort = effort
	}

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return CompletionResult{}, errs.Wrap(errs.UpstreamTransient, "openai chat completion", err).WithField("model", c.model)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, errs.New(errs.UpstreamRefused, "openai returned no choices").WithField("model", c.model)
	}

	result := CompletionResult{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	c.log.Debug().Int("prompt_tokens", result.Usage.PromptTokens).Int("completion_tokens", result.Usage.CompletionTokens).Msg("completion usage")
	return result, nil
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text))
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}
