// Package msggen implements the message generator (spec §4.6):
// personality-keyed prompt composition, LLM completion with
// use-case-keyed token/temperature tables, retry-then-fallback on
// failure, and chat-markup normalization.
package msggen

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/llmclient"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
)

// UseCase keys the token-limit/temperature tables (spec §4.6 step 3:
// "drawn from token-limit and temperature tables keyed by use-case").
type UseCase string

const (
	UseCaseBirthday      UseCase = "birthday"
	UseCaseSpecialDay    UseCase = "special_day"
	UseCaseImageCaption  UseCase = "image_caption"
	UseCaseMentionAnswer UseCase = "mention_answer"
)

type useCaseParams struct {
	maxTokens       int
	temperature     float64
	reasoningEffort string
}

// useCaseTable is the use-case-keyed generation-parameter table.
var useCaseTable = map[UseCase]useCaseParams{
	UseCaseBirthday:      {maxTokens: 300, temperature: 0.9, reasoningEffort: ""},
	UseCaseSpecialDay:    {maxTokens: 250, temperature: 0.7, reasoningEffort: ""},
	UseCaseImageCaption:  {maxTokens: 60, temperature: 0.8, reasoningEffort: ""},
	UseCaseMentionAnswer: {maxTokens: 400, temperature: 0.4, reasoningEffort: "low"},
}

// maxRetries is the number of LLM retries before falling back to a
// template (spec §4.6 step 4: "retry up to 2 times").
const maxRetries = 2

// invalidMentionRatioThreshold forces regeneration when too many
// @mentions in a generated message don't resolve to a present person
// (spec §4.8.3 decision logic: "invalid_ratio > 0.3 forces
// regeneration").
const invalidMentionRatioThreshold = 0.3

// Person is one celebrant referenced in a generated message.
type Person struct {
	UserID        string
	DisplayName   string
	Age           *int
	StarSign      string
	HistoricalFact string
	ProfileDetail string
}

// Context carries the non-person inputs to a generation request (spec
// §4.6 input shape).
type Context struct {
	Age            *int
	StarSign       string
	HistoricalFact string
	ProfileDetails string
}

// Request is one call into the generator.
type Request struct {
	People      []Person
	Personality personality.Key
	Context     Context
	UseCase     UseCase
	Model       string // not read by Generate; no token budgeting is done here
}

// Result is what the generator hands back to the pipeline.
type Result struct {
	Text        string
	UsedFallback bool
	Usage       llmclient.Usage
}

// Generator composes prompts, calls an llmclient.Completer, and falls
// back to personality templates on exhausted retries.
type Generator struct {
	completer llmclient.Completer
	log       zerolog.Logger
}

// New builds a Generator around the given Completer (swappable per
// spec §6's "abstract Completer.complete(...)").
func New(completer llmclient.Completer, log zerolog.Logger) *Generator {
	return &Generator{completer: completer, log: log.With().Str("component", "msggen").Logger()}
}

// Generate runs the full compose → call → retry → fallback → normalize
// pipeline described in spec §4.6.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	tmpl := personality.Lookup(req.Personality)
	params, ok := useCaseTable[req.UseCase]
	if !ok {
		params = useCaseTable[UseCaseBirthday]
	}

	messages := composeMessages(tmpl, req)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := g.completer.Complete(ctx, messages, params.maxTokens, params.temperature, params.reasoningEffort)
		if err != nil {
			lastErr = err
			g.log.Warn().Err(err).Int("attempt", attempt).Msg("message generation attempt failed")
			continue
		}
		text := Normalize(res.Text)
		if needsRegeneration(text, req.People) && attempt < maxRetries {
			g.log.Debug().Int("attempt", attempt).Msg("regenerating: mention ratio or mention count signal tripped")
			continue
		}
		return Result{Text: text, Usage: res.Usage}, nil
	}

	g.log.Warn().Err(lastErr).Msg("message generation exhausted retries, using fallback template")
	fallback := interpolateFallback(tmpl.FallbackTemplate, req.People)
	return Result{Text: fallback, UsedFallback: true}, nil
}

func composeMessages(tmpl personality.Template, req Request) []llmclient.Message {
	system := fmt.Sprintf(
		"You write short celebratory chat messages. %s\nAvailable emoji vocabulary: %s.",
		tmpl.SystemExtension, strings.Join(tmpl.EmojiVocabulary, " "),
	)

	var b strings.Builder
	b.WriteString("Compose the message now. Constraints:\n")
	b.WriteString("- Use Slack-style markup only: *bold*, _italic_, <url|text> links.\n")
	b.WriteString("- Do not emit raw HTML.\n")
	b.WriteString(fmt.Sprintf("- Mention every person exactly once, using their given mention tokens: %s\n", mentionTokens(req.People)))
	if req.Context.Age != nil {
		b.WriteString(fmt.Sprintf("- Turning %d today.\n", *req.Context.Age))
	}
	if req.Context.StarSign != "" {
		b.WriteString(fmt.Sprintf("- Star sign: %s.\n", req.Context.StarSign))
	}
	if req.Context.HistoricalFact != "" {
		b.WriteString(fmt.Sprintf("- Historical note to optionally weave in: %s\n", req.Context.HistoricalFact))
	}
	if req.Context.ProfileDetails != "" {
		b.WriteString(fmt.Sprintf("- Profile context: %s\n", req.Context.ProfileDetails))
	}

	return []llmclient.Message{
		{Role: llmclient.RoleSystem, Text: system},
		{Role: llmclient.RoleUser, Text: b.String()},
	}
}

func mentionTokens(people []Person) string {
	tokens := make([]string, 0, len(people))
	for _, p := range people {
		tokens = append(tokens, fmt.Sprintf("<@%s>", p.UserID))
	}
	return strings.Join(tokens, ", ")
}

// needsRegeneration implements the two signals from spec §4.8.3: too
// many unresolved mention-like tokens relative to real mentions, or
// fewer real mentions than the number of people present.
func needsRegeneration(text string, people []Person) bool {
	if len(people) == 0 {
		return false
	}
	mentionLike := strings.Count(text, "<@")
	valid := 0
	for _, p := range people {
		if strings.Contains(text, fmt.Sprintf("<@%s>", p.UserID)) {
			valid++
		}
	}
	if mentionLike == 0 {
		return true
	}
	invalidRatio := float64(mentionLike-valid) / float64(mentionLike)
	if invalidRatio > invalidMentionRatioThreshold {
		return true
	}
	if valid < len(people) {
		return true
	}
	return false
}

// Normalize converts common LLM chat-markup idioms to Slack-style
// markup and strips any HTML tags (spec §4.6 step 5).
func Normalize(text string) string {
	text = boldPattern.ReplaceAllString(text, "*$1*")
	text = italicPattern.ReplaceAllString(text, "_$1_")
	text = linkPattern.ReplaceAllString(text, "<$2|$1>")
	text = htmlTagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
