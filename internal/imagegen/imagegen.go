// Package imagegen implements the image generator (spec §4.7):
// personality-keyed image prompt rendering, optional reference-photo
// conditioning, a caption/title generated by a small secondary LLM
// call, and bounded retries with a non-fatal failure result.
package imagegen

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/llmclient"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/msggen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
)

// maxRetries is the retry budget before returning a structured,
// non-fatal failure (spec §4.7: "Retries: up to 2").
const maxRetries = 2

// captionMaxTokens/captionTemperature mirror msggen's image_caption
// use-case row, duplicated here rather than importing msggen's table
// directly since the caption call's prompt shape is specific to this
// package.
const (
	captionMaxTokens   = 60
	captionTemperature = 0.8
)

// Request is one call into the generator.
type Request struct {
	PersonDisplayName string
	Personality       personality.Key
	BirthdayMessage   string // for stylistic consistency with the text already generated
	Quality           string
	Size              string
	UseReferencePhoto bool
	ReferencePhoto    *llmclient.ReferenceImage
}

// Result is a successful generation.
type Result struct {
	ImageData []byte
	MimeType  string
	Caption   string
}

// FailedResult is returned on exhausted retries (spec §4.7: "return a
// structured ImageFailed result; the pipeline treats image failure as
// non-fatal").
type FailedResult struct {
	Reason string
}

// Generator renders prompts, calls an llmclient.ImageGen for the image
// and an llmclient.Completer for the caption.
type Generator struct {
	images    llmclient.ImageGen
	completer llmclient.Completer
	log       zerolog.Logger
}

// New builds a Generator around the given ImageGen and Completer.
func New(images llmclient.ImageGen, completer llmclient.Completer, log zerolog.Logger) *Generator {
	return &Generator{images: images, completer: completer, log: log.With().Str("component", "imagegen").Logger()}
}

// Generate runs render → call → retry → caption, or returns a
// FailedResult after exhausting retries.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, *FailedResult) {
	tmpl := personality.Lookup(req.Personality)
	prompt := renderPrompt(tmpl, req)

	var reference *llmclient.ReferenceImage
	if req.UseReferencePhoto {
		reference = req.ReferencePhoto
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		img, err := g.images.Generate(ctx, prompt, req.Quality, req.Size, reference)
		if err != nil {
			lastErr = err
			g.log.Warn().Err(err).Int("attempt", attempt).Msg("image generation attempt failed")
			continue
		}

		caption := g.generateCaption(ctx, tmpl, req)
		return &Result{ImageData: img.Data, MimeType: img.MimeType, Caption: caption}, nil
	}

	g.log.Warn().Err(lastErr).Msg("image generation exhausted retries")
	reason := "unknown error"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return nil, &FailedResult{Reason: reason}
}

func renderPrompt(tmpl personality.Template, req Request) string {
	prompt := tmpl.ImagePromptBase
	replacer := strings.NewReplacer(
		"{name}", req.PersonDisplayName,
		"{message}", req.BirthdayMessage,
	)
	return replacer.Replace(prompt) + fmt.Sprintf(" Featuring %s.", req.PersonDisplayName)
}

// generateCaption makes a small, best-effort secondary LLM call for an
// image caption/title; a failure here does not fail the whole image
// result, it just leaves the caption empty.
func (g *Generator) generateCaption(ctx context.Context, tmpl personality.Template, req Request) string {
	if g.completer == nil {
		return ""
	}
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Text: "Write a short, punchy one-line caption (under 8 words) for a birthday celebration image. No quotes, no emoji."},
		{Role: llmclient.RoleUser, Text: fmt.Sprintf("The image is for %s. Context: %s", req.PersonDisplayName, req.BirthdayMessage)},
	}
	res, err := g.completer.Complete(ctx, messages, captionMaxTokens, captionTemperature, "")
	if err != nil {
		g.log.Debug().Err(err).Msg("caption generation failed, leaving caption empty")
		return ""
	}
	return msggen.Normalize(res.Text)
}
