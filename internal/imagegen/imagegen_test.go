package imagegen

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/llmclient"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
)

type scriptedImageGen struct {
	results []llmclient.ImageResult
	errs    []error
	calls   int
	lastRef *llmclient.ReferenceImage
}

func (s *scriptedImageGen) Generate(ctx context.Context, prompt, quality, size string, reference *llmclient.ReferenceImage) (llmclient.ImageResult, error) {
	i := s.calls
	s.calls++
	s.lastRef = reference
	if i < len(s.errs) && s.errs[i] != nil {
		return llmclient.ImageResult{}, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return llmclient.ImageResult{}, assert.AnError
}

type scriptedCompleter struct {
	text string
	err  error
}

func (s *scriptedCompleter) Complete(ctx context.Context, messages []llmclient.Message, maxTokens int, temperature float64, reasoningEffort string) (llmclient.CompletionResult, error) {
	if s.err != nil {
		return llmclient.CompletionResult{}, s.err
	}
	return llmclient.CompletionResult{Text: s.text}, nil
}

func TestGenerateSucceedsWithCaption(t *testing.T) {
	images := &scriptedImageGen{results: []llmclient.ImageResult{{Data: []byte{1, 2, 3}, MimeType: "image/png"}}}
	completer := &scriptedCompleter{text: "A pup's big day!"}
	g := New(images, completer, zerolog.Nop())

	res, failed := g.Generate(context.Background(), Request{
		PersonDisplayName: "Alex",
		Personality:       personality.Standard,
		BirthdayMessage:   "Happy birthday Alex!",
		Quality:           "standard",
		Size:              "1024x1024",
	})

	require.Nil(t, failed)
	require.NotNil(t, res)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Equal(t, "A pup's big day!", res.Caption)
}

func TestGenerateRetriesThenFailsNonFatally(t *testing.T) {
	images := &scriptedImageGen{errs: []error{assert.AnError, assert.AnError, assert.AnError}}
	g := New(images, nil, zerolog.Nop())

	res, failed := g.Generate(context.Background(), Request{
		PersonDisplayName: "Alex",
		Personality:       personality.Standard,
	})

	assert.Nil(t, res)
	require.NotNil(t, failed)
	assert.NotEmpty(t, failed.Reason)
	assert.Equal(t, maxRetries+1, images.calls)
}

func TestGeneratePassesReferencePhotoWhenEnabled(t *testing.T) {
	images := &scriptedImageGen{results: []llmclient.ImageResult{{Data: []byte{9}, MimeType: "image/jpeg"}}}
	ref := &llmclient.ReferenceImage{Data: []byte{9, 9}, MimeType: "image/jpeg"}
	g := New(images, nil, zerolog.Nop())

	_, failed := g.Generate(context.Background(), Request{
		PersonDisplayName: "Alex",
		Personality:       personality.Standard,
		UseReferencePhoto: true,
		ReferencePhoto:    ref,
	})

	require.Nil(t, failed)
	assert.Same(t, ref, images.lastRef)
}

func TestGenerateOmitsReferenceWhenDisabled(t *testing.T) {
	images := &scriptedImageGen{results: []llmclient.ImageResult{{Data: []byte{9}, MimeType: "image/jpeg"}}}
	ref := &llmclient.ReferenceImage{Data: []byte{9, 9}, MimeType: "image/jpeg"}
	g := New(images, nil, zerolog.Nop())

	_, failed := g.Generate(context.Background(), Request{
		PersonDisplayName: "Alex",
		Personality:       personality.Standard,
		UseReferencePhoto: false,
		ReferencePhoto:    ref,
	})

	require.Nil(t, failed)
	assert.Nil(t, images.lastRef)
}

func TestGenerateCaptionFailureLeavesCaptionEmpty(t *testing.T) {
	images := &scriptedImageGen{results: []llmclient.ImageResult{{Data: []byte{1}, MimeType: "image/png"}}}
	completer := &scriptedCompleter{err: assert.AnError}
	g := New(images, completer, zerolog.Nop())

	res, failed := g.Generate(context.Background(), Request{PersonDisplayName: "Alex", Personality: personality.Standard})

	require.Nil(t, failed)
	require.NotNil(t, res)
	assert.Empty(t, res.Caption)
}

func TestRenderPromptInterpolatesPlaceholders(t *testing.T) {
	tmpl := personality.Lookup(personality.Pirate)
	tmpl.ImagePromptBase = "A {name} celebration: {message}"
	prompt := renderPrompt(tmpl, Request{PersonDisplayName: "Sam", BirthdayMessage: "Ahoy!"})
	assert.Contains(t, prompt, "Sam")
	assert.Contains(t, prompt, "Ahoy!")
}
