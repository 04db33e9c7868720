package msggen

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/llmclient"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
)

type scriptedCompleter struct {
	responses []llmclient.CompletionResult
	errs      []error
	calls     int
}

func (s *scriptedCompleter) Complete(ctx context.Context, messages []llmclient.Message, maxTokens int, temperature float64, reasoningEffort string) (llmclient.CompletionResult, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return llmclient.CompletionResult{}, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return llmclient.CompletionResult{}, assert.AnError
}

func onePerson() []Person {
	return []Person{{UserID: "U1", DisplayName: "Alex"}}
}

func TestNormalizeConvertsMarkdownToSlackMarkup(t *testing.T) {
	in := "**bold** and __italic__ and [click](https://example.com) <b>raw html</b>"
	out := Normalize(in)
	assert.Contains(t, out, "*bold*")
	assert.Contains(t, out, "_italic_")
	assert.Contains(t, out, "<https://example.com|click>")
	assert.NotContains(t, out, "<b>")
	assert.NotContains(t, out, "</b>")
}

func TestNormalizePreservesSlackMentionsAndLinks(t *testing.T) {
	in := "Happy birthday <@U123>! See <https://example.com|here>."
	out := Normalize(in)
	assert.Equal(t, in, out)
}

func TestGenerateReturnsFirstGoodCompletion(t *testing.T) {
	c := &scriptedCompleter{responses: []llmclient.CompletionResult{
		{Text: "Happy birthday <@U1>! 🎂"},
	}}
	g := New(c, zerolog.Nop())
	res, err := g.Generate(context.Background(), Request{
		People:      onePerson(),
		Personality: personality.Standard,
		UseCase:     UseCaseBirthday,
	})
	require.NoError(t, err)
	assert.Equal(t, "Happy birthday <@U1>! 🎂", res.Text)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, 1, c.calls)
}

func TestGenerateRegeneratesWhenMentionMissing(t *testing.T) {
	c := &scriptedCompleter{responses: []llmclient.CompletionResult{
		{Text: "Happy birthday to our team member!"},
		{Text: "Happy birthday <@U1>! 🎂"},
	}}
	g := New(c, zerolog.Nop())
	res, err := g.Generate(context.Background(), Request{
		People:      onePerson(),
		Personality: personality.Standard,
		UseCase:     UseCaseBirthday,
	})
	require.NoError(t, err)
	assert.Equal(t, "Happy birthday <@U1>! 🎂", res.Text)
	assert.Equal(t, 2, c.calls)
}

func TestGenerateFallsBackAfterExhaustedRetries(t *testing.T) {
	c := &scriptedCompleter{errs: []error{assert.AnError, assert.AnError, assert.AnError}}
	g := New(c, zerolog.Nop())
	res, err := g.Generate(context.Background(), Request{
		People:      onePerson(),
		Personality: personality.Standard,
		UseCase:     UseCaseBirthday,
	})
	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	assert.Contains(t, res.Text, "<@U1>")
	assert.Equal(t, maxRetries+1, c.calls)
}

func TestNeedsRegenerationHighInvalidRatio(t *testing.T) {
	people := []Person{{UserID: "U1"}}
	text := "Hey <@U2> <@U3> <@U4> wish <@U1> happy birthday"
	assert.True(t, needsRegeneration(text, people))
}

func TestNeedsRegenerationAllMentionsValid(t *testing.T) {
	people := []Person{{UserID: "U1"}, {UserID: "U2"}}
	text := "Happy birthday <@U1> and <@U2>!"
	assert.False(t, needsRegeneration(text, people))
}

func TestInterpolateFallbackSubstitutesMentions(t *testing.T) {
	tmpl := personality.Lookup(personality.Pirate)
	out := interpolateFallback(tmpl.FallbackTemplate, []Person{{UserID: "U9"}})
	assert.Contains(t, out, "<@U9>")
	assert.NotContains(t, out, "{mentions}")
}
