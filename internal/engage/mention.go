package engage

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/msggen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/observance"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/timemodel"
)

// Category classifies an @bot mention's question (spec §4.11 mention
// handler step 3).
type Category string

const (
	CategorySpecialDays Category = "special_days"
	CategoryBirthdays   Category = "birthdays"
	CategoryUpcoming    Category = "upcoming"
	CategoryHelp        Category = "help"
	CategoryGeneral     Category = "general"
)

var mentionToken = regexp.MustCompile(`<@[A-Z0-9]+>`)

// classifyOrder is scanned in order; the first keyword hit wins, so more
// specific categories are listed before the generic fallback.
var classifyOrder = []struct {
	category Category
	keywords []string
}{
	{CategorySpecialDays, []string{"special day", "observance", "holiday", "international day"}},
	{CategoryUpcoming, []string{"upcoming", "next birthday", "who's next", "coming up"}},
	{CategoryBirthdays, []string{"birthday", "born"}},
	{CategoryHelp, []string{"help", "how do i", "what can you", "command"}},
}

// Classify implements step 3: keyword-scan the stripped text into one
// of the five categories, defaulting to general.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	for _, c := range classifyOrder {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return CategoryGeneral
}

// StripMention removes the leading @bot token from the message text
// (spec §4.11 step 2).
func StripMention(text string) string {
	return strings.TrimSpace(mentionToken.ReplaceAllString(text, ""))
}

// categoryFallback is the structured, category-specific fallback used
// when the LLM call itself is exhausted (spec §4.11 step 5), distinct
// from msggen's personality-driven birthday-message fallback.
var categoryFallback = map[Category]string{
	CategorySpecialDays: "I couldn't look up today's special days right now — try again shortly.",
	CategoryBirthdays:   "I couldn't check birthdays right now — try again shortly.",
	CategoryUpcoming:    "I couldn't check upcoming birthdays right now — try again shortly.",
	CategoryHelp:        "I can announce birthdays, track special days, and answer questions about either — just mention me.",
	CategoryGeneral:     "I'm not sure how to help with that — try asking about birthdays or special days.",
}

// MentionHandler answers @bot mentions with rate-limiting, keyword
// classification, and a typed context built per category.
type MentionHandler struct {
	limiter     *TokenBucket
	generator   *msggen.Generator
	st          *store.Store
	aggregator  *observance.Aggregator
	personality personality.Key
	log         zerolog.Logger
}

// NewMentionHandler builds a MentionHandler. aggregator may be nil (the
// special_days category then reports that no observance data is
// available; the birthday categories read only the store).
func NewMentionHandler(limiter *TokenBucket, gen *msggen.Generator, st *store.Store, aggregator *observance.Aggregator, personalityKey personality.Key, log zerolog.Logger) *MentionHandler {
	return &MentionHandler{
		limiter: limiter, generator: gen, st: st, aggregator: aggregator,
		personality: personalityKey, log: log.With().Str("component", "engage.mention").Logger(),
	}
}

// Handle implements the mention handler's six steps (spec §4.11).
// reply posts the answer, choosing threaded vs. new-thread per the
// inbound event's shape.
func (h *MentionHandler) Handle(ctx context.Context, evt platform.Event, reply func(ctx context.Context, text string) error) error {
	now := time.Now()
	ok, resetAt := h.limiter.Allow(evt.UserID, now)
	if !ok {
		remaining := int(math.Ceil(resetAt.Sub(now).Seconds()))
		if remaining < 1 {
			remaining = 1
		}
		return reply(ctx, fmt.Sprintf("You're asking a bit fast — try again in %d seconds.", remaining))
	}

	text := StripMention(evt.Text)
	category := Classify(text)
	contextText := h.buildContext(category, now)

	result, err := h.generator.Generate(ctx, msggen.Request{
		Personality: h.personality,
		Context:     msggen.Context{ProfileDetails: contextText},
		UseCase:     msggen.UseCaseMentionAnswer,
	})
	if err != nil {
		return errs.Wrap(errs.UpstreamTransient, "mention answer generation", err)
	}

	answer := result.Text
	if result.UsedFallback {
		answer = categoryFallback[category]
	}
	return reply(ctx, answer)
}

// buildContext assembles the typed context object per category (spec
// §4.11 step 4): today's observances, upcoming birthdays, or a static
// capability description.
func (h *MentionHandler) buildContext(category Category, now time.Time) string {
	switch category {
	case CategorySpecialDays:
		if h.aggregator == nil {
			return "No observance data is available right now."
		}
		days := h.aggregator.Lookup(now.Format("01-02"))
		if len(days) == 0 {
			return "No special days are recorded for today."
		}
		names := make([]string, 0, len(days))
		for _, d := range days {
			names = append(names, d.Name)
		}
		return "Today's special days: " + strings.Join(names, ", ")

	case CategoryBirthdays:
		names := h.birthdaysOn(now.Month(), now.Day())
		if len(names) == 0 {
			return "No birthdays are recorded for today."
		}
		return "Today's birthdays: " + strings.Join(names, ", ")

	case CategoryUpcoming:
		names := h.upcomingBirthdays(now, 7)
		if len(names) == 0 {
			return "No birthdays in the next 7 days."
		}
		return "Upcoming birthdays (next 7 days): " + strings.Join(names, ", ")

	case CategoryHelp:
		return "Capabilities: fleet-wide and timezone-aware birthday celebrations, special-day announcements, a live dashboard, and admin commands to add/remove/pause birthdays."

	default:
		return ""
	}
}

func (h *MentionHandler) birthdaysOn(month time.Month, day int) []string {
	records, err := h.st.LoadBirthdays()
	if err != nil {
		return nil
	}
	var names []string
	for userID, rec := range records {
		if !rec.Preferences.Active {
			continue
		}
		cm, cd := timemodel.CelebrationDate(rec.Month, rec.Day, time.Now().Year())
		if cm == int(month) && cd == day {
			names = append(names, "<@"+userID+">")
		}
	}
	return names
}

func (h *MentionHandler) upcomingBirthdays(now time.Time, days int) []string {
	records, err := h.st.LoadBirthdays()
	if err != nil {
		return nil
	}
	var names []string
	for d := 0; d <= days; d++ {
		target := now.AddDate(0, 0, d)
		for userID, rec := range records {
			if !rec.Preferences.Active {
				continue
			}
			cm, cd := timemodel.CelebrationDate(rec.Month, rec.Day, target.Year())
			if cm == int(target.Month()) && cd == target.Day() {
				names = append(names, "<@"+userID+">")
			}
		}
	}
	return names
}
