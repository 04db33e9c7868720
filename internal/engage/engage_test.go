package engage

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/llmclient"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/msggen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/threadtracker"
)

type fakePlatform struct {
	reactions   []string
	reactionErr error
	threaded    int
}

func (f *fakePlatform) PostMessage(ctx context.Context, channel, text string, blocks []platform.Block) (string, error) {
	return "1.1", nil
}
func (f *fakePlatform) PostThreaded(ctx context.Context, channel, threadTS, text string, blocks []platform.Block) error {
	f.threaded++
	return nil
}
func (f *fakePlatform) UploadFile(ctx context.Context, data []byte, filename, title, channel string) (string, error) {
	return "F1", nil
}
func (f *fakePlatform) FilesInfo(ctx context.Context, fileID string) (platform.FileInfo, error) {
	return platform.FileInfo{}, nil
}
func (f *fakePlatform) AddReaction(ctx context.Context, channel, ts, name string) error {
	f.reactions = append(f.reactions, name)
	return f.reactionErr
}
func (f *fakePlatform) UsersInfo(ctx context.Context, userID string) (platform.DisplayProfile, error) {
	return platform.DisplayProfile{UserID: userID}, nil
}
func (f *fakePlatform) ConversationsMembers(ctx context.Context, channelID, cursor string) ([]string, string, error) {
	return nil, "", nil
}
func (f *fakePlatform) ConversationsOpen(ctx context.Context, userID string) (string, error) {
	return "D1", nil
}
func (f *fakePlatform) EmojiList(ctx context.Context) (map[string]string, error) { return nil, nil }
func (f *fakePlatform) CanvasCreate(ctx context.Context, channel, markdown string) (string, error) {
	return "", nil
}
func (f *fakePlatform) CanvasEdit(ctx context.Context, canvasID, markdown string) error { return nil }
func (f *fakePlatform) CanvasDelete(ctx context.Context, canvasID string) error         { return nil }
func (f *fakePlatform) SetTopic(ctx context.Context, channel, topic string) error       { return nil }
func (f *fakePlatform) SetPurpose(ctx context.Context, channel, purpose string) error   { return nil }

func newTestTracker(t *testing.T) *threadtracker.Tracker {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return threadtracker.New(st, 24*time.Hour)
}

func TestReplyHandlerIgnoresBirthdayPersonReply(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()
	tr.Track("C1", "1.1", threadtracker.ThreadBirthday, "standard", []string{"U1"}, nil, now)

	plat := &fakePlatform{}
	h := NewReplyHandler(tr, plat, false, rand.New(rand.NewSource(1)), zerolog.Nop())

	err := h.Handle(context.Background(), platform.Event{
		ChannelID: "C1", ThreadTS: "1.1", TS: "1.2", UserID: "U1", Text: "thank you!",
	})
	require.NoError(t, err)
	assert.Empty(t, plat.reactions)
}

func TestReplyHandlerReactsToNonBirthdayPersonReply(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()
	tr.Track("C1", "1.1", threadtracker.ThreadBirthday, "standard", []string{"U1"}, nil, now)

	plat := &fakePlatform{}
	h := NewReplyHandler(tr, plat, false, rand.New(rand.NewSource(1)), zerolog.Nop())

	err := h.Handle(context.Background(), platform.Event{
		ChannelID: "C1", ThreadTS: "1.1", TS: "1.2", UserID: "U2", Text: "happy birthday!!",
	})
	require.NoError(t, err)
	require.Len(t, plat.reactions, 1)

	th, ok := tr.Get("C1", "1.1", now)
	require.True(t, ok)
	assert.Equal(t, 1, th.ReactionsCount)
}

func TestReplyHandlerTreatsAlreadyReactedAsSuccess(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()
	tr.Track("C1", "1.1", threadtracker.ThreadBirthday, "standard", []string{"U1"}, nil, now)

	plat := &fakePlatform{reactionErr: errs.New(errs.Duplicate, "already reacted")}
	h := NewReplyHandler(tr, plat, false, rand.New(rand.NewSource(1)), zerolog.Nop())

	err := h.Handle(context.Background(), platform.Event{
		ChannelID: "C1", ThreadTS: "1.1", TS: "1.2", UserID: "U2", Text: "nice",
	})
	assert.NoError(t, err)
}

func TestReplyHandlerStopsReactingAtCap(t *testing.T) {
	tr := newTestTracker(t)
	now := time.Now()
	tr.Track("C1", "1.1", threadtracker.ThreadBirthday, "standard", []string{"U1"}, nil, now)
	for i := 0; i < MaxReactionsPerThread; i++ {
		tr.IncrementReactions("C1", "1.1")
	}

	plat := &fakePlatform{}
	h := NewReplyHandler(tr, plat, false, rand.New(rand.NewSource(1)), zerolog.Nop())
	err := h.Handle(context.Background(), platform.Event{
		ChannelID: "C1", ThreadTS: "1.1", TS: "1.2", UserID: "U2", Text: "woo",
	})
	require.NoError(t, err)
	assert.Empty(t, plat.reactions)
}

func TestClassifyPicksMostSpecificCategory(t *testing.T) {
	assert.Equal(t, CategorySpecialDays, Classify("is today a special day?"))
	assert.Equal(t, CategoryUpcoming, Classify("any upcoming birthdays?"))
	assert.Equal(t, CategoryBirthdays, Classify("whose birthday is it"))
	assert.Equal(t, CategoryHelp, Classify("help, what can you do"))
	assert.Equal(t, CategoryGeneral, Classify("tell me a joke"))
}

func TestStripMentionRemovesToken(t *testing.T) {
	assert.Equal(t, "what's today?", StripMention("<@U123BOT> what's today?"))
}

func TestTokenBucketEnforcesWindowAndMax(t *testing.T) {
	b := NewTokenBucket(60*time.Second, 2)
	now := time.Now()
	ok1, _ := b.Allow("U1", now)
	ok2, _ := b.Allow("U1", now.Add(time.Second))
	ok3, resetAt := b.Allow("U1", now.Add(2*time.Second))
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
	assert.True(t, resetAt.After(now))
}

func TestTokenBucketResetsAfterWindowElapses(t *testing.T) {
	b := NewTokenBucket(10*time.Second, 1)
	now := time.Now()
	ok1, _ := b.Allow("U1", now)
	ok2, _ := b.Allow("U1", now.Add(11*time.Second))
	assert.True(t, ok1)
	assert.True(t, ok2)
}

type stubCompleter struct {
	text string
	err  error
}

func (s stubCompleter) Complete(ctx context.Context, messages []llmclient.Message, maxTokens int, temperature float64, reasoningEffort string) (llmclient.CompletionResult, error) {
	if s.err != nil {
		return llmclient.CompletionResult{}, s.err
	}
	return llmclient.CompletionResult{Text: s.text}, nil
}

func TestMentionHandlerAnswersWithinRateLimit(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	gen := msggen.New(stubCompleter{text: "Today's special days: World Ranger Day"}, zerolog.Nop())
	limiter := NewTokenBucket(60*time.Second, 5)
	h := NewMentionHandler(limiter, gen, st, nil, personality.Standard, zerolog.Nop())

	var replied string
	err = h.Handle(context.Background(), platform.Event{UserID: "U1", Text: "<@BOT> any special days today?"}, func(ctx context.Context, text string) error {
		replied = text
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, replied, "World Ranger Day")
}

func TestMentionHandlerRespectsRateLimit(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	gen := msggen.New(stubCompleter{text: "ok"}, zerolog.Nop())
	limiter := NewTokenBucket(60*time.Second, 1)
	h := NewMentionHandler(limiter, gen, st, nil, personality.Standard, zerolog.Nop())

	reply := func(ctx context.Context, text string) error { return nil }
	require.NoError(t, h.Handle(context.Background(), platform.Event{UserID: "U1", Text: "hi"}, reply))

	var secondReply string
	err = h.Handle(context.Background(), platform.Event{UserID: "U1", Text: "hi again"}, func(ctx context.Context, text string) error {
		secondReply = text
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, secondReply, "try again in")
	assert.Contains(t, secondReply, "seconds")
}

func TestMentionHandlerUsesCategoryFallbackOnGenerationFailure(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	gen := msggen.New(stubCompleter{err: assert.AnError}, zerolog.Nop())
	limiter := NewTokenBucket(60*time.Second, 5)
	h := NewMentionHandler(limiter, gen, st, nil, personality.Standard, zerolog.Nop())

	var replied string
	err = h.Handle(context.Background(), platform.Event{UserID: "U1", Text: "help"}, func(ctx context.Context, text string) error {
		replied = text
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, categoryFallback[CategoryHelp], replied)
}
