package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/config"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/imagegen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/llmclient"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/msggen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/observance"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/pipeline"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/profile"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

type fakePlatform struct {
	posted int
	blocks []platform.Block
}

func (f *fakePlatform) PostMessage(ctx context.Context, channel, text string, blocks []platform.Block) (string, error) {
	f.posted++
	f.blocks = blocks
	return "1000.1", nil
}
func (f *fakePlatform) PostThreaded(ctx context.Context, channel, threadTS, text string, blocks []platform.Block) error {
	return nil
}
func (f *fakePlatform) UploadFile(ctx context.Context, data []byte, filename, title, channel string) (string, error) {
	return "F1", nil
}
func (f *fakePlatform) FilesInfo(ctx context.Context, fileID string) (platform.FileInfo, error) {
	return platform.FileInfo{FileID: fileID, State: platform.FileProcessingReady}, nil
}
func (f *fakePlatform) AddReaction(ctx context.Context, channel, ts, name string) error { return nil }
func (f *fakePlatform) UsersInfo(ctx context.Context, userID string) (platform.DisplayProfile, error) {
	return platform.DisplayProfile{UserID: userID, DisplayName: userID}, nil
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

type fakeProfiles struct{}

func (fakeProfiles) GetProfile(ctx context.Context, userID string) (profile.UserProfile, error) {
	return profile.UserProfile{UserID: userID, DisplayName: userID}, nil
}
func (fakeProfiles) IsChannelMember(ctx context.Context, channel, userID string) (bool, error) {
	return true, nil
}

type stubCompleter struct{ text string }

func (s stubCompleter) Complete(ctx context.Context, messages []llmclient.Message, maxTokens int, temperature float64, reasoningEffort string) (llmclient.CompletionResult, error) {
	return llmclient.CompletionResult{Text: s.text}, nil
}

type stubImageGen struct{}

func (stubImageGen) Generate(ctx context.Context, prompt, quality, size string, reference *llmclient.ReferenceImage) (llmclient.ImageResult, error) {
	return llmclient.ImageResult{Data: []byte{1}, MimeType: "image/png"}, nil
}

func newTestScheduler(t *testing.T, plat *fakePlatform) (*Scheduler, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	msg := msggen.New(stubCompleter{text: "Happy birthday <@U1>!"}, zerolog.Nop())
	img := imagegen.New(stubImageGen{}, stubCompleter{text: "cake"}, zerolog.Nop())
	orch := pipeline.New(st, plat, fakeProfiles{}, nil, msg, img, nil, zerolog.Nop())

	cfg := config.SchedulerConfig{
		DailyCheckTime:           "09:00",
		TimezoneCheckIntervalSec: 60,
		TimezoneCelebrationTime:  "09:00",
		HeartbeatStaleSeconds:    120,
		StatsFlushEveryN:         10,
		WeeklyDigestWeekday:      1,
	}
	s := New(cfg, "C1", "daily", st, orch, plat, fakeProfiles{}, nil, zerolog.Nop())
	return s, st
}

func yearPtr(y int) *int { return &y }

func TestFireDailyCelebratesMatchingBirthdayAndMarksLedger(t *testing.T) {
	plat := &fakePlatform{}
	s, st := newTestScheduler(t, plat)

	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertBirthday("U1", store.BirthdayRecord{
		Month: 7, Day: 31, Year: yearPtr(1990),
		Preferences: store.Preferences{Active: true},
	}, now))

	err := s.fireDaily(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, plat.posted)

	dateKey := now.Format("2006-01-02")
	ok, err := st.TryMarkFleetWide(dateKey, "U1")
	require.NoError(t, err)
	assert.False(t, ok, "second mark for the same (date, user) should report already-marked")
}

// TestFireDailyTwiceCelebratesOnlyOnce asserts the §8 idempotence
// property ("running the scheduler twice on the same day celebrates
// each eligible user exactly once in total across both runs") for
// fleet-wide mode, simulating a restart between two same-day sweeps.
func TestFireDailyTwiceCelebratesOnlyOnce(t *testing.T) {
	plat := &fakePlatform{}
	s, st := newTestScheduler(t, plat)

	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertBirthday("U1", store.BirthdayRecord{
		Month: 7, Day: 31, Year: yearPtr(1990),
		Preferences: store.Preferences{Active: true},
	}, now))

	require.NoError(t, s.fireDaily(context.Background(), now))
	require.NoError(t, s.fireDaily(context.Background(), now))

	assert.Equal(t, 1, plat.posted, "a second same-day sweep must not re-post an already-celebrated user")
}

func TestFireDailySkipsNonMatchingBirthday(t *testing.T) {
	plat := &fakePlatform{}
	s, st := newTestScheduler(t, plat)

	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertBirthday("U2", store.BirthdayRecord{
		Month: 1, Day: 1, Year: yearPtr(1990),
		Preferences: store.Preferences{Active: true},
	}, now))

	err := s.fireDaily(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, plat.posted)
}

func TestFireDailySkipsInactiveBirthday(t *testing.T) {
	plat := &fakePlatform{}
	s, st := newTestScheduler(t, plat)

	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertBirthday("U3", store.BirthdayRecord{
		Month: 7, Day: 31, Year: yearPtr(1990),
		Preferences: store.Preferences{Active: false},
	}, now))

	err := s.fireDaily(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, plat.posted)
}

func TestHeartbeatUpdatesStatsAndHealth(t *testing.T) {
	plat := &fakePlatform{}
	s, _ := newTestScheduler(t, plat)

	assert.False(t, s.IsHealthy(time.Now()), "no heartbeat written yet")

	s.heartbeat(nil)
	assert.True(t, s.IsHealthy(time.Now()))
	assert.Equal(t, 1, s.Stats().TotalExecutions)

	s.heartbeat(assert.AnError)
	assert.Equal(t, 2, s.Stats().TotalExecutions)
	assert.Equal(t, 1, s.Stats().FailedExecutions)
	assert.Equal(t, assert.AnError.Error(), s.Stats().LastError)
}

func TestParseHHMMComputesNextDailyWake(t *testing.T) {
	sched, err := parseHHMM("09:30")
	require.NoError(t, err)

	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	next := sched.Next(now)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestBuildSpecialDayBlocksIncludesEachDay(t *testing.T) {
	days := []observance.SpecialDay{
		{DateMMDD: "07-31", Name: "World Ranger Day", Category: observance.CategoryCulture, Description: "Honors rangers.", Source: observance.SourceUN},
	}
	blocks := buildSpecialDayBlocks(days, false)
	require.Len(t, blocks, 4)
	assert.Equal(t, "🌍 Today's Special Days", blocks[0].Text)
	assert.Len(t, blocks[1].Fields, 1)
}
