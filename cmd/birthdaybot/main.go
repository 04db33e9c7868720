// Command birthdaybot wires every internal component into one running
// process: it loads configuration, builds the datastore(s), resolvers,
// generators, the pipeline orchestrator, the scheduler, the engagement
// handlers, the canvas dashboard, and the ops surface, then runs until
// signaled to stop.
//
// Grounded on the teacher's cmd/*/main.go wrappers: each is a thin
// composition root that builds its dependencies and hands off to one
// long-running entrypoint (mxmain.BridgeMain.Run in the teacher's case).
// The concrete chat-platform client is, like the teacher's own network
// transport, an external collaborator (spec §1): newPlatformClient below
// is a documented seam, not a fabricated HTTP/websocket implementation.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/canvas"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/config"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/engage"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/factcache"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/imagegen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/llmclient"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/msggen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/observance"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/ops"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/pipeline"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/profile"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/scheduler"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/threadtracker"
)

func newLogger(cfg config.Config) zerolog.Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.LogFormat == "json" {
		out = os.Stderr
	}
	if cfg.LogFile != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		if cfg.LogFormat == "json" {
			out = io.MultiWriter(out, fileWriter)
		} else {
			out = io.MultiWriter(out, zerolog.ConsoleWriter{Out: fileWriter, NoColor: true, TimeFormat: time.RFC3339})
		}
	}
	level := zerolog.InfoLevel
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	return zerolog.New(out).With().Timestamp().Logger()
}

// platformAdapter bridges platform.Client (the wide interface the
// pipeline/canvas/engage packages depend on) to profile.PlatformClient
// (the narrower shape internal/profile depends on), converting
// platform.DisplayProfile to profile.UserProfile field-by-field.
//
// IsPlatformAdmin has no equivalent on platform.Client: the real chat
// platform's admin/owner flag is an external collaborator concern (spec
// §1), so this always reports false — admin status here is governed
// entirely by the persisted admin list (internal/store's admins.json),
// which profile.Resolver.IsAdmin already checks first.
type platformAdapter struct {
	platform.Client
}

func (a platformAdapter) UsersInfo(ctx context.Context, userID string) (profile.UserProfile, error) {
	d, err := a.Client.UsersInfo(ctx, userID)
	if err != nil {
		return profile.UserProfile{}, err
	}
	return profile.UserProfile{
		UserID:        d.UserID,
		DisplayName:   d.DisplayName,
		RealName:      d.RealName,
		PreferredName: d.PreferredName,
		Title:         d.Title,
		Timezone:      d.Timezone,
		TimezoneOffsetSeconds: d.TZOffsetSec,
		PhotoURLs:     d.PhotoURLs,
		IsDeleted:     d.IsDeleted,
		IsBot:         d.IsBot,
		CustomFields:  d.CustomFields,
	}, nil
}

func (a platformAdapter) IsPlatformAdmin(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

func main() {
	configPath := flag.String("config", "", "path to an optional YAML feature-toggle file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	log := newLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("birthdaybot exited with an error")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	// storage/ holds mutable application state (including the
	// birthdays.json ring buffer under storage/backups/); cache/ holds
	// observance source caches and historical-fact lookups. Each is its
	// own Store. cfg.BackupDir is only created here and health-checked by
	// the ops surface; no snapshots are written to it.
	st, err := store.New(cfg.StorageDir)
	if err != nil {
		return err
	}
	cacheStore, err := store.New(cfg.CacheDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	plat := newPlatformClient(cfg, log)
	adapter := platformAdapter{Client: plat}
	profiles := profile.New(adapter, st, cfg.TTLs.ProfileCacheTTL)
	tracker := threadtracker.New(st, time.Duration(cfg.TTLs.ThreadTrackingTTLDays)*24*time.Hour)

	completer := llmclient.NewOpenAICompleter(cfg.LLMAPIKey, cfg.TextModel, log)
	imageBackend := llmclient.NewOpenAIImageGen(cfg.LLMAPIKey, cfg.ImageModel, log)
	msgGen := msggen.New(completer, log)
	imgGen := imagegen.New(imageBackend, completer, log)
	facts := factcache.New(cacheStore, completer)

	var aggregator *observance.Aggregator
	if cfg.Features.SpecialDaysMode != "" {
		sources := []observance.ObservanceSource{
			observance.NewUNSource(cacheStore),
			observance.NewUNESCOSource(cacheStore),
			observance.NewWHOSource(cacheStore),
			observance.NewCalendarificSource(cacheStore, cfg.CalendarificKey, cfg.CalendarificCountry, cfg.CalendarificRegion),
		}
		daysConfig, err := st.LoadSpecialDaysConfig()
		if err != nil {
			return err
		}
		aggregator = observance.NewAggregator(sources, daysConfig.CategoryEnabled)
	}

	orch := pipeline.New(st, plat, profiles, facts, msgGen, imgGen, tracker, log)
	sched := scheduler.New(cfg.Scheduler, cfg.CelebrationChannel, cfg.Features.SpecialDaysMode, st, orch, plat, profiles, aggregator, log)

	limiter := engage.NewTokenBucket(
		time.Duration(cfg.RateLimits.MentionWindowSeconds)*time.Second,
		cfg.RateLimits.MentionMaxRequests,
	)
	personalityState, err := st.LoadPersonalityState()
	if err != nil {
		return err
	}
	mentionHandler := engage.NewMentionHandler(limiter, msgGen, st, aggregator, personality.Key(personalityState.CurrentPersonality), log)
	replyHandler := engage.NewReplyHandler(tracker, plat, cfg.Features.ThreadEngagement, nil, log)

	opsBuilder := ops.NewBuilder(cfg, st, sched, aggregator)

	dashboard := canvas.New(plat, st, cfg.OpsChannel, buildDashboard(opsBuilder), log)
	backups := canvas.NewBackupManager(plat, st, cfg.OpsChannel, log)

	dispatcher := platform.NewDispatcher(256, 8, makeEventHandler(mentionHandler, replyHandler, plat), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Each goroutine already owns its own internal error logging and
	// retry policy (the scheduler, the dashboard ticker, the event
	// source's reconnect loop); none of them return an error worth
	// aborting the others over, so group.Wait only tells main when
	// every one of them has unwound after ctx is cancelled.
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sched.Run(gctx, cfg.Features.TimezoneAware, makeRefreshFunc(aggregator, facts, log))
		return nil
	})
	group.Go(func() error {
		dashboard.RunPeriodicTicks(gctx)
		return nil
	})
	group.Go(func() error {
		runEventSource(gctx, cfg, dispatcher, log)
		return nil
	})
	if cfg.Features.ExternalBackup {
		group.Go(func() error {
			runBackupUploader(gctx, st, backups, log)
			return nil
		})
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining")
	_ = group.Wait()
	return nil
}

// buildDashboard renders the canvas document from the current ops
// status snapshot (spec §4.12: dashboard content is derived state, not
// independently tracked).
func buildDashboard(builder *ops.Builder) canvas.BuildFunc {
	return func(ctx context.Context) (string, error) {
		status, err := builder.Build(time.Now())
		if err != nil {
			return "", err
		}
		return "# Birthday Bot Status\n\n```\n" + ops.Summary(status) + "```\n", nil
	}
}

// backupUploadInterval bounds how often runBackupUploader checks for a
// new birthdays.json snapshot to publish to the canvas backup thread.
const backupUploadInterval = 15 * time.Minute

// runBackupUploader publishes the newest birthdays.json backup to the
// canvas backup thread whenever one appears, gated by
// FeatureToggles.ExternalBackup (spec §4.12's backup thread, §3's
// "if externalBackup is set" note on SaveBirthdays). BackupManager.Upload
// already dedupes by (filename, mtime), so re-checking the same newest
// snapshot on every tick is harmless.
func runBackupUploader(ctx context.Context, st *store.Store, backups *canvas.BackupManager, log zerolog.Logger) {
	ticker := time.NewTicker(backupUploadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			names, err := st.ListBackups("backups")
			if err != nil || len(names) == 0 {
				continue
			}
			newest := names[len(names)-1]
			mtime, err := time.Parse("20060102T150405Z", newest[len("birthdays_") : len(newest)-len(".json")])
			if err != nil {
				continue
			}
			raw, found, err := st.ReadRaw("backups/" + newest)
			if err != nil || !found {
				continue
			}
			if _, err := backups.Upload(ctx, newest, mtime, raw); err != nil {
				log.Warn().Err(err).Str("file", newest).Msg("failed to publish birthdays backup")
			}
		}
	}
}

func makeRefreshFunc(aggregator *observance.Aggregator, facts *factcache.Cache, log zerolog.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		if aggregator != nil {
			for _, src := range aggregator.Sources() {
				if _, _, err := src.Refresh(false); err != nil {
					log.Warn().Err(err).Str("source", string(src.Name())).Msg("observance refresh failed")
				}
			}
		}
		if err := facts.PruneOldYears(time.Now().Year()); err != nil {
			log.Warn().Err(err).Msg("historical fact cache prune failed")
		}
	}
}

func makeEventHandler(mention *engage.MentionHandler, reply *engage.ReplyHandler, plat platform.Client) platform.Handler {
	return func(ctx context.Context, evt platform.Event) error {
		switch evt.Type {
		case platform.EventAppMention:
			return mention.Handle(ctx, evt, func(ctx context.Context, text string) error {
				if evt.ThreadTS != "" {
					return plat.PostThreaded(ctx, evt.ChannelID, evt.ThreadTS, text, nil)
				}
				_, err := plat.PostMessage(ctx, evt.ChannelID, text, nil)
				return err
			})
		case platform.EventMessage, platform.EventMessageIM:
			return reply.Handle(ctx, evt)
		default:
			return nil
		}
	}
}

func runEventSource(ctx context.Context, cfg config.Config, dispatcher *platform.Dispatcher, log zerolog.Logger) {
	go dispatcher.Run(ctx)

	source := platform.NewEventSource(eventChannelURL(cfg), log)
	out := make(chan platform.Event, 64)
	go func() {
		for evt := range out {
			dispatcher.Submit(evt)
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := source.Run(ctx, out); err != nil {
			log.Warn().Err(err).Msg("event source disconnected, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// eventChannelURL is a placeholder seam: the real chat platform's
// socket-mode-style connection URL is obtained via an external
// collaborator API call (spec §1) this core does not implement.
func eventChannelURL(cfg config.Config) string {
	return os.Getenv("EVENT_CHANNEL_URL")
}

// newPlatformClient is the external-collaborator seam named in spec §1:
// "the chat-platform client library ... is treated as an external API
// surface". The teacher's own cmd/*/main.go files delegate the
// equivalent surface (the Matrix/Beeper network transport) to an
// imported library rather than implementing it locally; this process
// depends on platform.Client purely as an interface, and
// unimplementedPlatformClient stands in for whatever concrete
// implementation a deployment supplies at this seam.
func newPlatformClient(cfg config.Config, log zerolog.Logger) platform.Client {
	log.Warn().Msg("no chat-platform client configured; every platform call will fail until this seam is wired to a real implementation")
	return unimplementedPlatformClient{}
}

type unimplementedPlatformClient struct{}

func (unimplementedPlatformClient) err() error {
	return errs.New(errs.Fatal, "platform.Client is unconfigured: this is an external-collaborator seam, not an implementation")
}

func (c unimplementedPlatformClient) PostMessage(ctx context.Context, channel, text string, blocks []platform.Block) (string, error) {
	return "", c.err()
}
func (c unimplementedPlatformClient) PostThreaded(ctx context.Context, channel, threadTS, text string, blocks []platform.Block) error {
	return c.err()
}
func (c unimplementedPlatformClient) UploadFile(ctx context.Context, data []byte, filename, title, channel string) (string, error) {
	return "", c.err()
}
func (c unimplementedPlatformClient) FilesInfo(ctx context.Context, fileID string) (platform.FileInfo, error) {
	return platform.FileInfo{}, c.err()
}
func (c unimplementedPlatformClient) AddReaction(ctx context.Context, channel, ts, name string) error {
	return c.err()
}
func (c unimplementedPlatformClient) UsersInfo(ctx context.Context, userID string) (platform.DisplayProfile, error) {
	return platform.DisplayProfile{}, c.err()
}
func (c unimplementedPlatformClient) ConversationsMembers(ctx context.Context, channelID, cursor string) ([]string, string, error) {
	return nil, "", c.err()
}
func (c unimplementedPlatformClient) ConversationsOpen(ctx context.Context, userID string) (string, error) {
	return "", c.err()
}
func (c unimplementedPlatformClient) EmojiList(ctx context.Context) (map[string]string, error) {
	return nil, c.err()
}
func (c unimplementedPlatformClient) CanvasCreate(ctx context.Context, channel, markdown string) (string, error) {
	return "", c.err()
}
func (c unimplementedPlatformClient) CanvasEdit(ctx context.Context, canvasID, markdown string) error {
	return c.err()
}
func (c unimplementedPlatformClient) CanvasDelete(ctx context.Context, canvasID string) error {
	return c.err()
}
func (c unimplementedPlatformClient) SetTopic(ctx context.Context, channel, topic string) error {
	return c.err()
}
func (c unimplementedPlatformClient) SetPurpose(ctx context.Context, channel, purpose string) error {
	return c.err()
}
