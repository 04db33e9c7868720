package canvas

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

const backupIndexFile = "canvas_backup_index.json"

// BackupManager maintains the pinned backup thread referenced from the
// dashboard (spec §4.12: "a pinned backup thread ... holds uploaded
// backup files, keyed by (filename, mtime) to avoid duplicate uploads;
// permalinks are embedded in the dashboard").
//
// The (filename, mtime) -> permalink index is persisted as a flat JSON
// object, patched one key at a time with sjson rather than round-tripped
// through a typed map on every upload: the index only ever grows by one
// entry per call, so a full decode/re-encode of every prior entry is
// wasted work this package can avoid.
type BackupManager struct {
	plat    platform.Client
	st      *store.Store
	channel string
	log     zerolog.Logger

	mu       sync.Mutex
	threadTS string
	loaded   bool
	memIndex map[string]string // used only when st is nil
}

// NewBackupManager builds a BackupManager. st may be nil, in which case
// the upload index is kept in memory only and does not survive restart.
func NewBackupManager(plat platform.Client, st *store.Store, channel string, log zerolog.Logger) *BackupManager {
	return &BackupManager{
		plat: plat, st: st, channel: channel,
		log: log.With().Str("component", "canvas.backup").Logger(),
	}
}

func backupKey(filename string, mtime time.Time) string {
	return fmt.Sprintf("%s|%d", filename, mtime.Unix())
}

func (b *BackupManager) lookupPermalink(key string) string {
	if b.st == nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.memIndex[key]
	}
	raw, found, err := b.st.ReadRaw(backupIndexFile)
	if err != nil || !found {
		return ""
	}
	return gjson.GetBytes(raw, gjson.Escape(key)).String()
}

func (b *BackupManager) recordPermalink(key, permalink string) {
	if b.st == nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.memIndex == nil {
			b.memIndex = make(map[string]string)
		}
		b.memIndex[key] = permalink
		return
	}
	raw, found, err := b.st.ReadRaw(backupIndexFile)
	doc := "{}"
	if err == nil && found {
		doc = string(raw)
	}
	patched, err := sjson.Set(doc, gjson.Escape(key), permalink)
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to patch backup index")
		return
	}
	if err := b.st.WriteRaw(backupIndexFile, []byte(patched)); err != nil {
		b.log.Warn().Err(err).Msg("failed to persist backup index")
	}
}

// Upload publishes data as filename to the backup thread, returning its
// permalink. A second call with the same (filename, mtime) is a no-op
// that returns the cached permalink, including across restarts when a
// Store is configured.
func (b *BackupManager) Upload(ctx context.Context, filename string, mtime time.Time, data []byte) (string, error) {
	key := backupKey(filename, mtime)

	if permalink := b.lookupPermalink(key); permalink != "" {
		return permalink, nil
	}

	if err := b.ensureThread(ctx); err != nil {
		return "", err
	}

	fileID, err := b.plat.UploadFile(ctx, data, filename, "backup", b.channel)
	if err != nil {
		return "", errs.Wrap(errs.UpstreamTransient, "upload backup file", err).WithField("filename", filename)
	}
	info, err := platform.WaitForFileProcessing(ctx, b.plat, fileID)
	if err != nil {
		return "", errs.Wrap(errs.UpstreamTransient, "wait for backup file processing", err).WithField("filename", filename)
	}

	b.mu.Lock()
	threadTS := b.threadTS
	b.mu.Unlock()
	if err := b.plat.PostThreaded(ctx, b.channel, threadTS, fmt.Sprintf("Backup: %s", filename), []platform.Block{
		platform.Context(info.Permalink),
	}); err != nil {
		b.log.Warn().Err(err).Str("filename", filename).Msg("failed to post backup reference, permalink still recorded")
	}

	b.recordPermalink(key, info.Permalink)
	return info.Permalink, nil
}

func (b *BackupManager) ensureThread(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.threadTS != "" {
		return nil
	}
	ts, err := b.plat.PostMessage(ctx, b.channel, "📦 Birthday bot backups", nil)
	if err != nil {
		return errs.Wrap(errs.UpstreamTransient, "create backup thread", err)
	}
	b.threadTS = ts
	return nil
}
