// Package canvas implements the canvas dashboard (spec §4.12): a single
// live markdown document rebuilt on mutation or periodic tick, debounced
// and coalesced so bursts of triggers cost one rebuild.
//
// Grounded on the teacher's pkg/connector/debounce.go Debouncer: the
// same "lock, coalesce concurrent triggers into the pending entry,
// flush on a timer" shape, simplified from its per-key message-buffer
// model to this package's single pending-reason model since a dashboard
// has exactly one document, not one buffer per conversation key.
package canvas

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// MinUpdateInterval is the minimum time between rebuilds, overridable by
// an admin force flag (spec §4.12: "minimum 30s between updates").
const MinUpdateInterval = 30 * time.Second

// BuildFunc renders the current markdown document.
type BuildFunc func(ctx context.Context) (string, error)

const canvasStateFile = "canvas_state.json"

type canvasState struct {
	CanvasID string `json:"canvas_id"`
}

// Dashboard owns the single live canvas document, its debounce state,
// and canvas-deletion recovery.
type Dashboard struct {
	plat    platform.Client
	st      *store.Store
	channel string
	build   BuildFunc
	log     zerolog.Logger

	mu            sync.Mutex
	canvasID      string
	loaded        bool
	lastUpdate    time.Time
	updating      bool
	pendingReason string
	pendingForce  bool
	timer         *time.Timer
}

// New builds a Dashboard. The canvas ID is lazily loaded from disk on
// first use.
func New(plat platform.Client, st *store.Store, channel string, build BuildFunc, log zerolog.Logger) *Dashboard {
	return &Dashboard{
		plat: plat, st: st, channel: channel, build: build,
		log: log.With().Str("component", "canvas").Logger(),
	}
}

func (d *Dashboard) ensureLoaded() {
	if d.loaded {
		return
	}
	d.loaded = true
	var cs canvasState
	if found, err := d.st.ReadJSON(canvasStateFile, &cs); err == nil && found {
		d.canvasID = cs.CanvasID
	}
}

func (d *Dashboard) persistCanvasID() {
	_ = d.st.WriteJSON(canvasStateFile, canvasState{CanvasID: d.canvasID})
}

// RequestUpdate triggers a rebuild, coalescing concurrent triggers into
// the most recent reason string and respecting MinUpdateInterval unless
// force is set (spec §4.12: "Concurrent calls are coalesced — if an
// update is already pending, additional triggers simply update the
// reason string and return").
func (d *Dashboard) RequestUpdate(ctx context.Context, reason string, force bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.updating {
		d.pendingReason = reason
		d.pendingForce = d.pendingForce || force
		return
	}

	since := time.Since(d.lastUpdate)
	if !force && d.lastUpdate.After(time.Time{}) && since < MinUpdateInterval {
		d.pendingReason = reason
		d.pendingForce = d.pendingForce || force
		if d.timer == nil {
			wait := MinUpdateInterval - since
			d.timer = time.AfterFunc(wait, func() { d.flushPending(ctx) })
		}
		return
	}

	d.updating = true
	go d.rebuildAndUnlock(ctx, reason)
}

func (d *Dashboard) flushPending(ctx context.Context) {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	reason := d.pendingReason
	force := d.pendingForce
	d.pendingReason = ""
	d.pendingForce = false
	if d.updating {
		d.mu.Unlock()
		return
	}
	d.updating = true
	d.mu.Unlock()
	d.rebuildAndUnlock(ctx, reasonOr(reason, force))
}

func reasonOr(reason string, force bool) string {
	if reason == "" {
		return "scheduled_tick"
	}
	return reason
}

// rebuildAndUnlock performs one rebuild, then — if another trigger
// arrived while it ran — immediately chains into the next one (spec's
// trailing-edge coalescing).
func (d *Dashboard) rebuildAndUnlock(ctx context.Context, reason string) {
	err := d.rebuild(ctx, reason)
	if err != nil {
		d.log.Warn().Err(err).Str("reason", reason).Msg("dashboard rebuild failed")
	}

	d.mu.Lock()
	d.updating = false
	d.lastUpdate = time.Now()
	pending := d.pendingReason
	force := d.pendingForce
	d.pendingReason = ""
	d.pendingForce = false
	d.mu.Unlock()

	if pending != "" {
		d.RequestUpdate(ctx, pending, force)
	}
}

// rebuild renders the document and replaces the canvas's content,
// recreating it if the stored ID was deleted out-of-band (spec §4.12:
// "Canvas deletion by a user is recoverable").
func (d *Dashboard) rebuild(ctx context.Context, reason string) error {
	d.mu.Lock()
	d.ensureLoaded()
	canvasID := d.canvasID
	d.mu.Unlock()

	markdown, err := d.build(ctx)
	if err != nil {
		return errs.Wrap(errs.Degraded, "build dashboard markdown", err)
	}

	if canvasID == "" {
		return d.create(ctx, markdown)
	}

	if err := d.plat.CanvasEdit(ctx, canvasID, markdown); err != nil {
		if isCanvasNotFound(err) {
			d.log.Warn().Str("canvas_id", canvasID).Msg("canvas was deleted out-of-band, recreating")
			d.mu.Lock()
			d.canvasID = ""
			d.mu.Unlock()
			return d.create(ctx, markdown)
		}
		return errs.Wrap(errs.UpstreamTransient, "edit canvas", err)
	}
	d.log.Debug().Str("reason", reason).Msg("dashboard rebuilt")
	return nil
}

func (d *Dashboard) create(ctx context.Context, markdown string) error {
	id, err := d.plat.CanvasCreate(ctx, d.channel, markdown)
	if err != nil {
		return errs.Wrap(errs.UpstreamTransient, "create canvas", err)
	}
	d.mu.Lock()
	d.canvasID = id
	d.mu.Unlock()
	d.persistCanvasID()
	return nil
}

// isCanvasNotFound detects the platform's canvas_not_found error shape.
func isCanvasNotFound(err error) bool {
	return errs.Is(err, errs.NotFound) || strings.Contains(err.Error(), "canvas_not_found")
}
