// Package engage implements the reply and mention handlers (spec §4.11):
// reactive engagement on tracked celebration threads, and conversational
// answers to @bot mentions.
//
// Grounded on the teacher's pkg/connector event-handling idiom: small,
// single-purpose handler functions taking a platform.Event and returning
// an error, composed by internal/platform's Dispatcher rather than
// threaded through a shared event loop.
package engage

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/threadtracker"
)

// MaxReactionsPerThread bounds how many reactions a tracked thread will
// accumulate before the reply handler goes quiet (spec §4.11: "default
// 20").
const MaxReactionsPerThread = 20

// MaxThankYouPerThread bounds the optional thank-you reply's own counter,
// independent of the reaction cap.
const MaxThankYouPerThread = 3

// ReplyHandler reacts to replies within a tracked celebration thread.
type ReplyHandler struct {
	tracker       *threadtracker.Tracker
	platform      platform.Client
	thankYouEnabled bool
	rng           *rand.Rand
	log           zerolog.Logger

	thankYouSent map[string]int // channel|ts -> count, not persisted (best-effort cap)
}

// NewReplyHandler builds a ReplyHandler. rng may be nil (defaults to a
// process-seeded source).
func NewReplyHandler(tracker *threadtracker.Tracker, plat platform.Client, thankYouEnabled bool, rng *rand.Rand, log zerolog.Logger) *ReplyHandler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ReplyHandler{
		tracker: tracker, platform: plat, thankYouEnabled: thankYouEnabled,
		rng: rng, log: log.With().Str("component", "engage.reply").Logger(),
		thankYouSent: make(map[string]int),
	}
}

// Handle implements the reply handler's five steps (spec §4.11). It is a
// no-op (not an error) if evt is not a reply to a tracked thread.
func (h *ReplyHandler) Handle(ctx context.Context, evt platform.Event) error {
	if !evt.IsThreadReply() {
		return nil
	}
	th, ok := h.tracker.Get(evt.ChannelID, evt.ThreadTS, time.Now())
	if !ok {
		return nil
	}
	if isBirthdayPerson(th, evt.UserID) {
		return nil // let peers celebrate; the birthday person's own replies don't trigger a reaction
	}

	if th.ReactionsCount < MaxReactionsPerThread {
		reaction := h.pickReaction(evt.Text)
		if err := h.platform.AddReaction(ctx, evt.ChannelID, evt.TS, reaction); err != nil && !isAlreadyReacted(err) {
			return errs.Wrap(errs.UpstreamTransient, "add reaction", err).WithField("channel", evt.ChannelID)
		}
		h.tracker.IncrementReactions(evt.ChannelID, evt.ThreadTS)
	}

	if h.thankYouEnabled {
		h.maybeThankYou(ctx, evt)
	}
	return nil
}

func isBirthdayPerson(th *threadtracker.TrackedThread, userID string) bool {
	for _, id := range th.BirthdayPeople {
		if id == userID {
			return true
		}
	}
	return false
}

// isAlreadyReacted treats a duplicate-reaction error as success (spec
// §4.11 step 3).
func isAlreadyReacted(err error) bool {
	return errs.Is(err, errs.Duplicate)
}

func (h *ReplyHandler) maybeThankYou(ctx context.Context, evt platform.Event) {
	key := evt.ChannelID + "|" + evt.ThreadTS
	if h.thankYouSent[key] >= MaxThankYouPerThread {
		return
	}
	if err := h.platform.PostThreaded(ctx, evt.ChannelID, evt.ThreadTS, "Thanks for celebrating! 🎉", nil); err != nil {
		h.log.Debug().Err(err).Msg("thank-you reply failed, continuing")
		return
	}
	h.thankYouSent[key]++
}
