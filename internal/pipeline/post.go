package pipeline

import (
	"context"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/threadtracker"
)

// post implements spec §4.8.2 step 8 and the §4.8.4 failure semantics
// for platform post/upload failures: retry the root post once; on a
// second failure, record the error and surface it to the caller so the
// ledger is not marked and the next scheduler pass retries.
func (o *Orchestrator) post(ctx context.Context, req *CelebrationRequest, blocks []platform.Block) error {
	root, continuations := platform.SplitForPosting(blocks)

	ts, err := o.postRootWithRetry(ctx, req.Channel, root)
	if err != nil {
		return errs.Wrap(errs.UpstreamTransient, "post celebration message", err).WithField("channel", req.Channel)
	}
	req.RootTS = ts

	for _, cont := range continuations {
		if err := o.platform.PostThreaded(ctx, req.Channel, ts, "", cont); err != nil {
			// Partial post: root succeeded, a continuation didn't. Spec
			// §4.8.4: record the partial and continue; the thread is
			// still tracked via the root.
			req.PartialPostErr = err
			o.log.Warn().Err(err).Msg("continuation post failed, root message still stands")
			break
		}
	}
	return nil
}

func (o *Orchestrator) postRootWithRetry(ctx context.Context, channel string, blocks []platform.Block) (string, error) {
	ts, err := o.platform.PostMessage(ctx, channel, "", blocks)
	if err == nil {
		return ts, nil
	}
	o.log.Warn().Err(err).Msg("post attempt failed, retrying once")
	return o.platform.PostMessage(ctx, channel, "", blocks)
}

// track implements spec §4.8.2 step 9: register the resulting thread
// with the thread tracker.
func (o *Orchestrator) track(req *CelebrationRequest, now time.Time) {
	if req.RootTS == "" || o.tracker == nil {
		return
	}
	people := make([]string, 0, len(req.SurvivingPeople))
	for _, p := range req.SurvivingPeople {
		people = append(people, p.UserID)
	}
	o.tracker.Track(req.Channel, req.RootTS, threadtracker.ThreadBirthday, string(req.PersonalityOverride), people, nil, now)
}

// persistLedger implements spec §4.8.2 step 10: mark each celebrated
// user. Scheduler stats are not touched here; the scheduler records
// them in its heartbeat after the run returns. Per §4.8.4, a post failure never
// reaches this stage (post returns an error and Run stops before
// State reaches Done), so every call here represents a successful post.
func (o *Orchestrator) persistLedger(req *CelebrationRequest, now time.Time) {
	if req.MarkCelebrated == nil {
		return
	}
	for _, p := range req.SurvivingPeople {
		if _, err := req.MarkCelebrated(p.UserID); err != nil {
			o.log.Warn().Err(err).Str("user_id", p.UserID).Msg("failed to mark ledger entry")
		}
	}
}
