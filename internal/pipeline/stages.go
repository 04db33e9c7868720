package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/imagegen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/msggen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/timemodel"
)

// gather implements spec §4.8.2 step 1: profiles arrive already
// resolved on the request (§4.8.1's input shape), so this stage's job
// is attaching the derived display context (star sign, age,
// date-in-words) each downstream stage needs.
func (o *Orchestrator) gather(req *CelebrationRequest, now time.Time) {
	req.Contexts = make(map[string]msggen.Context, len(req.People))
	for _, p := range req.People {
		month, day := p.Record.Month, p.Record.Day
		ctxc := msggen.Context{
			StarSign: timemodel.StarSign(month, day),
		}
		if p.Record.Year != nil && p.Record.Preferences.ShowAge {
			age := timemodel.Age(p.Record.Year, now.Year())
			ctxc.Age = &age
		}
		req.Contexts[p.UserID] = ctxc
	}
}

// validate implements spec §4.8.2 step 2: immediately before any
// generation work, reconfirm every person still qualifies. Disqualified
// people are dropped with a reason; an empty surviving set aborts the
// whole request with a NoEligiblePeople terminal.
func (o *Orchestrator) validate(ctx context.Context, req *CelebrationRequest) {
	req.SurvivingPeople = req.SurvivingPeople[:0]
	for _, p := range req.People {
		if !p.Record.Preferences.Active {
			req.DroppedPeople = append(req.DroppedPeople, DroppedPerson{UserID: p.UserID, Reason: "preferences_inactive"})
			continue
		}
		if o.membership == nil {
			req.SurvivingPeople = append(req.SurvivingPeople, p)
			continue
		}
		prof, err := o.membership.GetProfile(ctx, p.UserID)
		if err != nil {
			req.DroppedPeople = append(req.DroppedPeople, DroppedPerson{UserID: p.UserID, Reason: "profile_lookup_failed"})
			continue
		}
		if prof.IsDeleted {
			req.DroppedPeople = append(req.DroppedPeople, DroppedPerson{UserID: p.UserID, Reason: "user_deleted"})
			continue
		}
		if prof.IsBot {
			req.DroppedPeople = append(req.DroppedPeople, DroppedPerson{UserID: p.UserID, Reason: "user_is_bot"})
			continue
		}
		isMember, err := o.membership.IsChannelMember(ctx, req.Channel, p.UserID)
		if err != nil || !isMember {
			req.DroppedPeople = append(req.DroppedPeople, DroppedPerson{UserID: p.UserID, Reason: "not_a_channel_member"})
			continue
		}
		p.Profile = prof
		req.SurvivingPeople = append(req.SurvivingPeople, p)
	}

	if len(req.SurvivingPeople) == 0 {
		o.abort(req, "NoEligiblePeople")
	}
}

// wantsHistoricalFact reports whether a personality's messages are
// expected to weave in a historical note (spec §4.8.2 step 3: "If the
// personality requests it"). Only the chronicler personality's
// announcements are built around a historical note.
func wantsHistoricalFact(key personality.Key) bool {
	return key == personality.Chronicler
}

func (o *Orchestrator) fetchHistoricalFact(ctx context.Context, req *CelebrationRequest, dateMMDD string, year int) {
	if o.facts == nil || !wantsHistoricalFact(req.PersonalityOverride) {
		return
	}
	fact, err := o.facts.Lookup(ctx, dateMMDD, req.PersonalityOverride, year)
	if err != nil {
		o.log.Debug().Err(err).Msg("historical fact lookup failed, continuing without one")
		return
	}
	req.HistoricalFact = fact
}

// generateText implements spec §4.8.2 step 4: build once for the
// surviving set (single or consolidated message).
func (o *Orchestrator) generateText(ctx context.Context, req *CelebrationRequest) {
	people := make([]msggen.Person, 0, len(req.SurvivingPeople))
	for _, p := range req.SurvivingPeople {
		name := p.Profile.PreferredName
		if name == "" {
			name = p.Profile.DisplayName
		}
		ctxc := req.Contexts[p.UserID]
		people = append(people, msggen.Person{
			UserID:         p.UserID,
			DisplayName:    name,
			Age:            ctxc.Age,
			StarSign:       ctxc.StarSign,
			HistoricalFact: req.HistoricalFact,
		})
	}

	result, err := o.msggen.Generate(ctx, msggen.Request{
		People:      people,
		Personality: req.PersonalityOverride,
		Context:     msggen.Context{HistoricalFact: req.HistoricalFact},
		UseCase:     msggen.UseCaseBirthday,
	})
	if err != nil {
		// msggen.Generate only returns an error if it cannot even
		// produce a fallback, which should not happen; degrade to a
		// minimal generic message rather than abort the whole request.
		o.log.Error().Err(err).Msg("message generation failed even with fallback, using minimal text")
		req.GeneratedText = "Happy birthday!"
		req.UsedFallback = true
		return
	}
	req.GeneratedText = result.Text
	req.UsedFallback = result.UsedFallback
}

// generateImages implements spec §4.8.2 step 5: one image job per
// surviving person, fanned out across a small bounded worker pool
// (spec §5: "3-5") via errgroup.SetLimit.
func (o *Orchestrator) generateImages(ctx context.Context, req *CelebrationRequest) {
	req.Images = make(map[string]imageArtifact)
	var mu sync.Mutex
	pending := make(map[string]imagegen.Result)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ImageWorkerPoolSize)

	for _, p := range req.SurvivingPeople {
		p := p
		g.Go(func() error {
			name := p.Profile.PreferredName
			if name == "" {
				name = p.Profile.DisplayName
			}
			res, failed := o.imagegen.Generate(gctx, imagegen.Request{
				PersonDisplayName: name,
				Personality:       req.PersonalityOverride,
				BirthdayMessage:   req.GeneratedText,
				Quality:           req.ImageQuality,
				Size:              req.ImageSize,
			})
			if failed != nil {
				o.log.Warn().Str("user_id", p.UserID).Str("reason", failed.Reason).Msg("image generation failed for person, continuing without their image")
				return nil
			}
			mu.Lock()
			pending[p.UserID] = *res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // generateImages never fails the request; per-person failures are logged and skipped above

	req.pendingImages = pending
}

// uploadImages implements spec §4.8.2 step 6: upload each generated PNG
// privately, poll until processed, and apply the image-for-valid-people
// filter (spec §4.8.3) so a late dropout can't surface a stale image.
func (o *Orchestrator) uploadImages(ctx context.Context, req *CelebrationRequest) {
	surviving := make(map[string]bool, len(req.SurvivingPeople))
	for _, p := range req.SurvivingPeople {
		surviving[p.UserID] = true
	}
	toUpload := filterImagesToSurviving(req.pendingImages, surviving)

	for userID, img := range toUpload {
		fileID, err := o.platform.UploadFile(ctx, img.ImageData, fmt.Sprintf("%s.png", userID), img.Caption, "")
		if err != nil {
			o.log.Warn().Err(err).Str("user_id", userID).Msg("image upload failed, continuing without image")
			continue
		}
		info, err := platform.WaitForFileProcessing(ctx, o.platform, fileID)
		if err != nil {
			o.log.Warn().Err(err).Str("user_id", userID).Msg("file processing did not complete, continuing without image")
			continue
		}
		req.Images[userID] = imageArtifact{FileID: info.FileID, Caption: img.Caption, MimeType: info.MimeType}
	}
}

// filterImagesToSurviving discards any pending image whose owner is no
// longer in the surviving set (spec §4.8.3's image-for-valid-people
// filter), kept as a pure function so it's independently testable from
// any upload timing.
func filterImagesToSurviving(pending map[string]imagegen.Result, surviving map[string]bool) map[string]imagegen.Result {
	out := make(map[string]imagegen.Result, len(pending))
	for userID, img := range pending {
		if surviving[userID] {
			out[userID] = img
		}
	}
	return out
}

// compose implements spec §4.8.2 step 7: header, body, embedded images,
// per-person fields, and a contextual footer.
func (o *Orchestrator) compose(req *CelebrationRequest) []platform.Block {
	blocks := []platform.Block{
		platform.Header(headerFor(req)),
		platform.Section(req.GeneratedText),
	}

	for _, p := range req.SurvivingPeople {
		if img, ok := req.Images[p.UserID]; ok {
			alt := img.Caption
			if alt == "" {
				alt = p.UserID
			}
			blocks = append(blocks, platform.Image(img.FileID, alt))
		}
	}

	fields := make([]string, 0, len(req.SurvivingPeople))
	for _, p := range req.SurvivingPeople {
		name := p.Profile.PreferredName
		if name == "" {
			name = p.Profile.DisplayName
		}
		fields = append(fields, fmt.Sprintf("<@%s> — %s", p.UserID, name))
	}
	if len(fields) > 0 {
		blocks = append(blocks, platform.Fields(fields...))
	}

	blocks = append(blocks, platform.Divider())
	blocks = append(blocks, platform.Context(footerFor(req)))
	return blocks
}

func headerFor(req *CelebrationRequest) string {
	if len(req.SurvivingPeople) > 1 {
		return "🎉 Birthdays Today!"
	}
	return "🎂 Happy Birthday!"
}

func footerFor(req *CelebrationRequest) string {
	footer := fmt.Sprintf("personality: %s", req.PersonalityOverride)
	if req.HistoricalFact != "" {
		footer = req.HistoricalFact + " · " + footer
	}
	return footer
}
