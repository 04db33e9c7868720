// Package pipeline implements the celebration pipeline orchestrator
// (spec §4.8): the CelebrationRequest state machine, its ten stages,
// the decision logic around regeneration and late-dropout filtering,
// and the non-fatal failure semantics that keep one person's image
// failure from sinking the whole celebration.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/imagegen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/msggen"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/profile"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/threadtracker"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/timemodel"
)

// State is one stage of a CelebrationRequest's linear, non-cyclic
// lifecycle (spec §4.8.5: "Transitions are linear and non-cyclic...
// retries happen inside a state, not by edge").
type State string

const (
	StatePending    State = "pending"
	StateGathering  State = "gathering"
	StateValidated  State = "validated"
	StateGenerating State = "generating"
	StateUploading  State = "uploading"
	StateComposing  State = "composing"
	StatePosting    State = "posting"
	StateTracking   State = "tracking"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

// Mode distinguishes a real run from a dry run used by admin preview
// commands (spec §4.8.1: "a mode (production | test)").
type Mode string

const (
	ModeProduction Mode = "production"
	ModeTest       Mode = "test"
)

// ImageWorkerPoolSize bounds the image-generation fan-out (spec §4.8.2
// step 5 / §5: "a small constant (e.g., 3-5)").
const ImageWorkerPoolSize = 4

// BirthdayPerson bundles one celebrant's record and resolved profile
// (spec §4.8.1).
type BirthdayPerson struct {
	UserID  string
	Record  store.BirthdayRecord
	Profile profile.UserProfile
}

// CelebrationRequest is the pipeline's unit of work (spec §4.8.1).
type CelebrationRequest struct {
	// RequestID correlates this request's log lines across all ten
	// stages; assigned once in Run, never reused.
	RequestID         string
	Channel           string
	People            []BirthdayPerson
	Mode              Mode
	PersonalityOverride personality.Key
	IncludeImage      bool
	ImageQuality      string
	ImageSize         string
	TextOnly          bool

	State  State
	Reason string // populated when State == StateAborted

	// Populated as stages run.
	SurvivingPeople []BirthdayPerson
	DroppedPeople   []DroppedPerson
	GeneratedText   string
	UsedFallback    bool
	Images          map[string]imageArtifact // user_id -> artifact
	RootTS          string
	PartialPostErr  error

	pendingImages map[string]imagegen.Result

	// Contexts carries per-person computed display context (star sign,
	// age, date-in-words) attached during the Gather stage.
	Contexts map[string]msggen.Context

	// HistoricalFact is populated by step 3 when the personality
	// requests it (spec §4.8.2 step 3); empty otherwise.
	HistoricalFact string

	// MarkCelebrated records a celebrated user in whichever ledger mode
	// the caller is running under (fleet-wide vs. timezone-bucket); the
	// decision of which ledger key to use belongs to the caller
	// (internal/scheduler), not the pipeline itself, since that's a
	// property of which scheduling mode invoked this request.
	MarkCelebrated func(userID string) (ok bool, err error)
}

// DroppedPerson records why someone was filtered out of a request (spec
// §4.8.2 step 2: "Drop disqualified people and record the reason").
type DroppedPerson struct {
	UserID string
	Reason string
}

type imageArtifact struct {
	FileID   string
	Caption  string
	MimeType string
}

// MembershipChecker is the subset of profile/platform lookups step 2
// needs to reconfirm eligibility immediately before posting.
type MembershipChecker interface {
	GetProfile(ctx context.Context, userID string) (profile.UserProfile, error)
	IsChannelMember(ctx context.Context, channel, userID string) (bool, error)
}

// HistoricalFactLookup abstracts the web-search cache step 3 consults
// (spec §4.8.2 step 3). A nil lookup means the step is skipped.
type HistoricalFactLookup interface {
	Lookup(ctx context.Context, dateMMDD string, personalityKey personality.Key, year int) (fact string, err error)
}

// Orchestrator runs a CelebrationRequest through all ten stages.
type Orchestrator struct {
	store       *store.Store
	platform    platform.Client
	membership  MembershipChecker
	facts       HistoricalFactLookup
	msggen      *msggen.Generator
	imagegen    *imagegen.Generator
	tracker     *threadtracker.Tracker
	log         zerolog.Logger
}

// New builds an Orchestrator. facts may be nil (step 3 then no-ops).
func New(
	st *store.Store,
	plat platform.Client,
	membership MembershipChecker,
	facts HistoricalFactLookup,
	msg *msggen.Generator,
	img *imagegen.Generator,
	tracker *threadtracker.Tracker,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store: st, platform: plat, membership: membership, facts: facts,
		msggen: msg, imagegen: img, tracker: tracker,
		log: log.With().Str("component", "pipeline").Logger(),
	}
}

// Run drives req through Gathering → ... → Done, or to Aborted(reason)
// at any point a terminal condition is hit. now is injected for
// deterministic tests.
func (o *Orchestrator) Run(ctx context.Context, req *CelebrationRequest, now time.Time) error {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log := o.log.With().Str("request_id", req.RequestID).Logger()
	log.Debug().Int("people", len(req.People)).Msg("celebration request started")
	// Stages log through o.log; run them on a copy whose logger carries
	// request_id.
	ro := *o
	ro.log = log
	o = &ro

	req.State = StateGathering
	o.gather(req, now)

	req.State = StateValidated
	o.validate(ctx, req)
	if req.State == StateAborted {
		return nil
	}

	if len(req.SurvivingPeople) > 0 {
		month, day := req.SurvivingPeople[0].Record.Month, req.SurvivingPeople[0].Record.Day
		o.fetchHistoricalFact(ctx, req, fmt.Sprintf("%02d-%02d", month, day), now.Year())
	}

	req.State = StateGenerating
	o.generateText(ctx, req)
	if !req.TextOnly && req.IncludeImage {
		o.generateImages(ctx, req)
	}

	req.State = StateUploading
	if !req.TextOnly && req.IncludeImage {
		o.uploadImages(ctx, req)
	}

	req.State = StateComposing
	blocks := o.compose(req)

	req.State = StatePosting
	if err := o.post(ctx, req, blocks); err != nil {
		o.abort(req, "PostFailed")
		return err
	}

	req.State = StateTracking
	o.track(req, now)

	req.State = StateDone
	o.persistLedger(req, now)
	return nil
}

func (o *Orchestrator) abort(req *CelebrationRequest, reason string) {
	req.State = StateAborted
	req.Reason = reason
	o.log.Warn().Str("reason", reason).Msg("celebration request aborted")
}
