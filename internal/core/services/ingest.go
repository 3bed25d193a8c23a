package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/logging"
)

// Outcome is the record of one ingestion attempt
type Outcome struct {
	AttemptID   string
	Share       *domain.PendingShare
	Source      domain.SourceKind
	Payload     domain.ClassifiedPayload
	Decision    domain.DispatchDecision
	States      []domain.PipelineState
	ContainerID string
	Images      []domain.StoredImage

	// Err is the failure behind a Failed state or a downgraded save
	Err error
}

// State returns the last state reached
func (o *Outcome) State() domain.PipelineState {
	if len(o.States) == 0 {
		return domain.StateIdle
	}
	return o.States[len(o.States)-1]
}

// Saved reports whether the payload was persisted
func (o *Outcome) Saved() bool {
	return o.State() == domain.StateSaved
}

// NeedsForm reports whether the caller should open the manual form
func (o *Outcome) NeedsForm() bool {
	s := o.State()
	return (s == domain.StateDeferred || s == domain.StateFailed) &&
		o.Decision.Reason != domain.ReasonNothingToIngest &&
		o.Decision.Reason != domain.ReasonAuthenticationRequired
}

func (o *Outcome) enter(s domain.PipelineState) {
	o.States = append(o.States, s)
}

// RunOptions tune a single Run
type RunOptions struct {
	// DryRun stops after the decision without claiming or saving
	DryRun bool
}

// IngestorDeps groups the collaborators of an Ingestor
type IngestorDeps struct {
	Sources      *SourceChain
	SideChannel  ports.SideChannelStore
	Materializer *Materializer
	Session      ports.SessionProvider
	Categories   ports.CategoryStore
	Preferences  ports.PreferenceStore
	Content      ports.ContentStore
	Quota        ports.QuotaSource
	Attempts     ports.AttemptTracker
	Log          logging.Logger
}

// Ingestor drives a pending share through the pipeline state machine
type Ingestor struct {
	deps  IngestorDeps
	log   logging.Logger
	now   func() time.Time
	newID func() string
}

func NewIngestor(deps IngestorDeps) *Ingestor {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	if deps.Sources != nil && deps.Attempts != nil {
		deps.Sources.SkipSaved(deps.Attempts)
	}
	return &Ingestor{
		deps:  deps,
		log:   log,
		now:   time.Now,
		newID: func() string { return ulid.Make().String() },
	}
}

// Run performs one ingestion attempt. The returned error is non-nil only
// when ctx was cancelled; every other failure is reported in the Outcome.
// Cancellation never deletes the share.
func (in *Ingestor) Run(ctx context.Context, opts RunOptions) (*Outcome, error) {
	out := &Outcome{AttemptID: in.newID()}
	out.enter(domain.StateIdle)
	log := in.log.With("attempt_id", out.AttemptID)

	user, err := in.deps.Session.CurrentUser(ctx)
	if err != nil {
		return in.fail(ctx, log, out, domain.ReasonPersistenceFailed, domain.Prefill{}, fmt.Errorf("session lookup failed: %w", err))
	}

	out.enter(domain.StateReading)
	share, src := in.deps.Sources.Read(ctx)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if share == nil {
		out.enter(domain.StateDeciding)
		return in.finishDeferred(ctx, log, out, Decide(DecisionInput{
			Authenticated: user != nil,
			Payload:       domain.ClassifiedPayload{Kind: domain.PayloadUnrecognized},
		})), nil
	}

	out.Share = share
	out.Source = src.Kind()
	log = log.With("share_id", share.ID, "source", share.SourceKind)

	out.enter(domain.StateClassifying)
	out.Payload = Classify(share)
	log.Info(ctx, "share classified", "kind", out.Payload.Kind)

	input := DecisionInput{
		Authenticated: user != nil,
		Payload:       out.Payload,
		CategoryID:    share.CategoryHint,
	}

	switch {
	case out.Payload.HasURL():
		out.enter(domain.StateURLPath)
		input.HasURL = true
		canonical, err := Normalize(out.Payload.ExtractedURL)
		if err != nil {
			log.Warn(ctx, "url normalization failed", "error", err)
			canonical = CanonicalURL{URL: out.Payload.ExtractedURL}
		}
		input.Canonical = canonical

	case out.Payload.HasImage() && user != nil:
		out.enter(domain.StateImagePath)
		img, err := in.deps.Materializer.Materialize(ctx, *out.Payload.ImageRef)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			return in.materializationFailed(ctx, log, out, share, err)
		}
		input.Image = img

		snap, err := in.deps.Quota.QuotaSnapshot(ctx, user.ID)
		if err != nil {
			return in.fail(ctx, log, out, domain.ReasonPersistenceFailed, domain.Prefill{Image: img, CategoryID: share.CategoryHint}, fmt.Errorf("quota lookup failed: %w", err))
		}
		input.QuotaOK = CheckQuota(snap, ImageIncrement(img))
		log.Debug(ctx, "quota checked", "quota", snap.String(), "ok", input.QuotaOK)
	}

	if user != nil {
		rec, err := in.deps.Attempts.Lookup(ctx, share.ID)
		if err != nil {
			log.Warn(ctx, "attempt lookup failed", "error", err)
		}
		input.AlreadyAttempted = rec != nil

		categories, err := in.deps.Categories.ListCategories(ctx, user.ID)
		if err != nil {
			return in.fail(ctx, log, out, domain.ReasonPersistenceFailed, prefillFor(input), fmt.Errorf("list categories: %w", err))
		}
		input.Categories = categories

		def, err := in.deps.Preferences.DefaultCategory(ctx, user.ID)
		if err != nil {
			log.Warn(ctx, "default category lookup failed", "error", err)
		}
		input.DefaultCategoryID = def
	}

	out.enter(domain.StateDeciding)
	decision := Decide(input)
	log.Info(ctx, "dispatch decided", "action", decision.Action, "reason", decision.Reason, "category_id", decision.CategoryID)

	if !decision.AutoSave() {
		return in.finishDeferred(ctx, log, out, decision), nil
	}
	if opts.DryRun {
		out.Decision = decision
		return out, nil
	}

	return in.autoSave(ctx, log, out, src, user, decision)
}

func (in *Ingestor) autoSave(ctx context.Context, log logging.Logger, out *Outcome, src ports.PayloadSource, user *domain.User, decision domain.DispatchDecision) (*Outcome, error) {
	share := out.Share

	claimed, err := in.deps.Attempts.Claim(ctx, share.ID, out.AttemptID)
	if err != nil {
		return in.fail(ctx, log, out, domain.ReasonPersistenceFailed, decision.Prefill, fmt.Errorf("claim attempt: %w", err))
	}
	if !claimed {
		log.Info(ctx, "share already claimed by another attempt")
		return in.finishDeferred(ctx, log, out, domain.Defer(domain.ReasonAlreadyAttempted, decision.Prefill)), nil
	}

	out.enter(domain.StateAutoSaving)
	out.Decision = decision

	if img := decision.Prefill.Image; img != nil && decision.Action == domain.ActionAutoSaveNewContainer {
		snap, err := in.deps.Quota.QuotaSnapshot(ctx, user.ID)
		if err == nil && !CheckQuota(snap, ImageIncrement(img)) {
			return in.saveDowngraded(ctx, log, out, domain.ReasonQuotaExceeded,
				domain.NewError(domain.ErrPlanLimitExceeded, "quota reached before write"))
		}
	}

	if err := in.persist(ctx, user, out, decision); err != nil {
		if ctx.Err() != nil {
			// The write may or may not have landed; leave the claim so it is never repeated
			return out, ctx.Err()
		}
		return in.saveDowngraded(ctx, log, out, persistenceReason(err), err)
	}

	out.enter(domain.StateSaved)
	if err := in.deps.Attempts.Finish(ctx, share.ID, out.AttemptID, domain.StateSaved, decision.Reason); err != nil {
		log.Warn(ctx, "could not record finished attempt", "error", err)
	}
	if err := src.Clear(ctx, share); err != nil {
		log.Warn(ctx, "could not clear pending share", "error", err)
	}
	if share.IsImage() || out.Payload.HasImage() {
		if err := in.deps.SideChannel.Clear(ctx); err != nil {
			log.Warn(ctx, "could not clear side channel", "error", err)
		}
	}
	decision.Prefill.Image.Release()

	log.Info(ctx, "share saved", "container_id", out.ContainerID, "images", len(out.Images))
	return out, nil
}

func (in *Ingestor) persist(ctx context.Context, user *domain.User, out *Outcome, decision domain.DispatchDecision) error {
	switch decision.Action {
	case domain.ActionAutoSaveToCategory:
		p := decision.Prefill
		id, err := in.deps.Content.CreateContainer(ctx, user.ID, decision.CategoryID, domain.ContainerMeta{
			Title:    p.Platform.DefaultTitle(),
			URL:      p.URL,
			Platform: p.Platform,
		})
		if err != nil {
			return err
		}
		out.ContainerID = id
		return nil

	case domain.ActionAutoSaveNewContainer:
		p := decision.Prefill
		id, err := in.deps.Content.CreateContainer(ctx, user.ID, decision.CategoryID, domain.ContainerMeta{
			Title: domain.ScreenshotContainerTitle(in.now()),
			Note:  p.Note,
		})
		if err != nil {
			return err
		}
		out.ContainerID = id

		stored, err := in.deps.Content.UploadImages(ctx, id, []*domain.NormalizedImage{p.Image}, p.Note)
		if err != nil {
			in.dropContainer(ctx, id)
			return err
		}
		out.Images = stored
		return nil
	}
	return domain.NewError(domain.ErrOther, fmt.Sprintf("action %s does not save", decision.Action))
}

// dropContainer removes a container whose images never landed
func (in *Ingestor) dropContainer(ctx context.Context, containerID string) {
	if err := in.deps.Content.DeleteContainer(context.WithoutCancel(ctx), containerID); err != nil {
		in.log.Warn(ctx, "could not remove empty container", "container_id", containerID, "error", err)
	}
}

// persistenceReason maps a persistence error kind to the reason shown in the form
func persistenceReason(err error) domain.Reason {
	switch domain.KindOf(err) {
	case domain.ErrPlanLimitExceeded:
		return domain.ReasonQuotaExceeded
	case domain.ErrUnsupportedPlatform:
		return domain.ReasonUnsupportedPlatform
	default:
		return domain.ReasonPersistenceFailed
	}
}

// saveDowngraded turns a failed auto-save into a deferral with the full prefill
func (in *Ingestor) saveDowngraded(ctx context.Context, log logging.Logger, out *Outcome, reason domain.Reason, err error) (*Outcome, error) {
	log.Warn(ctx, "auto-save failed, deferring to manual form", "reason", reason, "error", err)
	out.Err = err
	out.Decision = domain.Defer(reason, out.Decision.Prefill)
	out.enter(domain.StateDeferred)
	if ferr := in.deps.Attempts.Finish(ctx, out.Share.ID, out.AttemptID, domain.StateDeferred, reason); ferr != nil {
		log.Warn(ctx, "could not record finished attempt", "error", ferr)
	}
	return out, nil
}

func (in *Ingestor) materializationFailed(ctx context.Context, log logging.Logger, out *Outcome, share *domain.PendingShare, err error) (*Outcome, error) {
	ref := out.Payload.ImageRef
	if domain.IsKind(err, domain.ErrFetchFailed) {
		out.Err = err
		log.Warn(ctx, "image fetch failed", "error", err)
		out.enter(domain.StateDeferred)
		out.Decision = domain.Defer(domain.ReasonFetchFailed, domain.Prefill{URL: ref.Value, CategoryID: share.CategoryHint})
		return out, nil
	}
	return in.fail(ctx, log, out, domain.ReasonMaterializationFailed, domain.Prefill{CategoryID: share.CategoryHint}, err)
}

func (in *Ingestor) finishDeferred(ctx context.Context, log logging.Logger, out *Outcome, decision domain.DispatchDecision) *Outcome {
	out.Decision = decision
	out.enter(domain.StateDeferred)
	log.Debug(ctx, "attempt deferred", "reason", decision.Reason)
	return out
}

func (in *Ingestor) fail(ctx context.Context, log logging.Logger, out *Outcome, reason domain.Reason, prefill domain.Prefill, err error) (*Outcome, error) {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return out, ctxErr
	}
	log.Error(ctx, "ingestion failed", "reason", reason, "error", err)
	out.Err = err
	out.Decision = domain.Defer(reason, prefill)
	out.enter(domain.StateFailed)
	return out, nil
}

// ClearPending removes the pending share from every source that holds one,
// together with the side-channel image and any attempt record. It is the
// explicit user-initiated clear.
func (in *Ingestor) ClearPending(ctx context.Context) (*domain.PendingShare, error) {
	share, src := in.deps.Sources.Read(ctx)
	if share == nil {
		return nil, in.deps.SideChannel.Clear(ctx)
	}
	if err := src.Clear(ctx, share); err != nil {
		return share, fmt.Errorf("failed to clear share: %w", err)
	}
	if err := in.deps.SideChannel.Clear(ctx); err != nil {
		return share, fmt.Errorf("failed to clear side channel: %w", err)
	}
	if share.SourceKind == domain.SourceShareIntent {
		if err := in.deps.Attempts.Forget(ctx, share.ID); err != nil {
			in.log.Warn(ctx, "could not forget attempt", "share_id", share.ID, "error", err)
		}
	}
	return share, nil
}
