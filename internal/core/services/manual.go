package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/logging"
)

// ManualEntry is what the user confirmed in the manual form or on the command line
type ManualEntry struct {
	CategoryID string
	Title      string
	URL        string
	Note       string
	Tags       []string
	Image      *domain.NormalizedImage

	// Share is set when the entry came from a deferred pending share
	Share *domain.PendingShare
}

// ManualResult is what a manual save produced
type ManualResult struct {
	ContainerID string
	Images      []domain.StoredImage
	Platform    domain.Platform
}

// ManualSaveService is the user-confirmed save path. It re-validates
// everything since a form can be submitted long after the pipeline ran.
type ManualSaveService struct {
	session     ports.SessionProvider
	categories  ports.CategoryStore
	content     ports.ContentStore
	quota       ports.QuotaSource
	attempts    ports.AttemptTracker
	sources     *SourceChain
	sideChannel ports.SideChannelStore
	log         logging.Logger
	now         func() time.Time
}

func NewManualSaveService(deps IngestorDeps) *ManualSaveService {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	return &ManualSaveService{
		session:     deps.Session,
		categories:  deps.Categories,
		content:     deps.Content,
		quota:       deps.Quota,
		attempts:    deps.Attempts,
		sources:     deps.Sources,
		sideChannel: deps.SideChannel,
		log:         log,
		now:         time.Now,
	}
}

// Save persists a manual entry. On success the originating share, if any,
// is cleared from its source.
func (s *ManualSaveService) Save(ctx context.Context, entry ManualEntry) (*ManualResult, error) {
	user, err := s.session.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	if user == nil {
		return nil, domain.NewError(domain.ErrUnauthenticated, "sign in with 'tagbox login' first")
	}

	if err := domain.ValidateNote(entry.Note); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "invalid note", err)
	}
	if entry.URL == "" && entry.Image == nil {
		return nil, domain.NewError(domain.ErrInvalidInput, "a link or an image is required")
	}

	categories, err := s.categories.ListCategories(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if domain.FindCategory(categories, entry.CategoryID) == nil {
		return nil, domain.NewError(domain.ErrInvalidInput, "select a category")
	}

	result := &ManualResult{}
	meta := domain.ContainerMeta{
		Title: strings.TrimSpace(entry.Title),
		Note:  entry.Note,
		Tags:  entry.Tags,
	}

	if entry.URL != "" {
		canonical, err := Normalize(entry.URL)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "invalid link", err)
		}
		if !canonical.Platform.AutoProcessable() {
			return nil, domain.NewError(domain.ErrUnsupportedPlatform, domain.UnsupportedPlatformMessage())
		}
		meta.URL = canonical.URL
		meta.Platform = canonical.Platform
		result.Platform = canonical.Platform
		if meta.Title == "" {
			meta.Title = canonical.Platform.DefaultTitle()
		}
	}

	if entry.Image != nil {
		if !entry.Image.WithinLimit(domain.MaxUploadBytes) {
			return nil, domain.NewError(domain.ErrPayloadTooLarge, "image exceeds the upload limit")
		}
		snap, err := s.quota.QuotaSnapshot(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read quota: %w", err)
		}
		if !CheckQuota(snap, ImageIncrement(entry.Image)) {
			return nil, domain.NewError(domain.ErrPlanLimitExceeded, "screenshot limit reached for your plan")
		}
		if meta.Title == "" {
			meta.Title = domain.ScreenshotContainerTitle(s.now())
		}
	}

	id, err := s.content.CreateContainer(ctx, user.ID, entry.CategoryID, meta)
	if err != nil {
		return nil, err
	}
	result.ContainerID = id

	if entry.Image != nil {
		stored, err := s.content.UploadImages(ctx, id, []*domain.NormalizedImage{entry.Image}, entry.Note)
		if err != nil {
			if derr := s.content.DeleteContainer(context.WithoutCancel(ctx), id); derr != nil {
				s.log.Warn(ctx, "could not remove empty container", "container_id", id, "error", derr)
			}
			return nil, err
		}
		result.Images = stored
		entry.Image.Release()
	}

	s.log.Info(ctx, "manual entry saved", "container_id", id, "category_id", entry.CategoryID)

	if entry.Share != nil {
		s.clearShare(ctx, entry.Share)
		s.markSaved(ctx, entry.Share.ID)
	}
	return result, nil
}

func (s *ManualSaveService) clearShare(ctx context.Context, share *domain.PendingShare) {
	if s.sources != nil {
		if src := s.sources.Source(share.SourceKind); src != nil {
			if err := src.Clear(ctx, share); err != nil {
				s.log.Warn(ctx, "could not clear pending share", "share_id", share.ID, "error", err)
			}
		}
	}
	if share.IsImage() && s.sideChannel != nil {
		if err := s.sideChannel.Clear(ctx); err != nil {
			s.log.Warn(ctx, "could not clear side channel", "error", err)
		}
	}
}

// markSaved records the share as saved so sources that keep their content,
// like the clipboard, stop offering it
func (s *ManualSaveService) markSaved(ctx context.Context, shareID string) {
	if s.attempts == nil || shareID == "" {
		return
	}
	attemptID := ulid.Make().String()
	claimed, err := s.attempts.Claim(ctx, shareID, attemptID)
	if err == nil && !claimed {
		var rec *ports.AttemptRecord
		if rec, err = s.attempts.Lookup(ctx, shareID); err == nil && rec != nil {
			attemptID = rec.AttemptID
		}
	}
	if err == nil {
		err = s.attempts.Finish(ctx, shareID, attemptID, domain.StateSaved, domain.ReasonManualSave)
	}
	if err != nil {
		s.log.Warn(ctx, "could not record saved share", "share_id", shareID, "error", err)
	}
}

// CreateCategory validates and creates a category for the signed-in user
func (s *ManualSaveService) CreateCategory(ctx context.Context, name, description string, color domain.CategoryColor) (string, error) {
	user, err := s.session.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("session lookup failed: %w", err)
	}
	if user == nil {
		return "", domain.NewError(domain.ErrUnauthenticated, "sign in with 'tagbox login' first")
	}
	if err := domain.ValidateCategoryName(name); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "invalid category", err)
	}
	return s.categories.CreateCategory(ctx, user.ID, domain.Category{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Color:       color,
	})
}
