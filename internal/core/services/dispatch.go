package services

import (
	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// DecisionInput is everything Decide needs. Decide never performs I/O;
// the Ingestor gathers these values first.
type DecisionInput struct {
	Authenticated bool
	Payload       domain.ClassifiedPayload

	// URL path
	Canonical  CanonicalURL
	HasURL     bool
	CategoryID string // hint carried through to the manual form only

	// Image path
	Image   *domain.NormalizedImage
	QuotaOK bool

	Categories        []domain.Category
	DefaultCategoryID string

	AlreadyAttempted bool
}

// Decide applies the dispatch rules in order and returns one decision
func Decide(in DecisionInput) domain.DispatchDecision {
	prefill := prefillFor(in)

	// Rule 0
	if !in.Authenticated {
		return domain.Defer(domain.ReasonAuthenticationRequired, prefill)
	}

	// Rule 1
	if in.Payload.Kind == domain.PayloadUnrecognized || (!in.HasURL && in.Image == nil) {
		return domain.Defer(domain.ReasonNothingToIngest, domain.Prefill{Note: in.Payload.Text, CategoryID: in.CategoryID})
	}

	if in.AlreadyAttempted {
		return domain.Defer(domain.ReasonAlreadyAttempted, prefill)
	}

	// Rule 2
	if in.Image != nil && !in.QuotaOK {
		return domain.Defer(domain.ReasonQuotaExceeded, prefill)
	}

	target, targetReason, ok := resolveTarget(in.Categories, in.DefaultCategoryID)

	if in.HasURL {
		// Rule 5
		if !in.Canonical.Platform.AutoProcessable() {
			return domain.Defer(domain.ReasonUnsupportedPlatform, prefill)
		}
		// Rule 3
		if ok {
			return domain.DispatchDecision{
				Action:     domain.ActionAutoSaveToCategory,
				CategoryID: target,
				Prefill:    prefill,
				Reason:     targetReason,
			}
		}
		// Rule 4
		return domain.Defer(targetReason, prefill)
	}

	// Rule 6
	if ok {
		return domain.DispatchDecision{
			Action:     domain.ActionAutoSaveNewContainer,
			CategoryID: target,
			Prefill:    prefill,
			Reason:     targetReason,
		}
	}
	return domain.Defer(targetReason, prefill)
}

// resolveTarget picks the auto-save category. A configured default that is
// still in the list wins; otherwise a lone category is used. A stale default
// is treated as unset.
func resolveTarget(categories []domain.Category, defaultID string) (string, domain.Reason, bool) {
	if len(categories) == 0 {
		return "", domain.ReasonNoCategories, false
	}
	if c := domain.FindCategory(categories, defaultID); c != nil {
		return c.ID, domain.ReasonDefaultCategoryMatches, true
	}
	if len(categories) == 1 {
		return categories[0].ID, domain.ReasonSingleCategoryExists, true
	}
	return "", domain.ReasonMultipleCategoriesNoDefault, false
}

func prefillFor(in DecisionInput) domain.Prefill {
	p := domain.Prefill{
		Image:      in.Image,
		CategoryID: in.CategoryID,
	}
	if in.HasURL {
		p.URL = in.Canonical.URL
		p.Platform = in.Canonical.Platform
		if p.URL == "" {
			p.URL = in.Payload.ExtractedURL
		}
	}
	if p.CategoryID == "" && domain.FindCategory(in.Categories, in.DefaultCategoryID) != nil {
		p.CategoryID = in.DefaultCategoryID
	}
	return p
}
