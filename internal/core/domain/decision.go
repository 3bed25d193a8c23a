package domain

// Action is what the caller should do with an ingestion attempt
type Action string

const (
	ActionAutoSaveToCategory   Action = "auto_save_to_category"
	ActionAutoSaveNewContainer Action = "auto_save_new_container"
	ActionDeferToManualForm    Action = "defer_to_manual_form"
)

// Reason explains a decision. The values are a stable contract.
type Reason string

const (
	ReasonSingleCategoryExists        Reason = "single_category_exists"
	ReasonDefaultCategoryMatches      Reason = "default_category_matches"
	ReasonMultipleCategoriesNoDefault Reason = "multiple_categories_no_default"
	ReasonQuotaExceeded               Reason = "quota_exceeded"
	ReasonUnsupportedPlatform         Reason = "unsupported_platform"
	ReasonAlreadyAttempted            Reason = "already_attempted"

	ReasonNothingToIngest        Reason = "nothing_to_ingest"
	ReasonAuthenticationRequired Reason = "authentication_required"
	ReasonNoCategories           Reason = "no_categories"
	ReasonPersistenceFailed      Reason = "persistence_failed"
	ReasonFetchFailed            Reason = "fetch_failed"
	ReasonMaterializationFailed  Reason = "materialization_failed"

	// ReasonManualSave marks a share the user saved through the form
	ReasonManualSave Reason = "manual_save"
)

// Prefill is whatever the pipeline managed to recover for the manual form
type Prefill struct {
	URL        string
	Platform   Platform
	Image      *NormalizedImage
	Note       string
	CategoryID string
}

// Empty reports whether nothing was recovered
func (p Prefill) Empty() bool {
	return p.URL == "" && p.Image == nil && p.Note == "" && p.CategoryID == ""
}

// DispatchDecision is created once per ingestion attempt and never mutated
type DispatchDecision struct {
	Action     Action
	CategoryID string
	Prefill    Prefill
	Reason     Reason
}

// AutoSave reports whether the decision saves without user input
func (d DispatchDecision) AutoSave() bool {
	return d.Action == ActionAutoSaveToCategory || d.Action == ActionAutoSaveNewContainer
}

// Defer builds a manual-form decision
func Defer(reason Reason, prefill Prefill) DispatchDecision {
	return DispatchDecision{
		Action:  ActionDeferToManualForm,
		Prefill: prefill,
		Reason:  reason,
	}
}

// PipelineState is a state of a single ingestion attempt
type PipelineState string

const (
	StateIdle        PipelineState = "idle"
	StateReading     PipelineState = "reading"
	StateClassifying PipelineState = "classifying"
	StateURLPath     PipelineState = "url_path"
	StateImagePath   PipelineState = "image_path"
	StateDeciding    PipelineState = "deciding"
	StateAutoSaving  PipelineState = "auto_saving"
	StateSaved       PipelineState = "saved"
	StateDeferred    PipelineState = "deferred"
	StateFailed      PipelineState = "failed"
)

// Terminal reports whether no further transitions follow
func (s PipelineState) Terminal() bool {
	return s == StateSaved || s == StateDeferred || s == StateFailed
}
