package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/services"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

// describeReason turns a decision reason into a sentence for the terminal
func describeReason(r domain.Reason) string {
	switch r {
	case domain.ReasonSingleCategoryExists:
		return "saved to your only category"
	case domain.ReasonDefaultCategoryMatches:
		return "saved to your default category"
	case domain.ReasonMultipleCategoriesNoDefault:
		return "pick a category, or set a default with 'tagbox category default'"
	case domain.ReasonQuotaExceeded:
		return "your plan's screenshot limit is reached"
	case domain.ReasonUnsupportedPlatform:
		return domain.UnsupportedPlatformMessage()
	case domain.ReasonAlreadyAttempted:
		return "this share was already processed once; save it from the form"
	case domain.ReasonNothingToIngest:
		return "nothing to ingest"
	case domain.ReasonAuthenticationRequired:
		return "sign in first with 'tagbox login <name>'"
	case domain.ReasonNoCategories:
		return "create a category first"
	case domain.ReasonPersistenceFailed:
		return "saving failed"
	case domain.ReasonFetchFailed:
		return "the image could not be downloaded"
	case domain.ReasonMaterializationFailed:
		return "the image could not be read"
	case domain.ReasonManualSave:
		return "saved from the form"
	default:
		return string(r)
	}
}

// renderOutcome prints what an ingestion attempt did
func renderOutcome(out *services.Outcome, verbose bool) {
	if verbose {
		states := make([]string, len(out.States))
		for i, s := range out.States {
			states[i] = string(s)
		}
		fmt.Println(ui.FormatMuted("attempt " + out.AttemptID + ": " + strings.Join(states, " → ")))
	}

	if out.Share != nil && verbose {
		fmt.Println(ui.RenderKeyValue("Source", string(out.Source)))
		fmt.Println(ui.RenderKeyValue("Share", out.Share.Preview(60)))
	}

	d := out.Decision
	switch out.State() {
	case domain.StateSaved:
		what := "Image"
		if d.Prefill.URL != "" {
			what = d.Prefill.Platform.DisplayName() + " link"
		}
		fmt.Println(ui.FormatSuccess(fmt.Sprintf("%s saved (%s)", what, describeReason(d.Reason))))
		if out.ContainerID != "" {
			fmt.Println(ui.FormatMuted("Container: " + out.ContainerID))
		}
	case domain.StateDeferred:
		if d.Reason == domain.ReasonNothingToIngest {
			fmt.Println(ui.FormatMuted("Nothing to ingest"))
			return
		}
		fmt.Println(ui.FormatWarning("Needs your input: " + describeReason(d.Reason)))
	case domain.StateFailed:
		fmt.Println(ui.FormatError("Ingestion failed: " + describeReason(d.Reason)))
	default:
		if d.AutoSave() {
			fmt.Println(ui.FormatInfo(fmt.Sprintf("Would auto-save to %s (%s)", categoryLabel(d.CategoryID), describeReason(d.Reason))))
		}
	}

	if out.Err != nil {
		fmt.Println(ui.FormatMuted("  " + errorDetail(out.Err)))
	}
	if p := d.Prefill; !p.Empty() && out.State() != domain.StateSaved {
		if p.URL != "" {
			fmt.Println(ui.RenderKeyValue("  URL", p.URL))
		}
		if p.Image != nil {
			fmt.Println(ui.RenderKeyValue("  Image", fmt.Sprintf("%s (%s)", p.Image.FileName, ui.FormatBytes(p.Image.SizeBytes))))
		}
	}
}

// errorDetail prefers the message of a typed error over its kind prefix
func errorDetail(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Err != nil {
			return de.Message + ": " + de.Err.Error()
		}
		return de.Message
	}
	return err.Error()
}

// categoryLabel resolves a category ID to its name for display
func categoryLabel(id string) string {
	if id == "" {
		return "a new container"
	}
	ctx := getContext()
	user, err := sessionRepo.CurrentUser(ctx)
	if err != nil || user == nil {
		return id
	}
	categories, err := categoryRepo.ListCategories(ctx, user.ID)
	if err != nil {
		return id
	}
	if c := domain.FindCategory(categories, id); c != nil {
		return c.Name
	}
	return id
}
