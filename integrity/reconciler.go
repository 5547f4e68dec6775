package integrity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/draftdesk/scriptstore/interfaces"
	"github.com/draftdesk/scriptstore/metrics"
)

// Reconciler applies corrective writes for the broken references of an
// integrity report: script file rows are deleted outright (history is
// additive, removing one row never breaks referential structure), image
// fields are nulled so the owning script or user survives.
type Reconciler struct {
	catalog interfaces.ReferenceWriter
	log     *slog.Logger
}

// NewReconciler creates a reconciler writing through the given catalog.
func NewReconciler(catalog interfaces.ReferenceWriter, log *slog.Logger) *Reconciler {
	return &Reconciler{catalog: catalog, log: log}
}

// Reconcile applies one corrective write per broken item. Each write is
// independent: a failure is recorded and processing continues, so one
// stuck reference never blocks remediation of the rest. Reconcile is
// idempotent; corrected references no longer appear in subsequent scans,
// so running it again converges to no further changes.
func (r *Reconciler) Reconcile(ctx context.Context, report *interfaces.IntegrityReport) *interfaces.ReconciliationResult {
	result := &interfaces.ReconciliationResult{}

	for _, category := range [][]interfaces.BrokenReference{
		report.ScriptFiles.BrokenItems,
		report.CoverImages.BrokenItems,
		report.ProfilePhotos.BrokenItems,
	} {
		for _, item := range category {
			r.apply(ctx, item, result)
		}
	}

	r.log.Info("Reconciliation complete",
		slog.Int("applied", result.Applied()),
		slog.Int("errors", len(result.Errors)))

	return result
}

func (r *Reconciler) apply(ctx context.Context, item interfaces.BrokenReference, result *interfaces.ReconciliationResult) {
	var err error
	switch item.Kind {
	case interfaces.KindScriptFile:
		if err = r.catalog.DeleteScriptFile(ctx, item.RefID); err == nil {
			result.ScriptFilesRemoved++
			metrics.ReconciliationActionsTotal.WithLabelValues("delete_file").Inc()
		}
	case interfaces.KindCoverImage:
		if err = r.catalog.ClearCoverImage(ctx, item.OwnerID); err == nil {
			result.CoverImagesCleared++
			metrics.ReconciliationActionsTotal.WithLabelValues("clear_cover").Inc()
		}
	case interfaces.KindProfilePhoto:
		if err = r.catalog.ClearProfilePhoto(ctx, item.OwnerID); err == nil {
			result.ProfilePhotosCleared++
			metrics.ReconciliationActionsTotal.WithLabelValues("clear_photo").Inc()
		}
	default:
		err = fmt.Errorf("unknown reference kind %d", item.Kind)
	}

	if err != nil {
		metrics.ReconciliationActionsTotal.WithLabelValues("error").Inc()
		r.log.Warn("Corrective write failed, continuing",
			slog.String("kind", item.Kind.String()),
			slog.String("owner", item.OwnerTitle),
			"err", err)
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s %q (%s): %v", item.Kind, item.OwnerTitle, item.URL, err))
	}
}
