package interfaces

// BrokenReference is one reference whose stored object is definitively
// missing, with enough context for an operator to decide remediation.
type BrokenReference struct {
	Kind       FileKind       `json:"kind"`
	RefID      int64          `json:"ref_id,omitempty"`
	OwnerID    int64          `json:"owner_id"`
	OwnerTitle string         `json:"owner_title"`
	Field      string         `json:"field"`
	URL        string         `json:"url"`
	Key        StorageKey     `json:"key,omitempty"`
	FileType   ScriptFileType `json:"file_type,omitempty"`
}

// CategoryReport aggregates scan results for one reference category.
// Unverifiable counts references whose URL could not be parsed or whose
// existence probe was inconclusive; outside strict mode those count as
// valid.
type CategoryReport struct {
	Total        int               `json:"total"`
	Valid        int               `json:"valid"`
	Broken       int               `json:"broken"`
	Unverifiable int               `json:"unverifiable"`
	BrokenItems  []BrokenReference `json:"broken_items,omitempty"`
}

// IntegrityReport is the full result of one scan. It is never persisted;
// each scan regenerates it from scratch. Two scans with no intervening
// writes produce identical reports.
type IntegrityReport struct {
	ScriptFiles     CategoryReport `json:"script_files"`
	CoverImages     CategoryReport `json:"cover_images"`
	ProfilePhotos   CategoryReport `json:"profile_photos"`
	Recommendations []string       `json:"recommendations"`
}

// TotalBroken returns the number of broken references across all
// categories.
func (r *IntegrityReport) TotalBroken() int {
	return r.ScriptFiles.Broken + r.CoverImages.Broken + r.ProfilePhotos.Broken
}

// ReconciliationResult counts the corrective writes applied for one
// report, plus per-item errors for writes that failed. Partial completion
// is an acceptable, reportable outcome.
type ReconciliationResult struct {
	ScriptFilesRemoved   int      `json:"script_files_removed"`
	CoverImagesCleared   int      `json:"cover_images_cleared"`
	ProfilePhotosCleared int      `json:"profile_photos_cleared"`
	Errors               []string `json:"errors,omitempty"`
}

// Applied returns the total number of successful corrective writes.
func (r *ReconciliationResult) Applied() int {
	return r.ScriptFilesRemoved + r.CoverImagesCleared + r.ProfilePhotosCleared
}
