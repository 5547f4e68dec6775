package integrity

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/draftdesk/scriptstore/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubStore answers existence probes from fixed maps.
type stubStore struct {
	existing     map[interfaces.StorageKey]bool
	inconclusive map[interfaces.StorageKey]error
}

func (s *stubStore) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	if err, ok := s.inconclusive[key]; ok {
		return false, err
	}
	return s.existing[key], nil
}

// stubReader returns fixed reference slices.
type stubReader struct {
	scriptFiles   []interfaces.FileReference
	coverImages   []interfaces.FileReference
	profilePhotos []interfaces.FileReference
}

func (r *stubReader) ListScriptFiles(ctx context.Context) ([]interfaces.FileReference, error) {
	return r.scriptFiles, nil
}

func (r *stubReader) ListCoverImages(ctx context.Context) ([]interfaces.FileReference, error) {
	return r.coverImages, nil
}

func (r *stubReader) ListProfilePhotos(ctx context.Context) ([]interfaces.FileReference, error) {
	return r.profilePhotos, nil
}

// MockWriter implements interfaces.ReferenceWriter for testing.
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) DeleteScriptFile(ctx context.Context, refID int64) error {
	args := m.Called(ctx, refID)
	return args.Error(0)
}

func (m *MockWriter) ClearCoverImage(ctx context.Context, scriptID int64) error {
	args := m.Called(ctx, scriptID)
	return args.Error(0)
}

func (m *MockWriter) ClearProfilePhoto(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

const (
	validURL       = "https://cdn.draftdesk.example/scripts/1_aa_ok.pdf"
	missingURL     = "https://cdn.draftdesk.example/scripts/2_bb_gone.pdf"
	unparseableURL = "https://www.dropbox.com/s/abc/draft.pdf"
	flakyURL       = "https://cdn.draftdesk.example/scripts/3_cc_flaky.pdf"
)

func defaultStore() *stubStore {
	return &stubStore{
		existing: map[interfaces.StorageKey]bool{
			"scripts/1_aa_ok.pdf": true,
		},
		inconclusive: map[interfaces.StorageKey]error{
			"scripts/3_cc_flaky.pdf": interfaces.ErrBackendUnavailable,
		},
	}
}

func TestScanner_ClassifiesReferences(t *testing.T) {
	reader := &stubReader{
		scriptFiles: []interfaces.FileReference{
			{Kind: interfaces.KindScriptFile, RefID: 1, OwnerTitle: "Nightfall", URL: validURL},
			{Kind: interfaces.KindScriptFile, RefID: 2, OwnerTitle: "Nightfall", URL: missingURL},
			{Kind: interfaces.KindScriptFile, RefID: 3, OwnerTitle: "Nightfall", URL: unparseableURL},
		},
	}

	scanner := NewScanner(reader, defaultStore(), ScanOptions{}, testLogger())
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.ScriptFiles.Total)
	// The unparseable reference counts as valid under the fail-safe
	// policy, and is surfaced through the unverifiable counter.
	assert.Equal(t, 2, report.ScriptFiles.Valid)
	assert.Equal(t, 1, report.ScriptFiles.Broken)
	assert.Equal(t, 1, report.ScriptFiles.Unverifiable)

	require.Len(t, report.ScriptFiles.BrokenItems, 1)
	item := report.ScriptFiles.BrokenItems[0]
	assert.Equal(t, int64(2), item.RefID)
	assert.Equal(t, missingURL, item.URL)
	assert.Equal(t, interfaces.StorageKey("scripts/2_bb_gone.pdf"), item.Key)
}

func TestScanner_StrictModeFlagsUnparseable(t *testing.T) {
	reader := &stubReader{
		coverImages: []interfaces.FileReference{
			{Kind: interfaces.KindCoverImage, OwnerID: 10, OwnerTitle: "Nightfall", URL: unparseableURL},
		},
	}

	scanner := NewScanner(reader, defaultStore(), ScanOptions{Strict: true}, testLogger())
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.CoverImages.Broken)
	assert.Equal(t, 1, report.CoverImages.Unverifiable)
	require.Len(t, report.CoverImages.BrokenItems, 1)
	assert.True(t, report.CoverImages.BrokenItems[0].Key.IsZero())
}

// A backend that cannot answer must never cause a reference to be
// classified broken, and no reconciliation action may be taken on it.
func TestScanner_InconclusiveProbeKeepsReference(t *testing.T) {
	reader := &stubReader{
		profilePhotos: []interfaces.FileReference{
			{Kind: interfaces.KindProfilePhoto, OwnerID: 7, OwnerTitle: "Ada", URL: flakyURL},
		},
	}

	scanner := NewScanner(reader, defaultStore(), ScanOptions{}, testLogger())
	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.ProfilePhotos.Valid)
	assert.Equal(t, 0, report.ProfilePhotos.Broken)
	assert.Equal(t, 1, report.ProfilePhotos.Unverifiable)
	assert.Empty(t, report.ProfilePhotos.BrokenItems)

	// Strict mode changes nothing: strictness only applies to
	// unparseable URLs, never to inconclusive probes.
	strict := NewScanner(reader, defaultStore(), ScanOptions{Strict: true}, testLogger())
	strictReport, err := strict.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, strictReport.ProfilePhotos.Broken)

	// No corrective write may touch it.
	writer := &MockWriter{}
	result := NewReconciler(writer, testLogger()).Reconcile(context.Background(), report)
	assert.Equal(t, 0, result.Applied())
	writer.AssertExpectations(t)
}

func TestScanner_RepeatedScansAreIdentical(t *testing.T) {
	reader := &stubReader{
		scriptFiles: []interfaces.FileReference{
			{Kind: interfaces.KindScriptFile, RefID: 1, OwnerTitle: "Nightfall", URL: validURL},
			{Kind: interfaces.KindScriptFile, RefID: 2, OwnerTitle: "Nightfall", URL: missingURL},
			{Kind: interfaces.KindScriptFile, RefID: 3, OwnerTitle: "Nightfall", URL: flakyURL},
		},
		coverImages: []interfaces.FileReference{
			{Kind: interfaces.KindCoverImage, OwnerID: 10, OwnerTitle: "Nightfall", URL: missingURL},
		},
	}

	scanner := NewScanner(reader, defaultStore(), ScanOptions{Fanout: 2}, testLogger())

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScanner_CancelledContextStopsScan(t *testing.T) {
	reader := &stubReader{
		scriptFiles: []interfaces.FileReference{
			{Kind: interfaces.KindScriptFile, RefID: 1, URL: validURL},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(reader, defaultStore(), ScanOptions{}, testLogger())
	_, err := scanner.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecommendations(t *testing.T) {
	clean := &interfaces.IntegrityReport{}
	recs := recommendations(clean)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "all file references resolve")

	dirty := &interfaces.IntegrityReport{
		ScriptFiles: interfaces.CategoryReport{Broken: 2},
		CoverImages: interfaces.CategoryReport{Unverifiable: 1},
	}
	recs = recommendations(dirty)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0], "2 script file(s)")
	assert.Contains(t, recs[1], "could not be verified")
}
