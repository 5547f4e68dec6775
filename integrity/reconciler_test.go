package integrity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/draftdesk/scriptstore/interfaces"
)

func TestReconcile_EmptyReportIsNoop(t *testing.T) {
	writer := &MockWriter{}

	result := NewReconciler(writer, testLogger()).Reconcile(context.Background(), &interfaces.IntegrityReport{})

	assert.Equal(t, 0, result.Applied())
	assert.Empty(t, result.Errors)
	writer.AssertExpectations(t)
}

func TestReconcile_AppliesPerKind(t *testing.T) {
	report := &interfaces.IntegrityReport{
		ScriptFiles: interfaces.CategoryReport{
			BrokenItems: []interfaces.BrokenReference{
				{Kind: interfaces.KindScriptFile, RefID: 41, OwnerID: 10, OwnerTitle: "Nightfall"},
				{Kind: interfaces.KindScriptFile, RefID: 42, OwnerID: 10, OwnerTitle: "Nightfall"},
			},
		},
		CoverImages: interfaces.CategoryReport{
			BrokenItems: []interfaces.BrokenReference{
				{Kind: interfaces.KindCoverImage, OwnerID: 10, OwnerTitle: "Nightfall"},
			},
		},
		ProfilePhotos: interfaces.CategoryReport{
			BrokenItems: []interfaces.BrokenReference{
				{Kind: interfaces.KindProfilePhoto, OwnerID: 7, OwnerTitle: "Ada"},
			},
		},
	}

	writer := &MockWriter{}
	writer.On("DeleteScriptFile", mock.Anything, int64(41)).Return(nil).Once()
	writer.On("DeleteScriptFile", mock.Anything, int64(42)).Return(nil).Once()
	writer.On("ClearCoverImage", mock.Anything, int64(10)).Return(nil).Once()
	writer.On("ClearProfilePhoto", mock.Anything, int64(7)).Return(nil).Once()

	result := NewReconciler(writer, testLogger()).Reconcile(context.Background(), report)

	assert.Equal(t, 2, result.ScriptFilesRemoved)
	assert.Equal(t, 1, result.CoverImagesCleared)
	assert.Equal(t, 1, result.ProfilePhotosCleared)
	assert.Equal(t, 4, result.Applied())
	assert.Empty(t, result.Errors)
	writer.AssertExpectations(t)
}

func TestReconcile_WriteFailureContinues(t *testing.T) {
	report := &interfaces.IntegrityReport{
		ScriptFiles: interfaces.CategoryReport{
			BrokenItems: []interfaces.BrokenReference{
				{Kind: interfaces.KindScriptFile, RefID: 41, OwnerTitle: "Nightfall", URL: missingURL},
				{Kind: interfaces.KindScriptFile, RefID: 42, OwnerTitle: "Nightfall"},
			},
		},
	}

	writer := &MockWriter{}
	writer.On("DeleteScriptFile", mock.Anything, int64(41)).Return(errors.New("connection reset")).Once()
	writer.On("DeleteScriptFile", mock.Anything, int64(42)).Return(nil).Once()

	result := NewReconciler(writer, testLogger()).Reconcile(context.Background(), report)

	assert.Equal(t, 1, result.ScriptFilesRemoved)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "connection reset")
	assert.Contains(t, result.Errors[0], "Nightfall")
	writer.AssertExpectations(t)
}

// fakeCatalog is an in-memory catalog implementing both the reader and
// writer halves, for exercising the scan-reconcile-rescan loop.
type fakeCatalog struct {
	scriptFiles   map[int64]interfaces.FileReference
	coverImages   map[int64]string
	profilePhotos map[int64]string
}

func (c *fakeCatalog) ListScriptFiles(ctx context.Context) ([]interfaces.FileReference, error) {
	var refs []interfaces.FileReference
	for id := int64(0); id < 100; id++ {
		if ref, ok := c.scriptFiles[id]; ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (c *fakeCatalog) ListCoverImages(ctx context.Context) ([]interfaces.FileReference, error) {
	var refs []interfaces.FileReference
	for id := int64(0); id < 100; id++ {
		if url, ok := c.coverImages[id]; ok {
			refs = append(refs, interfaces.FileReference{Kind: interfaces.KindCoverImage, OwnerID: id, URL: url})
		}
	}
	return refs, nil
}

func (c *fakeCatalog) ListProfilePhotos(ctx context.Context) ([]interfaces.FileReference, error) {
	var refs []interfaces.FileReference
	for id := int64(0); id < 100; id++ {
		if url, ok := c.profilePhotos[id]; ok {
			refs = append(refs, interfaces.FileReference{Kind: interfaces.KindProfilePhoto, OwnerID: id, URL: url})
		}
	}
	return refs, nil
}

func (c *fakeCatalog) DeleteScriptFile(ctx context.Context, refID int64) error {
	delete(c.scriptFiles, refID)
	return nil
}

func (c *fakeCatalog) ClearCoverImage(ctx context.Context, scriptID int64) error {
	delete(c.coverImages, scriptID)
	return nil
}

func (c *fakeCatalog) ClearProfilePhoto(ctx context.Context, userID int64) error {
	delete(c.profilePhotos, userID)
	return nil
}

// After reconciling, a second scan must come back clean and a third
// reconcile must apply nothing.
func TestScanReconcileConverges(t *testing.T) {
	catalog := &fakeCatalog{
		scriptFiles: map[int64]interfaces.FileReference{
			1: {Kind: interfaces.KindScriptFile, RefID: 1, OwnerID: 10, URL: validURL},
			2: {Kind: interfaces.KindScriptFile, RefID: 2, OwnerID: 10, URL: missingURL},
		},
		coverImages: map[int64]string{
			10: missingURL,
		},
		profilePhotos: map[int64]string{
			7: validURL,
		},
	}

	ctx := context.Background()
	scanner := NewScanner(catalog, defaultStore(), ScanOptions{}, testLogger())
	reconciler := NewReconciler(catalog, testLogger())

	report, err := scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalBroken())

	result := reconciler.Reconcile(ctx, report)
	assert.Equal(t, 1, result.ScriptFilesRemoved)
	assert.Equal(t, 1, result.CoverImagesCleared)
	assert.Empty(t, result.Errors)

	// The surviving references are untouched.
	assert.Contains(t, catalog.scriptFiles, int64(1))
	assert.Contains(t, catalog.profilePhotos, int64(7))

	clean, err := scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, clean.TotalBroken())
	assert.Equal(t, 1, clean.ScriptFiles.Total)
	assert.Equal(t, 0, clean.CoverImages.Total)
	assert.Equal(t, 1, clean.ProfilePhotos.Total)

	again := reconciler.Reconcile(ctx, clean)
	assert.Equal(t, 0, again.Applied())
}
