// Package integrity detects and repairs drift between the relational
// store's file references and what is actually retrievable from storage.
//
// The Scanner produces a classified report per reference category; the
// Reconciler consumes a report and applies corrective writes. Both follow
// one policy throughout: when evidence is inconclusive, keep the
// reference. A leaked stale reference is recoverable; a deleted live one
// is not.
package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/draftdesk/scriptstore/interfaces"
	"github.com/draftdesk/scriptstore/keycodec"
	"github.com/draftdesk/scriptstore/metrics"
)

// ObjectStore is the slice of the storage facade the scanner needs.
type ObjectStore interface {
	// Exists probes one key; (false, err) means inconclusive.
	Exists(ctx context.Context, key interfaces.StorageKey) (bool, error)
}

// ScanOptions tunes a scan.
type ScanOptions struct {
	// Strict classifies references with unparseable URLs as broken
	// instead of leaving them in place. Inconclusive existence probes
	// are never classified as broken, strict or not.
	Strict bool

	// Fanout bounds the number of concurrent existence checks per
	// category. Zero means DefaultFanout.
	Fanout int
}

// DefaultFanout is the existence-check concurrency used when ScanOptions
// does not specify one.
const DefaultFanout = 8

// Scanner classifies every file reference as valid or broken.
type Scanner struct {
	catalog interfaces.ReferenceReader
	store   ObjectStore
	opts    ScanOptions
	log     *slog.Logger
}

// NewScanner creates a scanner over the given catalog and store.
func NewScanner(catalog interfaces.ReferenceReader, store ObjectStore, opts ScanOptions, log *slog.Logger) *Scanner {
	if opts.Fanout <= 0 {
		opts.Fanout = DefaultFanout
	}
	return &Scanner{catalog: catalog, store: store, opts: opts, log: log}
}

// Scan enumerates all three reference categories and probes each
// reference's storage key. The scan is read-only and may run arbitrarily
// often; with no intervening writes, two scans produce identical reports.
func (s *Scanner) Scan(ctx context.Context) (*interfaces.IntegrityReport, error) {
	metrics.ScansTotal.Inc()

	scriptFiles, err := s.catalog.ListScriptFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate script files: %w", err)
	}
	coverImages, err := s.catalog.ListCoverImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate cover images: %w", err)
	}
	profilePhotos, err := s.catalog.ListProfilePhotos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate profile photos: %w", err)
	}

	report := &interfaces.IntegrityReport{}
	if report.ScriptFiles, err = s.scanCategory(ctx, scriptFiles); err != nil {
		return nil, err
	}
	if report.CoverImages, err = s.scanCategory(ctx, coverImages); err != nil {
		return nil, err
	}
	if report.ProfilePhotos, err = s.scanCategory(ctx, profilePhotos); err != nil {
		return nil, err
	}
	report.Recommendations = recommendations(report)

	s.log.Info("Integrity scan complete",
		slog.Int("total", report.ScriptFiles.Total+report.CoverImages.Total+report.ProfilePhotos.Total),
		slog.Int("broken", report.TotalBroken()))

	return report, nil
}

type verdict int

const (
	verdictValid verdict = iota
	verdictBroken
	verdictUnparseable
	verdictInconclusive
)

// scanCategory probes the category's references with bounded fan-out.
// Results are collected positionally, so the report ordering follows the
// catalog's deterministic row ordering regardless of probe timing.
func (s *Scanner) scanCategory(ctx context.Context, refs []interfaces.FileReference) (interfaces.CategoryReport, error) {
	verdicts := make([]verdict, len(refs))
	keys := make([]interfaces.StorageKey, len(refs))

	sem := semaphore.NewWeighted(int64(s.opts.Fanout))
	var wg sync.WaitGroup
	for i := range refs {
		// A cancelled context stops issuing new checks; in-flight ones
		// are left to finish.
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return interfaces.CategoryReport{}, err
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			verdicts[i], keys[i] = s.classify(ctx, refs[i])
		}(i)
	}
	wg.Wait()

	report := interfaces.CategoryReport{Total: len(refs)}
	for i, ref := range refs {
		switch verdicts[i] {
		case verdictValid:
			report.Valid++
		case verdictBroken:
			report.Broken++
			report.BrokenItems = append(report.BrokenItems, brokenItem(ref, keys[i]))
		case verdictUnparseable:
			report.Unverifiable++
			if s.opts.Strict {
				report.Broken++
				report.BrokenItems = append(report.BrokenItems, brokenItem(ref, ""))
			} else {
				report.Valid++
			}
		case verdictInconclusive:
			// Never classified on inconclusive evidence, strict or not.
			report.Unverifiable++
			report.Valid++
		}
	}
	return report, nil
}

// classify applies the three-valued rule to one reference.
func (s *Scanner) classify(ctx context.Context, ref interfaces.FileReference) (verdict, interfaces.StorageKey) {
	key, ok := keycodec.ExtractKey(ref.URL)
	if !ok {
		s.log.Debug("Reference URL matches no known format",
			slog.String("kind", ref.Kind.String()),
			slog.String("url", ref.URL))
		return verdictUnparseable, ""
	}

	found, err := s.store.Exists(ctx, key)
	if err != nil {
		s.log.Warn("Existence probe inconclusive, keeping reference",
			slog.String("kind", ref.Kind.String()),
			slog.String("key", key.String()),
			"err", err)
		return verdictInconclusive, key
	}
	if found {
		return verdictValid, key
	}
	return verdictBroken, key
}

func brokenItem(ref interfaces.FileReference, key interfaces.StorageKey) interfaces.BrokenReference {
	return interfaces.BrokenReference{
		Kind:       ref.Kind,
		RefID:      ref.RefID,
		OwnerID:    ref.OwnerID,
		OwnerTitle: ref.OwnerTitle,
		Field:      ref.Field,
		URL:        ref.URL,
		Key:        key,
		FileType:   ref.FileType,
	}
}

// recommendations derives operator guidance mechanically from the counts.
func recommendations(r *interfaces.IntegrityReport) []string {
	var recs []string
	if n := r.ScriptFiles.Broken; n > 0 {
		recs = append(recs, fmt.Sprintf("%d script file(s) are missing from storage and should be re-uploaded or removed from version history", n))
	}
	if n := r.CoverImages.Broken; n > 0 {
		recs = append(recs, fmt.Sprintf("%d cover image(s) are missing from storage; clear the field or upload a replacement", n))
	}
	if n := r.ProfilePhotos.Broken; n > 0 {
		recs = append(recs, fmt.Sprintf("%d profile photo(s) are missing from storage; clear the field or upload a replacement", n))
	}
	if n := r.ScriptFiles.Unverifiable + r.CoverImages.Unverifiable + r.ProfilePhotos.Unverifiable; n > 0 {
		recs = append(recs, fmt.Sprintf("%d reference(s) could not be verified and were left untouched", n))
	}
	if len(recs) == 0 {
		recs = append(recs, "all file references resolve to stored objects")
	}
	return recs
}
