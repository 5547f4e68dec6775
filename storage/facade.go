package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/draftdesk/scriptstore/interfaces"
	"github.com/draftdesk/scriptstore/metrics"
)

// UploadCategory names a class of uploads with its own namespace, size
// ceiling and allowed content types.
type UploadCategory string

const (
	CategoryScript UploadCategory = "script"
	CategoryCover  UploadCategory = "cover"
	CategoryAvatar UploadCategory = "avatar"
)

// CategoryPolicy describes the constraints of one upload category.
type CategoryPolicy struct {
	Namespace    string
	MaxSize      int64
	ContentTypes []string
}

var policies = map[UploadCategory]CategoryPolicy{
	CategoryScript: {
		Namespace: "scripts",
		MaxSize:   25 * 1024 * 1024,
		ContentTypes: []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"text/plain",
		},
	},
	CategoryCover: {
		Namespace:    "covers",
		MaxSize:      5 * 1024 * 1024,
		ContentTypes: []string{"image/jpeg", "image/png", "image/webp"},
	},
	CategoryAvatar: {
		Namespace:    "avatars",
		MaxSize:      2 * 1024 * 1024,
		ContentTypes: []string{"image/jpeg", "image/png", "image/webp"},
	},
}

// PolicyFor returns the policy for a category.
func PolicyFor(category UploadCategory) (CategoryPolicy, error) {
	p, ok := policies[category]
	if !ok {
		return CategoryPolicy{}, fmt.Errorf("%w: %s", interfaces.ErrUnknownCategory, category)
	}
	return p, nil
}

// ValidateUpload checks a payload against its category policy. It is
// called by the upload entrypoint before the facade is touched, so an
// oversized or mistyped payload never reaches a backend.
func ValidateUpload(category UploadCategory, size int64, contentType string) error {
	p, err := PolicyFor(category)
	if err != nil {
		return err
	}
	if size == 0 {
		return interfaces.ErrEmptyUpload
	}
	if size > p.MaxSize {
		return fmt.Errorf("%w: %d bytes over the %d byte limit for %s uploads",
			interfaces.ErrUploadTooLarge, size-p.MaxSize, p.MaxSize, category)
	}

	base := contentType
	if idx := strings.IndexByte(base, ';'); idx >= 0 {
		base = strings.TrimSpace(base[:idx])
	}
	for _, allowed := range p.ContentTypes {
		if base == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not allowed for %s uploads", interfaces.ErrUnsupportedContentType, base, category)
}

// UploadResult is what the upload entrypoint hands back to callers: the
// issued key, the URL to persist in the relational store, and the CDN
// URL when one fronts the durable store.
type UploadResult struct {
	Key    interfaces.StorageKey `json:"key"`
	URL    string                `json:"url"`
	CDNURL string                `json:"cdn_url,omitempty"`
}

// Facade exposes one storage interface over whichever backend the
// configuration selected. Selection happens exactly once, at
// construction; the facade holds no other mutable state and is safe for
// concurrent use.
type Facade struct {
	backend  interfaces.BlobStore
	fallback *LocalStore // non-nil only when the durable backend is selected
	cdnBase  string
	log      *slog.Logger
}

// NewFacade selects a backend by the pure presence predicate
// Config.DurableConfigured and wires the local store either as the
// selected backend or as the durable backend's upload fallback.
func NewFacade(cfg Config, log *slog.Logger) (*Facade, error) {
	local, err := NewLocalStore(cfg.UploadDir, cfg.LegacyUploadDir, cfg.ServeBaseURL, log)
	if err != nil {
		return nil, err
	}

	f := &Facade{
		cdnBase: strings.TrimSuffix(cfg.CDNBaseURL, "/"),
		log:     log,
	}

	if cfg.DurableConfigured() {
		s3Store, err := NewS3Store(cfg, log)
		if err != nil {
			return nil, err
		}
		f.backend = s3Store
		f.fallback = local
		log.Info("Selected durable object store backend",
			slog.String("backend", s3Store.Name()))
	} else {
		f.backend = local
		log.Info("Selected local storage backend",
			slog.String("backend", local.Name()))
	}

	return f, nil
}

// Backend returns the name of the selected backend.
func (f *Facade) Backend() string {
	return f.backend.Name()
}

// Upload stores a payload under its category's namespace. A failure on
// the durable backend falls back to local storage within the same call;
// the caller only observes the resulting URL.
func (f *Facade) Upload(ctx context.Context, category UploadCategory, data []byte, originalName, contentType string) (*UploadResult, error) {
	policy, err := PolicyFor(category)
	if err != nil {
		return nil, err
	}

	key, publicURL, err := f.backend.Upload(ctx, data, policy.Namespace, originalName, contentType)
	if err != nil && f.fallback != nil {
		f.log.Warn("Durable store upload failed, falling back to local storage",
			slog.String("name", originalName),
			"err", err)
		metrics.UploadFallbacksTotal.Inc()

		key, publicURL, err = f.fallback.Upload(ctx, data, policy.Namespace, originalName, contentType)
		if err != nil {
			return nil, fmt.Errorf("fallback upload failed: %w", err)
		}
		metrics.UploadsTotal.WithLabelValues(f.fallback.Name()).Inc()

		// No CDN URL: the CDN fronts the durable store only.
		return &UploadResult{Key: key, URL: publicURL}, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.UploadsTotal.WithLabelValues(f.backend.Name()).Inc()

	result := &UploadResult{Key: key, URL: publicURL}
	if f.cdnBase != "" && f.fallback != nil {
		result.CDNURL = fmt.Sprintf("%s/%s", f.cdnBase, escapeKey(key))
	}
	return result, nil
}

// Exists probes the selected backend, falling through to local storage
// when the durable store reports the object definitively absent. Objects
// written by a past upload fallback live only in the local store; without
// the fall-through every one of them would scan as broken.
func (f *Facade) Exists(ctx context.Context, key interfaces.StorageKey) (bool, error) {
	found, err := f.backend.Exists(ctx, key)
	if !found && f.fallback != nil {
		localFound, localErr := f.fallback.Exists(ctx, key)
		if localFound {
			found, err = true, nil
		} else if err == nil {
			// Definitive absence requires both stores to agree; an
			// inconclusive local probe keeps the result inconclusive.
			err = localErr
		}
	}
	switch {
	case err != nil:
		metrics.ExistenceChecksTotal.WithLabelValues("unknown").Inc()
	case found:
		metrics.ExistenceChecksTotal.WithLabelValues("found").Inc()
	default:
		metrics.ExistenceChecksTotal.WithLabelValues("missing").Inc()
	}
	return found, err
}

// Delete delegates to the selected backend.
func (f *Facade) Delete(ctx context.Context, key interfaces.StorageKey) error {
	return f.backend.Delete(ctx, key)
}

// Fetch reads object bytes from the selected backend, falling through to
// local storage for objects a past upload fallback left there.
func (f *Facade) Fetch(ctx context.Context, key interfaces.StorageKey) ([]byte, error) {
	data, err := f.backend.Fetch(ctx, key)
	if err == nil || f.fallback == nil {
		return data, err
	}
	return f.fallback.Fetch(ctx, key)
}

// PublicURL delegates to the selected backend.
func (f *Facade) PublicURL(key interfaces.StorageKey) string {
	return f.backend.PublicURL(key)
}

// Name identifies the facade's selected backend.
func (f *Facade) Name() string {
	return f.backend.Name()
}
