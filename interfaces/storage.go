package interfaces

import "context"

// BlobStore provides binary object storage keyed by StorageKey.
//
// Exists is three-valued: (true, nil) means the object is retrievable,
// (false, nil) means the backend definitively reported it absent, and
// (false, err) means the probe was inconclusive (network error, permission
// failure). Callers must never collapse the error case into "absent";
// classifying a reference as broken on inconclusive evidence is how
// recoverable data gets destroyed.
type BlobStore interface {
	// Upload stores data under a freshly derived key and returns the key
	// together with the public URL the object is reachable at.
	Upload(ctx context.Context, data []byte, namespace, originalName, contentType string) (StorageKey, string, error)

	// Exists probes whether the object for key is retrievable.
	Exists(ctx context.Context, key StorageKey) (bool, error)

	// Delete removes the object for key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key StorageKey) error

	// Fetch returns the object bytes. Returns ErrObjectNotFound if absent.
	Fetch(ctx context.Context, key StorageKey) ([]byte, error)

	// PublicURL returns the URL the object for key is served at.
	PublicURL(key StorageKey) string

	// Name returns a backend identifier for logging and metrics.
	Name() string
}

// ReferenceReader enumerates every persisted file reference, one category
// at a time. Implementations read from the relational store; results are
// a point-in-time snapshot and may be invalidated by concurrent cascade
// deletes, which consumers must tolerate.
type ReferenceReader interface {
	ListScriptFiles(ctx context.Context) ([]FileReference, error)
	ListCoverImages(ctx context.Context) ([]FileReference, error)
	ListProfilePhotos(ctx context.Context) ([]FileReference, error)
}

// ReferenceWriter applies corrective writes back to the relational store.
// Every method is idempotent: correcting a reference that has already been
// corrected (or whose row vanished under a cascade delete) succeeds with
// no effect.
type ReferenceWriter interface {
	// DeleteScriptFile removes one file history row outright.
	DeleteScriptFile(ctx context.Context, refID int64) error

	// ClearCoverImage nulls the cover image field of a script, keeping
	// the script row itself.
	ClearCoverImage(ctx context.Context, scriptID int64) error

	// ClearProfilePhoto nulls the photo field of a user, keeping the
	// user row itself.
	ClearProfilePhoto(ctx context.Context, userID int64) error
}
