package interfaces

import (
	"errors"
	"strings"
)

// StorageKey is the opaque within-backend identifier of one stored object.
// Keys are issued once at upload time and never change.
type StorageKey string

// IsZero reports whether the key is empty.
func (k StorageKey) IsZero() bool {
	return k == ""
}

// String returns the raw key.
func (k StorageKey) String() string {
	return string(k)
}

// Namespace returns the leading path segment of the key, or "" if the key
// has no namespace prefix.
func (k StorageKey) Namespace() string {
	s := string(k)
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return ""
	}
	return s[:idx]
}

// FileKind identifies which relational field a file reference lives in.
type FileKind int

const (
	// KindScriptFile is a row in the script file version history.
	KindScriptFile FileKind = iota
	// KindCoverImage is the nullable cover image field on a script.
	KindCoverImage
	// KindProfilePhoto is the nullable photo field on a user.
	KindProfilePhoto
)

// String returns the kind name.
func (k FileKind) String() string {
	switch k {
	case KindScriptFile:
		return "script_file"
	case KindCoverImage:
		return "cover_image"
	case KindProfilePhoto:
		return "profile_photo"
	default:
		return "unknown"
	}
}

// ScriptFileType tags a script file row with its document type. Many rows
// of the same type may coexist as version history; exactly one per
// (script, type) pair is the latest.
type ScriptFileType string

const (
	ScreenplayFile ScriptFileType = "SCREENPLAY"
	PitchDeckFile  ScriptFileType = "PITCH_DECK"
	TreatmentFile  ScriptFileType = "TREATMENT"
	SynopsisFile   ScriptFileType = "SYNOPSIS"
	OtherFile      ScriptFileType = "OTHER"
)

// FileReference is one persisted pointer from the relational store to a
// stored object. For script files, RefID identifies the history row and
// FileType/Version/IsLatest describe its place in the version history.
// For cover images and profile photos, OwnerID identifies the script or
// user record that carries the nullable URL column.
type FileReference struct {
	Kind       FileKind
	RefID      int64
	OwnerID    int64
	OwnerTitle string
	Field      string
	URL        string

	FileType ScriptFileType
	Version  int
	IsLatest bool
}

var (
	// ErrObjectNotFound is returned when a stored object definitively does
	// not exist in the backend (the 404-equivalent). It is the only error
	// that may classify a reference as broken.
	ErrObjectNotFound = errors.New("stored object not found")

	// ErrBackendUnavailable is returned when a storage backend cannot be
	// reached. Callers must treat it as "unknown", never as "missing".
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrEmptyUpload is returned for zero-length upload payloads.
	ErrEmptyUpload = errors.New("uploaded file is empty")

	// ErrUploadTooLarge is returned when a payload exceeds the size
	// ceiling of its upload category.
	ErrUploadTooLarge = errors.New("uploaded file exceeds size limit")

	// ErrUnsupportedContentType is returned when a payload's content type
	// is not allowed for its upload category.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrUnknownCategory is returned for an upload category the storage
	// facade has no policy for.
	ErrUnknownCategory = errors.New("unknown upload category")
)
