// Package catalog reads and corrects the relational store's file
// references: script file history rows, cover image fields on scripts,
// and profile photo fields on users.
//
// The catalog never owns object bytes, only URLs. Listing methods return
// a point-in-time snapshot, and every corrective write is idempotent: a
// row that vanished under a concurrent cascade delete counts as already
// corrected.
package catalog

import (
	"context"

	"github.com/draftdesk/scriptstore/interfaces"
)

// Repository combines reference enumeration, corrective writes, and the
// script file version-history write path.
type Repository interface {
	interfaces.ReferenceReader
	interfaces.ReferenceWriter

	// ReplaceScriptFile appends a new version for (scriptID, fileType)
	// and makes it the latest, demoting the previous latest in the same
	// transaction. Exactly one row per (script, fileType) carries
	// is_latest at any time.
	ReplaceScriptFile(ctx context.Context, scriptID int64, fileType interfaces.ScriptFileType, fileURL string) (version int, err error)
}
