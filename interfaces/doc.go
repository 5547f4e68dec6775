// Package interfaces defines the shared types and contracts of the
// scriptstore service: storage keys, file reference records, integrity
// report structures, and the BlobStore / ReferenceReader / ReferenceWriter
// interfaces that decouple the storage facade, the relational catalog and
// the integrity engine from each other.
//
// # Storage Keys
//
// A StorageKey is an opaque identifier within whichever backend wrote the
// object:
//
//	<namespace>/<timestamp>_<random-suffix>_<sanitized-original-name>
//
// Keys are generated by package keycodec and are immutable once issued.
// The relational store never holds keys directly, only public URLs; the
// key codec reverses those URLs back into keys.
//
// # Existence Semantics
//
// BlobStore.Exists distinguishes "definitively absent" from "could not
// determine". The distinction is load-bearing: the integrity scanner only
// classifies a reference as broken on definitive absence, and the
// reconciliation engine only destroys references the scanner classified
// as broken. Collapsing an inconclusive probe into "absent" would turn a
// transient network error into data loss.
package interfaces
