// Package storage persists uploaded binary assets across two backends
// behind one facade.
//
// # Backends
//
//   - S3Store targets a durable object store (Amazon S3 or any
//     S3-compatible service). Its existence probe is a metadata-only
//     HeadObject call; a 404-equivalent reports "absent" while any other
//     failure reports "unknown".
//   - LocalStore writes under a persistent-mount directory and reads
//     through to a legacy directory for objects written before the
//     storage layout changed.
//
// # Backend Selection
//
// The Facade selects exactly one backend per process based on whether
// durable-store credentials are present in the configuration (a presence
// check, not a connectivity check). Selection happens once at construction
// and is never re-evaluated per call.
//
// # Upload Fallback
//
// When the durable backend is selected and an upload fails for any
// reason, the facade retries the same upload against the local store
// within the same call. The caller only ever sees a URL; which backend
// actually holds the bytes is not recoverable from the URL shape, which
// is why package keycodec parses every format ever emitted.
package storage
